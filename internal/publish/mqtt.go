package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"oceangateway/internal/logging"
	"oceangateway/internal/qc"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const connectTimeout = 10 * time.Second

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes each result under topic/<dataset>/<variable>.
type MQTT struct {
	client mqttClient
	topic  string
	qos    byte
	retain bool
	encode encodeFunc
	logger *slog.Logger
}

// brokerURL maps the target scheme to the one paho dials.
func brokerURL(scheme, host string) string {
	switch scheme {
	case "mqtt":
		scheme = "tcp"
	case "mqtts":
		scheme = "ssl"
	}
	return scheme + "://" + host
}

func openMQTT(ctx context.Context, t Target, logger *slog.Logger) (*MQTT, error) {
	qos, retain, err := mqttFlags(t)
	if err != nil {
		return nil, err
	}
	opts := mqtt.NewClientOptions().
		SetClientID("oceangateway-" + uuid.NewString()[:8]).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false)
	for _, h := range t.Hosts {
		opts.AddBroker(brokerURL(t.Scheme, h))
	}
	if t.User != "" {
		opts.SetUsername(t.User)
		opts.SetPassword(t.Password)
	}
	client := mqtt.NewClient(opts)
	if err := wait(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	enc, _ := encoderFor(t.Query.Get("format"))
	m := newMQTT(client, t.Topic, enc, logger)
	m.qos, m.retain = qos, retain
	return m, nil
}

func mqttFlags(t Target) (byte, bool, error) {
	var qos byte
	if v := t.Query.Get("qos"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 2 {
			return 0, false, fmt.Errorf("%w: qos must be 0, 1 or 2, got %q", ErrBadTarget, v)
		}
		qos = byte(n)
	}
	return qos, t.Query.Get("retain") == "true", nil
}

func newMQTT(client mqttClient, topic string, enc encodeFunc, logger *slog.Logger) *MQTT {
	return &MQTT{
		client: client,
		topic:  topic,
		encode: enc,
		logger: logging.Default(logger).With("component", "publish", "type", "mqtt"),
	}
}

// wait blocks until tok completes or ctx is done.
func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// topicSegment strips characters that are structural in MQTT topics.
func topicSegment(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}

// Publish sends each result and waits for each acknowledgement.
func (m *MQTT) Publish(ctx context.Context, report qc.Report) error {
	payloads, err := messages(m.encode, report)
	if err != nil {
		return err
	}
	for i, p := range payloads {
		r := report.Results[i]
		topic := m.topic + "/" + topicSegment(r.DatasetID) + "/" + topicSegment(r.Generic)
		if err := wait(ctx, m.client.Publish(topic, m.qos, m.retain, p)); err != nil {
			return fmt.Errorf("mqtt publish %s: %w", topic, err)
		}
	}
	m.logger.Info("report published", "topic", m.topic, "messages", len(payloads))
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
