package publish

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"oceangateway/internal/logging"
	"oceangateway/internal/qc"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka produces results to one topic, keyed by dataset and variable.
type Kafka struct {
	client producer
	topic  string
	encode encodeFunc
	logger *slog.Logger
}

func openKafka(t Target, logger *slog.Logger) (*Kafka, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(t.Hosts...),
		kgo.DefaultProduceTopic(t.Topic),
	}
	if t.Query.Get("tls") == "true" {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		}))
	}
	if m := t.Query.Get("sasl"); m != "" {
		mech, err := buildSASLMechanism(m, t.User, t.Password)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mech))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	enc, _ := encoderFor(t.Query.Get("format"))
	return newKafka(client, t.Topic, enc, logger), nil
}

func newKafka(client producer, topic string, enc encodeFunc, logger *slog.Logger) *Kafka {
	return &Kafka{
		client: client,
		topic:  topic,
		encode: enc,
		logger: logging.Default(logger).With("component", "publish", "type", "kafka"),
	}
}

// Publish sends every result and waits for all acknowledgements.
func (k *Kafka) Publish(ctx context.Context, report qc.Report) error {
	payloads, err := messages(k.encode, report)
	if err != nil {
		return err
	}
	recs := make([]*kgo.Record, len(payloads))
	for i, p := range payloads {
		recs[i] = &kgo.Record{
			Topic: k.topic,
			Key:   []byte(key(report.Results[i])),
			Value: p,
			Headers: []kgo.RecordHeader{
				{Key: "session", Value: []byte(report.Session)},
			},
		}
	}
	if err := k.client.ProduceSync(ctx, recs...).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce: %w", err)
	}
	k.logger.Info("report published", "topic", k.topic, "records", len(recs))
	return nil
}

func (k *Kafka) Close() error {
	k.client.Close()
	return nil
}

func buildSASLMechanism(mechanism, user, password string) (sasl.Mechanism, error) {
	switch mechanism {
	case "plain":
		return plain.Auth{User: user, Pass: password}.AsMechanism(), nil
	case "scram-sha-256":
		return scram.Auth{User: user, Pass: password}.AsSha256Mechanism(), nil
	case "scram-sha-512":
		return scram.Auth{User: user, Pass: password}.AsSha512Mechanism(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported SASL mechanism %q", ErrBadTarget, mechanism)
	}
}
