package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger == nil {
		t.Fatal("Discard() returned nil")
	}
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled at any level")
	}
	logger.Info("dropped")
}

func TestDefault(t *testing.T) {
	if Default(nil).Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Default(nil) should return a discard logger")
	}

	var buf bytes.Buffer
	original := slog.New(slog.NewTextHandler(&buf, nil))
	if Default(original) != original {
		t.Error("Default should return the given logger unchanged")
	}
}

// recorder counts records; clones made by WithAttrs share the counter.
type recorder struct {
	mu    *sync.Mutex
	count *int
}

func newRecorder() *recorder {
	return &recorder{mu: &sync.Mutex{}, count: new(int)}
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(context.Context, slog.Record) error {
	r.mu.Lock()
	*r.count++
	r.mu.Unlock()
	return nil
}

func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recorder) WithGroup(string) slog.Handler      { return r }

func (r *recorder) n() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.count
}

func TestComponentFilterHandler(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]slog.Level
		log       func(*slog.Logger)
		want      int
	}{
		{
			name: "info passes at default level",
			log:  func(l *slog.Logger) { l.Info("m", "component", "gateway") },
			want: 1,
		},
		{
			name: "debug dropped at default level",
			log:  func(l *slog.Logger) { l.Debug("m", "component", "gateway") },
			want: 0,
		},
		{
			name:      "override enables debug for one component",
			overrides: map[string]slog.Level{"qc": slog.LevelDebug},
			log: func(l *slog.Logger) {
				l.Debug("m", "component", "qc")
				l.Debug("m", "component", "gateway")
			},
			want: 1,
		},
		{
			name:      "bound component attribute is honored",
			overrides: map[string]slog.Level{"qc": slog.LevelDebug},
			log:       func(l *slog.Logger) { l.With("component", "qc").Debug("m") },
			want:      1,
		},
		{
			name:      "override can raise the level",
			overrides: map[string]slog.Level{"reader": slog.LevelError},
			log:       func(l *slog.Logger) { l.Warn("m", "component", "reader") },
			want:      0,
		},
		{
			name: "records without component use the default",
			log: func(l *slog.Logger) {
				l.Info("m")
				l.Debug("m")
			},
			want: 1,
		},
		{
			name: "groups keep filtering",
			log: func(l *slog.Logger) {
				g := l.WithGroup("g")
				g.Info("m", "component", "qc")
				g.Debug("m", "component", "qc")
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder()
			filter := NewComponentFilterHandler(rec, slog.LevelInfo)
			for c, lvl := range tt.overrides {
				filter.SetLevel(c, lvl)
			}
			tt.log(slog.New(filter))
			if got := rec.n(); got != tt.want {
				t.Errorf("records = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComponentFilterHandlerLevels(t *testing.T) {
	rec := newRecorder()
	filter := NewComponentFilterHandler(rec, slog.LevelInfo)
	logger := slog.New(filter).With("component", "gateway")

	filter.SetLevel("gateway", slog.LevelDebug)
	logger.Debug("visible")
	filter.SetLevel("gateway", slog.LevelInfo)
	logger.Debug("hidden")

	if rec.n() != 1 {
		t.Errorf("records = %d, want 1", rec.n())
	}
	if lvl := filter.Level("gateway"); lvl != slog.LevelInfo {
		t.Errorf("Level(gateway) = %v, want INFO", lvl)
	}
	if lvl := filter.Level("never-set"); lvl != slog.LevelInfo {
		t.Errorf("Level(never-set) = %v, want INFO", lvl)
	}
	if lvl := filter.DefaultLevel(); lvl != slog.LevelInfo {
		t.Errorf("DefaultLevel() = %v, want INFO", lvl)
	}
}

func TestComponentFilterHandlerNilNext(t *testing.T) {
	filter := NewComponentFilterHandler(nil, slog.LevelWarn)
	logger := slog.New(filter).With("component", "x")
	logger.Error("no panic")

	filter.SetLevel("x", slog.LevelDebug)
	if filter.Level("x") != slog.LevelDebug {
		t.Errorf("Level(x) = %v, want DEBUG", filter.Level("x"))
	}
}

func TestComponentFilterHandlerConcurrent(t *testing.T) {
	rec := newRecorder()
	filter := NewComponentFilterHandler(rec, slog.LevelInfo)
	logger := slog.New(filter)

	const workers, iterations = 8, 200
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range iterations {
				logger.Info("m", "component", "reader")
			}
		})
		wg.Go(func() {
			for range iterations {
				filter.SetLevel("reader", slog.LevelDebug)
				filter.SetLevel("reader", slog.LevelInfo)
			}
		})
	}
	wg.Wait()

	if got := rec.n(); got != workers*iterations {
		t.Errorf("records = %d, want %d", got, workers*iterations)
	}
}

func TestComponentFilterHandlerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	filter := NewComponentFilterHandler(base, slog.LevelInfo)
	logger := slog.New(filter)

	gw := logger.With("component", "gateway")
	qc := logger.With("component", "qc")

	filter.SetLevel("qc", slog.LevelDebug)
	gw.Debug("gateway detail")
	qc.Debug("qc detail")

	out := buf.String()
	if !strings.Contains(out, "qc detail") {
		t.Errorf("expected qc debug line, got %q", out)
	}
	if strings.Contains(out, "gateway detail") {
		t.Errorf("unexpected gateway debug line in %q", out)
	}
}

func TestNewHandler(t *testing.T) {
	for _, format := range []string{FormatPretty, FormatText, FormatJSON} {
		var buf bytes.Buffer
		h, err := NewHandler(&buf, format, false)
		if err != nil {
			t.Fatalf("NewHandler(%q): %v", format, err)
		}
		slog.New(h).Info("hello", "component", "cli")
		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("%s output missing message: %q", format, buf.String())
		}
	}

	if _, err := NewHandler(&bytes.Buffer{}, "xml", false); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	if err != nil || lvl != slog.LevelDebug {
		t.Errorf("ParseLevel(debug) = %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
