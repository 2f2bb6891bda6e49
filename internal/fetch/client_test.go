package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

const payload = `{"table": {"rows": [["a", 1], ["b", 2]]}}`

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case EncodingGzip:
		w := gzip.NewWriter(&buf)
		w.Write(data)
		w.Close()
	case EncodingZstd:
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data)
		w.Close()
	case EncodingBrotli:
		w := brotli.NewWriter(&buf)
		w.Write(data)
		w.Close()
	default:
		buf.Write(data)
	}
	return buf.Bytes()
}

func TestGetDecodesEncodings(t *testing.T) {
	for _, enc := range []string{EncodingIdentity, EncodingGzip, EncodingZstd, EncodingBrotli} {
		t.Run("enc="+enc, func(t *testing.T) {
			body := compress(t, enc, []byte(payload))
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Accept-Encoding"); got != acceptEncoding {
					t.Errorf("Accept-Encoding = %q", got)
				}
				if enc != "" {
					w.Header().Set("Content-Encoding", enc)
				}
				w.Write(body)
			}))
			defer srv.Close()

			var doc struct {
				Table struct {
					Rows [][]any `json:"rows"`
				} `json:"table"`
			}
			if err := New(Config{}).GetJSON(context.Background(), srv.URL, &doc); err != nil {
				t.Fatalf("GetJSON: %v", err)
			}
			if len(doc.Table.Rows) != 2 {
				t.Errorf("rows = %v", doc.Table.Rows)
			}
		})
	}
}

func TestGetStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "no such dataset", http.StatusNotFound)
			return
		}
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{UserAgent: "test"})
	_, err := c.GetBytes(context.Background(), srv.URL+"/missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 404 || !errors.Is(err, ErrNotFound) {
		t.Errorf("404 error = %v", err)
	}
	if !strings.Contains(se.Body, "no such dataset") {
		t.Errorf("body snippet = %q", se.Body)
	}

	_, err = c.GetBytes(context.Background(), srv.URL+"/busy")
	if !errors.As(err, &se) || se.Status != 503 || errors.Is(err, ErrNotFound) {
		t.Errorf("503 error = %v", err)
	}
}

func TestRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := New(Config{Rate: 0.001, Burst: 1})
	if _, err := c.GetBytes(context.Background(), srv.URL); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.GetBytes(ctx, srv.URL); err == nil {
		t.Error("second request should wait on the limiter and fail with the cancelled context")
	}
}

func TestURL(t *testing.T) {
	got, err := URL("https://example.org/erddap/", "tabledap/abc.csv", url.Values{"time>=": {"2021-04-01"}})
	if err != nil {
		t.Fatal(err)
	}
	want := "https://example.org/erddap/tabledap/abc.csv?time%3E%3D=2021-04-01"
	if got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}

func TestEncodingForName(t *testing.T) {
	tests := []struct{ name, enc, base string }{
		{"data.csv.gz", EncodingGzip, "data.csv"},
		{"data.csv.ZST", EncodingZstd, "data.csv"},
		{"data.json.br", EncodingBrotli, "data.json"},
		{"data.parquet", EncodingIdentity, "data.parquet"},
	}
	for _, tt := range tests {
		enc, base := EncodingForName(tt.name)
		if enc != tt.enc || base != tt.base {
			t.Errorf("EncodingForName(%q) = %q, %q", tt.name, enc, base)
		}
	}
	if _, err := Decompress(io.NopCloser(strings.NewReader("x")), "compress"); err == nil {
		t.Error("expected error for unsupported encoding")
	}
}
