// Package export writes gateway datasets to disk, one file per dataset,
// under a directory per reader:
//
//	<dir>/<label>/<dataset id>.<ext>
//
// Tabular datasets use the chosen format; gridded datasets are always
// written as CF-JSON.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"oceangateway/internal/dataset"
	"oceangateway/internal/logging"

	"github.com/klauspost/compress/zstd"
)

// Format selects the tabular file format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
	FormatCSVZstd Format = "csv.zst"
)

// Formats lists the accepted formats.
var Formats = []Format{FormatParquet, FormatCSV, FormatCSVZstd}

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

// Exporter writes datasets below one directory.
type Exporter struct {
	dir    string
	format Format
	logger *slog.Logger
}

// New creates an Exporter. The directory is created on first write.
func New(dir string, format Format, logger *slog.Logger) *Exporter {
	return &Exporter{
		dir:    dir,
		format: format,
		logger: logging.Default(logger).With("component", "export"),
	}
}

// Write exports one reader's datasets under label and returns the paths
// written, sorted.
func (e *Exporter) Write(label string, data map[string]dataset.Dataset) ([]string, error) {
	dir := filepath.Join(e.dir, fileName(label))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		p, err := e.writeOne(dir, id, data[id])
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", id, err)
		}
		paths = append(paths, p)
	}
	e.logger.Info("datasets exported", "label", label, "count", len(paths), "dir", dir)
	return paths, nil
}

// WriteAll exports one map per label. labels and data are parallel.
func (e *Exporter) WriteAll(labels []string, data []map[string]dataset.Dataset) ([]string, error) {
	if len(labels) != len(data) {
		return nil, fmt.Errorf("export: %d labels for %d readers", len(labels), len(data))
	}
	var all []string
	for i, m := range data {
		paths, err := e.Write(labels[i], m)
		all = append(all, paths...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

func (e *Exporter) writeOne(dir, id string, ds dataset.Dataset) (string, error) {
	var (
		ext   string
		write func(io.Writer) error
	)
	switch d := ds.(type) {
	case *dataset.Tabular:
		ext = string(e.format)
		switch e.format {
		case FormatParquet:
			write = func(w io.Writer) error { return dataset.WriteParquet(w, d) }
		case FormatCSV:
			write = func(w io.Writer) error { return dataset.WriteCSV(w, d) }
		case FormatCSVZstd:
			write = func(w io.Writer) error { return writeZstd(w, func(w io.Writer) error { return dataset.WriteCSV(w, d) }) }
		default:
			return "", fmt.Errorf("%w: %q", ErrUnknownFormat, e.format)
		}
	case *dataset.Gridded:
		ext = "json"
		write = func(w io.Writer) error { return dataset.WriteCFJSON(w, d) }
	default:
		return "", fmt.Errorf("unsupported dataset type %T", ds)
	}

	path := filepath.Join(dir, fileName(id)+"."+ext)
	if err := writeAtomic(path, write); err != nil {
		return "", err
	}
	return path, nil
}

func writeZstd(w io.Writer, write func(io.Writer) error) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := write(zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// writeAtomic writes through a temp file renamed into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath) //nolint:gosec // G304: path built from the export directory
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename export file: %w", err)
	}
	return nil
}

// fileName makes a dataset id or label safe as a single path element.
func fileName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
