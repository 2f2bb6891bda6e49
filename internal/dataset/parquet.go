package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ReadParquet loads a whole Parquet file as a Tabular.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*Tabular, error) {
	pf, err := file.NewParquetReader(r)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		return nil, fmt.Errorf("open parquet arrow reader: %w", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer tbl.Release()
	return FromArrow(tbl)
}

// WriteParquet writes t as Snappy-compressed Parquet, keeping the Arrow
// schema (and with it the units metadata).
func WriteParquet(w io.Writer, t *Tabular) error {
	tbl := t.ToArrow(memory.NewGoAllocator())
	defer tbl.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	fw, err := pqarrow.NewFileWriter(tbl.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.WriteTable(tbl, max(tbl.NumRows(), 1)); err != nil {
		fw.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	return fw.Close()
}
