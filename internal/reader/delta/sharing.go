package delta

import (
	"context"
	"fmt"

	"oceangateway/internal/dataset"

	delta_sharing "github.com/magpierre/go_delta_sharing_client"
)

// TableRef names one shared table.
type TableRef struct {
	Share  string
	Schema string
	Name   string
}

// ID is the dotted share.schema.table form used as the dataset id.
func (t TableRef) ID() string {
	return t.Share + "." + t.Schema + "." + t.Name
}

// sharing is the slice of the Delta Sharing protocol the reader uses.
type sharing interface {
	Tables(ctx context.Context) ([]TableRef, error)
	Load(ctx context.Context, ref TableRef) (*dataset.Tabular, error)
}

// client talks to a Delta Sharing server described by a profile.
type client struct {
	ds     delta_sharing.SharingClientV2
	tables map[string]delta_sharing.Table
}

func dial(profile string) (sharing, error) {
	ds, err := delta_sharing.NewSharingClientV2FromString(profile)
	if err != nil {
		return nil, fmt.Errorf("delta sharing client: %w", err)
	}
	return &client{ds: ds, tables: map[string]delta_sharing.Table{}}, nil
}

func (c *client) Tables(ctx context.Context) ([]TableRef, error) {
	all, _, err := c.ds.ListAllTables_V2(ctx, 0, "", 0)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	refs := make([]TableRef, 0, len(all))
	for _, t := range all {
		ref := TableRef{Share: t.Share, Schema: t.Schema, Name: t.Name}
		c.tables[ref.ID()] = t
		refs = append(refs, ref)
	}
	return refs, nil
}

// Load reads every data file of the table and appends them in listing
// order.
func (c *client) Load(ctx context.Context, ref TableRef) (*dataset.Tabular, error) {
	t, ok := c.tables[ref.ID()]
	if !ok {
		t = delta_sharing.Table{Share: ref.Share, Schema: ref.Schema, Name: ref.Name}
	}
	resp, err := c.ds.ListFilesInTable(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list files of %s: %w", ref.ID(), err)
	}
	out := &dataset.Tabular{}
	for _, f := range resp.AddFiles {
		tbl, err := delta_sharing.LoadArrowTable(ctx, c.ds, t, f.Id)
		if err != nil {
			return nil, fmt.Errorf("load %s file %s: %w", ref.ID(), f.Id, err)
		}
		part, err := dataset.FromArrow(tbl)
		tbl.Release()
		if err != nil {
			return nil, fmt.Errorf("convert %s file %s: %w", ref.ID(), f.Id, err)
		}
		if err := out.Append(part); err != nil {
			return nil, fmt.Errorf("%s: %w", ref.ID(), err)
		}
	}
	return out, nil
}
