package blob

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type gcsBackend struct {
	client *storage.Client
}

func newGCS(ctx context.Context, cfg Config) (*gcsBackend, error) {
	var opts []option.ClientOption
	switch {
	case cfg.GCSAnonymous:
		opts = append(opts, option.WithoutAuthentication())
	case cfg.GCSCredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &gcsBackend{client: client}, nil
}

func (b *gcsBackend) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return b.client.Bucket(bucket).Object(key).NewReader(ctx)
}

func (b *gcsBackend) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	it := b.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
}
