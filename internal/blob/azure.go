package blob

import (
	"context"
	"errors"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

type azureBackend struct {
	client *azblob.Client
}

func newAzure(cfg Config) (*azureBackend, error) {
	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.AzureConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
	case cfg.AzureAccountURL != "":
		client, err = azblob.NewClientWithNoCredential(cfg.AzureAccountURL, nil)
	default:
		return nil, errors.New("azure needs an account URL or connection string")
	}
	if err != nil {
		return nil, err
	}
	return &azureBackend{client: client}, nil
}

func (b *azureBackend) Open(ctx context.Context, container, name string) (io.ReadCloser, error) {
	resp, err := b.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (b *azureBackend) List(ctx context.Context, container, prefix string) ([]string, error) {
	var names []string
	pager := b.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}
