package azure

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

type Options struct {
	Name        string
	AccountName string
	AccountKey  string
	Container   string
	Prefix      string
}

type Storage struct {
	name      string
	container azblob.ContainerURL
	prefix    string
}

func New(opt Options) (*Storage, error) {
	if opt.AccountName == "" || opt.AccountKey == "" || opt.Container == "" {
		return nil, fmt.Errorf("azure: account_name, account_key and container are required")
	}

	credential, err := azblob.NewSharedKeyCredential(opt.AccountName, opt.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credentials: %w", err)
	}
	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", opt.AccountName, opt.Container))
	if err != nil {
		return nil, fmt.Errorf("azure container url: %w", err)
	}

	return &Storage{
		name:      opt.Name,
		container: azblob.NewContainerURL(*u, pipeline),
		prefix:    strings.Trim(opt.Prefix, "/"),
	}, nil
}

func (s *Storage) Name() string { return s.name }

func (s *Storage) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	name := key
	if s.prefix != "" {
		name = path.Join(s.prefix, key)
	}
	blob := s.container.NewBlockBlobURL(name)

	_, err := azblob.UploadStreamToBlockBlob(ctx, r, blob, azblob.UploadStreamToBlockBlobOptions{
		BufferSize: 4 * 1024 * 1024,
		MaxBuffers: 4,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return "", fmt.Errorf("azure upload %s: %w", name, err)
	}
	u := blob.URL()
	return u.String(), nil
}
