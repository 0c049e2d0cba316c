package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type Options struct {
	Name            string
	Bucket          string
	Prefix          string
	CredentialsFile string
}

type Storage struct {
	name   string
	bucket string
	prefix string
	client *storage.Client
}

// New builds a GCS mirror. An empty CredentialsFile means application
// default credentials.
func New(ctx context.Context, opt Options) (*Storage, error) {
	if opt.Bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}

	var clientOpts []option.ClientOption
	if opt.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opt.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	return &Storage{
		name:   opt.Name,
		bucket: opt.Bucket,
		prefix: strings.Trim(opt.Prefix, "/"),
		client: client,
	}, nil
}

func (s *Storage) Name() string { return s.name }

func (s *Storage) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	name := key
	if s.prefix != "" {
		name = path.Join(s.prefix, key)
	}

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs upload %s: %w", name, err)
	}
	// The object only exists once Close returns nil.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs finalize %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

func (s *Storage) Close() error { return s.client.Close() }
