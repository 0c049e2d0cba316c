package storage

import (
	"context"
	"io"
)

// Mirror receives a copy of every published artifact.
type Mirror interface {
	Name() string
	// Put uploads r under key and returns where it landed (s3://..., gs://...).
	Put(ctx context.Context, key string, r io.Reader) (string, error)
}
