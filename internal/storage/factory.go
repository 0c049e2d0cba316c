package storage

import (
	"context"
	"fmt"

	"github.com/dev-tams/deltabackup/internal/config"
	"github.com/dev-tams/deltabackup/internal/storage/azure"
	"github.com/dev-tams/deltabackup/internal/storage/gcs"
	s3store "github.com/dev-tams/deltabackup/internal/storage/s3"
)

// MirrorsFromConfig builds one Mirror per configured entry, in config order.
func MirrorsFromConfig(ctx context.Context, cfgs []config.MirrorConfig) ([]Mirror, error) {
	out := make([]Mirror, 0, len(cfgs))

	for _, m := range cfgs {
		switch m.Type {
		case "s3":
			s, err := s3store.New(ctx, s3store.Options{
				Name:      m.Name,
				Bucket:    m.Bucket,
				Region:    m.Region,
				Prefix:    m.Prefix,
				AccessKey: m.AccessKey,
				SecretKey: m.SecretKey,
			})
			if err != nil {
				return nil, fmt.Errorf("mirror %s: %w", m.Name, err)
			}
			out = append(out, s)

		case "gcs":
			s, err := gcs.New(ctx, gcs.Options{
				Name:            m.Name,
				Bucket:          m.Bucket,
				Prefix:          m.Prefix,
				CredentialsFile: m.CredentialsFile,
			})
			if err != nil {
				return nil, fmt.Errorf("mirror %s: %w", m.Name, err)
			}
			out = append(out, s)

		case "azure":
			s, err := azure.New(azure.Options{
				Name:        m.Name,
				AccountName: m.AccountName,
				AccountKey:  m.AccountKey,
				Container:   m.Container,
				Prefix:      m.Prefix,
			})
			if err != nil {
				return nil, fmt.Errorf("mirror %s: %w", m.Name, err)
			}
			out = append(out, s)

		default:
			return nil, fmt.Errorf("mirror %s: unknown type %q", m.Name, m.Type)
		}
	}

	return out, nil
}
