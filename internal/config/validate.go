package config

import (
	"fmt"
	"strings"

	"github.com/dev-tams/deltabackup/internal/schedule"
)

// Validate checks everything that must hold before any work begins.
func (c Config) Validate() error {
	if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("connection.port must be between 1 and 65535, got %d", c.Connection.Port)
	}
	if strings.TrimSpace(c.Backup.Dir) == "" {
		return fmt.Errorf("backup.dir is required")
	}

	switch c.Backup.Format {
	case FormatCustom, FormatTar, FormatPlain:
	default:
		return fmt.Errorf("backup.format=%q must be one of custom, tar, plain", c.Backup.Format)
	}

	switch c.Backup.Compression {
	case "gzip", "zstd", "lz4":
	default:
		return fmt.Errorf("backup.compression=%q must be gzip, zstd or lz4", c.Backup.Compression)
	}

	switch c.Backup.StatsSource {
	case SourcePsql, SourceSQL:
	default:
		return fmt.Errorf("backup.stats_source=%q must be psql or sql", c.Backup.StatsSource)
	}

	if s := strings.TrimSpace(c.Schedule); s != "" {
		if _, err := schedule.Parse(s); err != nil {
			return fmt.Errorf("schedule %q: %w", s, err)
		}
	}

	names := map[string]struct{}{}
	for i, m := range c.Mirrors {
		if m.Name == "" {
			return fmt.Errorf("mirrors[%d].name is required", i)
		}
		if _, ok := names[m.Name]; ok {
			return fmt.Errorf("mirrors[%d]: duplicate name %q", i, m.Name)
		}
		names[m.Name] = struct{}{}

		switch m.Type {
		case "s3":
			if m.Bucket == "" || m.Region == "" {
				return fmt.Errorf("mirrors[%d] s3: bucket and region are required", i)
			}
		case "gcs":
			if m.Bucket == "" {
				return fmt.Errorf("mirrors[%d] gcs: bucket is required", i)
			}
		case "azure":
			if m.AccountName == "" || m.AccountKey == "" || m.Container == "" {
				return fmt.Errorf("mirrors[%d] azure: account_name, account_key and container are required", i)
			}
		default:
			return fmt.Errorf("mirrors[%d]: unknown type %q", i, m.Type)
		}
	}

	for i, n := range c.Notifications {
		if n.Type == "" {
			return fmt.Errorf("notifications[%d].type is required", i)
		}
	}
	return nil
}
