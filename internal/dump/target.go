package dump

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dev-tams/deltabackup/internal/compression"
	"github.com/dev-tams/deltabackup/internal/config"
)

type Kind string

const (
	KindGlobals Kind = "globals"
	KindSchema  Kind = "schema"
	KindFull    Kind = "full"
)

// Target is one artifact to produce: cluster globals, or the schema or full
// dump of a single database.
type Target struct {
	Kind     Kind
	Database string
	Format   string
}

func Globals() Target { return Target{Kind: KindGlobals, Format: config.FormatPlain} }

func Schema(db string) Target { return Target{Kind: KindSchema, Database: db, Format: config.FormatPlain} }

func Full(db, format string) Target { return Target{Kind: KindFull, Database: db, Format: format} }

// Label identifies the target in logs and reports.
func (t Target) Label() string {
	switch t.Kind {
	case KindGlobals:
		return "globals"
	case KindSchema:
		return t.Database + " (schema)"
	default:
		return t.Database + " (" + t.Format + ")"
	}
}

func (t Target) Validate() error {
	switch t.Format {
	case config.FormatCustom, config.FormatTar, config.FormatPlain:
	default:
		return fmt.Errorf("unknown dump format %q", t.Format)
	}

	switch t.Kind {
	case KindGlobals:
		return nil
	case KindSchema:
		if t.Format != config.FormatPlain {
			return fmt.Errorf("schema dumps are always plain, got %q", t.Format)
		}
	case KindFull:
	default:
		return fmt.Errorf("unknown dump kind %q", t.Kind)
	}

	db := t.Database
	switch {
	case db == "":
		return fmt.Errorf("%s dump needs a database name", t.Kind)
	case strings.ContainsRune(db, 0):
		return fmt.Errorf("database name %q contains NUL", db)
	}
	return nil
}

// DBNameArg is the value for --dbname. libpq treats a dbname containing "="
// or starting with a URI scheme as a connection string, so such names are
// wrapped in a quoted conninfo that selects exactly that database.
func DBNameArg(name string) string {
	if !strings.Contains(name, "=") && !strings.HasPrefix(name, "postgres://") && !strings.HasPrefix(name, "postgresql://") {
		return name
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
	return "dbname='" + escaped + "'"
}

// Compressed reports whether the artifact is stream-compressed on the way
// to disk. Primary dumps keep the format pg_dump produced.
func (t Target) Compressed() bool {
	return t.Kind == KindGlobals || t.Kind == KindSchema
}

// Program is the client binary that produces t.
func (t Target) Program() string {
	if t.Kind == KindGlobals {
		return "pg_dumpall"
	}
	return "pg_dump"
}

// Args builds the argument vector for Program. Each value is its own
// element; nothing is ever joined into a shell string.
func (t Target) Args(conn config.ConnectionConfig) ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var args []string
	switch t.Kind {
	case KindGlobals:
		args = append(args, "--globals-only")
	case KindSchema:
		args = append(args, "--schema-only", "--format=plain")
	case KindFull:
		args = append(args, "--format="+t.Format)
	}

	if conn.Host != "" {
		args = append(args, "--host="+conn.Host)
	}
	if conn.Port != 0 {
		args = append(args, "--port="+strconv.Itoa(conn.Port))
	}
	if conn.User != "" {
		args = append(args, "--username="+conn.User)
	}
	args = append(args, "--no-password")

	if t.Kind == KindGlobals {
		if conn.Database != "" {
			args = append(args, "--database="+DBNameArg(conn.Database))
		}
		return args, nil
	}
	return append(args, "--dbname="+DBNameArg(t.Database)), nil
}

// FileName is the artifact name inside the backup directory.
func (t Target) FileName(hostPrefix, algo string) string {
	switch t.Kind {
	case KindGlobals:
		return hostPrefix + "globals.sql" + compression.Extension(algo)
	case KindSchema:
		return hostPrefix + safeName(t.Database) + ".schema.sql" + compression.Extension(algo)
	}
	return hostPrefix + safeName(t.Database) + FormatExtension(t.Format)
}

// FormatExtension maps a primary dump format to its file suffix.
func FormatExtension(format string) string {
	switch format {
	case config.FormatTar:
		return ".tar"
	case config.FormatPlain:
		return ".sql"
	default:
		return ".dump"
	}
}

// Database names may legally contain slashes; keep artifacts flat.
func safeName(db string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(db)
}
