package dump

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dev-tams/deltabackup/internal/config"
)

// Engine produces the byte stream for a target.
type Engine interface {
	Dump(ctx context.Context, t Target, conn config.ConnectionConfig, w io.Writer) error
}

// PgEngine shells out to the PostgreSQL client tools. Empty paths mean the
// binaries are looked up on PATH.
type PgEngine struct {
	PgDump    string
	PgDumpall string
}

func (e PgEngine) Dump(ctx context.Context, t Target, conn config.ConnectionConfig, w io.Writer) error {
	args, err := t.Args(conn)
	if err != nil {
		return err
	}

	bin := e.binary(t)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = os.Environ()
	if conn.Password != "" {
		// pg_dump reads the password from the environment.
		cmd.Env = append(cmd.Env, "PGPASSWORD="+conn.Password)
	}

	var stderr bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (e PgEngine) binary(t Target) string {
	override := e.PgDump
	if t.Kind == KindGlobals {
		override = e.PgDumpall
	}
	if override != "" {
		return override
	}
	return t.Program()
}
