package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dev-tams/deltabackup/internal/compression"
	"github.com/dev-tams/deltabackup/internal/config"
	"github.com/dev-tams/deltabackup/internal/dump"
)

const (
	restoreArchive = "archive"
	restoreSQL     = "sql"
)

var execLookPath = exec.LookPath

// RestoreOptions selects the artifact and the database it is loaded into.
type RestoreOptions struct {
	File     string
	Database string
	Clean    bool
}

// restorePlan is what the file name tells us about an artifact.
type restorePlan struct {
	kind        string
	format      string
	compression string
}

// planRestore derives the restore tool and decompressor from the artifact
// name produced by a backup run.
func planRestore(path string) (restorePlan, error) {
	name := filepath.Base(path)
	p := restorePlan{compression: compression.FromExtension(name)}
	if p.compression != "" {
		name = strings.TrimSuffix(name, compression.Extension(p.compression))
	}

	switch {
	case strings.HasSuffix(name, ".dump"):
		p.kind, p.format = restoreArchive, config.FormatCustom
	case strings.HasSuffix(name, ".tar"):
		p.kind, p.format = restoreArchive, config.FormatTar
	case strings.HasSuffix(name, ".sql"):
		p.kind, p.format = restoreSQL, config.FormatPlain
	default:
		return restorePlan{}, fmt.Errorf("cannot tell artifact type from %q (want .dump, .tar or .sql)", filepath.Base(path))
	}
	return p, nil
}

func validateRestoreToolAvailability(kind string) error {
	tool := "pg_restore"
	if kind == restoreSQL {
		tool = "psql"
	}
	if _, err := execLookPath(tool); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", tool, err)
	}
	return nil
}

// restoreArgs builds the argument vector for the chosen tool. Input is
// always stdin.
func restoreArgs(p restorePlan, conn config.ConnectionConfig, db string, clean bool) []string {
	var args []string
	if p.kind == restoreSQL {
		args = append(args, "--no-psqlrc", "--set=ON_ERROR_STOP=1", "--quiet")
	} else {
		args = append(args, "--format="+p.format, "--exit-on-error")
		if clean {
			args = append(args, "--clean", "--if-exists")
		}
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
	return append(args, "--no-password", "--dbname="+dump.DBNameArg(db))
}

// RunRestore streams an artifact into pg_restore or psql, decompressing it
// on the way when the name says so.
func RunRestore(ctx context.Context, cfg config.Config, opts RestoreOptions, log logrus.FieldLogger) error {
	p, err := planRestore(opts.File)
	if err != nil {
		return err
	}
	if err := validateRestoreToolAvailability(p.kind); err != nil {
		return err
	}

	db := opts.Database
	if db == "" {
		db = cfg.Connection.Database
	}
	if db == "" {
		return fmt.Errorf("restore needs a target database name")
	}

	f, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()

	var stream io.Reader = f
	if p.compression != "" {
		zr, err := compression.NewReader(p.compression, f)
		if err != nil {
			return fmt.Errorf("open %s stream: %w", p.compression, err)
		}
		defer zr.Close()
		stream = zr
	}

	bin := cfg.Tools.PgRestore
	if p.kind == restoreSQL {
		bin = cfg.Tools.Psql
	}
	if bin == "" {
		bin = map[string]string{restoreSQL: "psql", restoreArchive: "pg_restore"}[p.kind]
	}

	log.WithFields(logrus.Fields{
		"file":        opts.File,
		"db":          db,
		"tool":        bin,
		"compression": p.compression,
	}).Info("restore started")

	cmd := exec.CommandContext(ctx, bin, restoreArgs(p, cfg.Connection, db, opts.Clean)...)
	cmd.Env = os.Environ()
	if cfg.Connection.Password != "" {
		cmd.Env = append(cmd.Env, "PGPASSWORD="+cfg.Connection.Password)
	}
	cmd.Stdin = stream

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", filepath.Base(bin), err, strings.TrimSpace(stderr.String()))
	}

	log.WithFields(logrus.Fields{"file": opts.File, "db": db}).Info("restore finished")
	return nil
}
