package stats

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dev-tams/deltabackup/internal/config"
)

// PsqlSource runs Query through the psql client in unaligned tuples-only
// mode, which already emits the wire format.
type PsqlSource struct {
	Binary  string
	Exclude []string
}

func (s PsqlSource) Collect(ctx context.Context, conn config.ConnectionConfig) ([]string, error) {
	bin := s.Binary
	if bin == "" {
		bin = "psql"
	}

	cmd := exec.CommandContext(ctx, bin, psqlArgs(conn)...)
	cmd.Env = os.Environ()
	if conn.Password != "" {
		cmd.Env = append(cmd.Env, "PGPASSWORD="+conn.Password)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("psql stats query failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var lines []string
	sc := bufio.NewScanner(&stdout)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read psql output: %w", err)
	}
	return dropExcluded(lines, s.Exclude), nil
}

func psqlArgs(conn config.ConnectionConfig) []string {
	args := []string{
		"--no-psqlrc",
		"--tuples-only",
		"--no-align",
		"--field-separator=" + Delimiter,
		"--command=" + Query,
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
	db := conn.Database
	if db == "" {
		db = "postgres"
	}
	return append(args, "--dbname="+db)
}
