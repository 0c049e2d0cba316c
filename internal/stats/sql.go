package stats

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dev-tams/deltabackup/internal/config"
)

// pgTimestamp mirrors how psql prints timestamptz, so both sources write
// interchangeable snapshot files.
const pgTimestamp = "2006-01-02 15:04:05.999999-07"

// OpenFunc opens a database handle for conn.
type OpenFunc func(conn config.ConnectionConfig) (*sql.DB, error)

// SQLSource queries pg_stat_database over database/sql and renders each row
// with FormatLine.
type SQLSource struct {
	Open    OpenFunc
	Exclude []string
}

// OpenPgx connects through the pgx stdlib driver. Unset fields fall back to
// the libpq environment handled by pgx.ParseConfig.
func OpenPgx(conn config.ConnectionConfig) (*sql.DB, error) {
	cc, err := pgx.ParseConfig("")
	if err != nil {
		return nil, fmt.Errorf("pgx config: %w", err)
	}
	if conn.Host != "" {
		cc.Host = conn.Host
	}
	if conn.Port != 0 {
		cc.Port = uint16(conn.Port)
	}
	if conn.User != "" {
		cc.User = conn.User
	}
	if conn.Password != "" {
		cc.Password = conn.Password
	}
	cc.Database = conn.Database
	if cc.Database == "" {
		cc.Database = "postgres"
	}
	return stdlib.OpenDB(*cc), nil
}

func (s SQLSource) Collect(ctx context.Context, conn config.ConnectionConfig) ([]string, error) {
	open := s.Open
	if open == nil {
		open = OpenPgx
	}
	db, err := open(conn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, Query)
	if err != nil {
		return nil, fmt.Errorf("stats query: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var (
			at  time.Time
			oid int64
			r   ActivityRecord
		)
		if err := rows.Scan(&at, &oid, &r.Name, &r.Commits, &r.Inserted, &r.Updated, &r.Deleted); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		r.Timestamp = at.Format(pgTimestamp)
		r.ID = strconv.FormatInt(oid, 10)
		lines = append(lines, FormatLine(r))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats rows: %w", err)
	}
	return dropExcluded(lines, s.Exclude), nil
}
