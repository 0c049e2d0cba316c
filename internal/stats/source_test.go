package stats

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-tams/deltabackup/internal/config"
)

func TestSQLSourceRendersRowsAsLines(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	at := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"now", "datid", "datname", "xact_commit", "tup_inserted", "tup_updated", "tup_deleted"}).
		AddRow(at, int64(16384), "app", int64(9001), int64(5), int64(2), int64(1)).
		AddRow(at, int64(1), "template1", int64(3), int64(0), int64(0), int64(0))
	mock.ExpectQuery(Query).WillReturnRows(rows)
	mock.ExpectClose()

	src := SQLSource{
		Open:    func(config.ConnectionConfig) (*sql.DB, error) { return db, nil },
		Exclude: []string{"template0", "template1"},
	}
	lines, err := src.Collect(context.Background(), config.ConnectionConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-19 02:00:00+00|16384|app|9001|5|2|1"}, lines)
	assert.NoError(t, mock.ExpectationsWereMet())

	snap, bad := Parse(lines)
	require.Empty(t, bad)
	assert.EqualValues(t, 9001, snap["app"].Commits)
}

func TestSQLSourceQueryError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	mock.ExpectQuery(Query).WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	src := SQLSource{Open: func(config.ConnectionConfig) (*sql.DB, error) { return db, nil }}
	_, err = src.Collect(context.Background(), config.ConnectionConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSQLSourceOpenError(t *testing.T) {
	src := SQLSource{Open: func(config.ConnectionConfig) (*sql.DB, error) { return nil, errors.New("no route") }}
	_, err := src.Collect(context.Background(), config.ConnectionConfig{})
	assert.EqualError(t, err, "no route")
}

func TestPsqlArgs(t *testing.T) {
	args := psqlArgs(config.ConnectionConfig{Host: "db.internal", Port: 5433, User: "backup"})
	assert.Contains(t, args, "--field-separator=|")
	assert.Contains(t, args, "--host=db.internal")
	assert.Contains(t, args, "--port=5433")
	assert.Contains(t, args, "--username=backup")
	assert.Equal(t, "--dbname=postgres", args[len(args)-1])
	for _, a := range args {
		assert.NotContains(t, a, " --", "arguments must not be pre-joined")
	}
}
