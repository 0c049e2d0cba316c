package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseValidConfig() Config {
	return Config{
		Connection: ConnectionConfig{Host: "db.internal", Port: 5432, User: "backup"},
		Backup: BackupConfig{
			Dir:         "/var/backups/pg",
			Format:      FormatCustom,
			Compression: "gzip",
			StatsSource: SourcePsql,
			Exclude:     []string{"template0", "template1"},
		},
		Schedule: "*/5 * * * *",
	}
}

func TestValidateAcceptsValidSchedule(t *testing.T) {
	cfg := baseValidConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsInvalidSchedule(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Schedule = "61 * * * *"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule")
}

func TestValidateAllowsEmptySchedule(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Schedule = ""
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Backup.Format = "directory"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup.format")
}

func TestValidateMirrors(t *testing.T) {
	cfg := baseValidConfig()
	cfg.Mirrors = []MirrorConfig{{Name: "offsite", Type: "s3", Bucket: "b"}}
	assert.ErrorContains(t, cfg.Validate(), "region")

	cfg.Mirrors[0].Region = "eu-west-1"
	assert.NoError(t, cfg.Validate())

	cfg.Mirrors = append(cfg.Mirrors, MirrorConfig{Name: "offsite", Type: "gcs", Bucket: "b"})
	assert.ErrorContains(t, cfg.Validate(), "duplicate")

	cfg.Mirrors[1].Name = "gcp"
	cfg.Mirrors = append(cfg.Mirrors, MirrorConfig{Name: "blob", Type: "azure"})
	assert.ErrorContains(t, cfg.Validate(), "account_name")
}

func TestWithOverridesReturnsCopy(t *testing.T) {
	base := baseValidConfig()
	got := base.WithOverrides(Overrides{Host: "other", Port: 6543, Format: FormatTar, ForceAll: true, Verbose: true})

	assert.Equal(t, "other", got.Connection.Host)
	assert.Equal(t, 6543, got.Connection.Port)
	assert.Equal(t, FormatTar, got.Backup.Format)
	assert.True(t, got.Backup.ForceAll)
	assert.Equal(t, "verbose", got.Log.Level)

	assert.Equal(t, "db.internal", base.Connection.Host)
	assert.False(t, base.Backup.ForceAll)

	got.Backup.Exclude[0] = "changed"
	assert.Equal(t, "template0", base.Backup.Exclude[0])
}

func TestHostPrefix(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		"localhost":           "",
		"127.0.0.1":           "",
		"/var/run/postgresql": "",
		"db.internal":         "db.internal_",
	}
	for host, want := range cases {
		cfg := Config{Connection: ConnectionConfig{Host: host}}
		assert.Equal(t, want, cfg.HostPrefix(), "host %q", host)
	}
}

func TestSnapshotPathDefaultsIntoBackupDir(t *testing.T) {
	cfg := baseValidConfig()
	assert.Equal(t, filepath.Join("/var/backups/pg", ".activity_snapshot"), cfg.SnapshotPath())

	cfg.Backup.SnapshotFile = "/state/snap"
	assert.Equal(t, "/state/snap", cfg.SnapshotPath())
}

func TestLoadConfigFallsBackToLibpqEnv(t *testing.T) {
	t.Setenv("PGHOST", "env-host")
	t.Setenv("PGUSER", "env-user")
	t.Setenv("BACKUP_ROOT", "/srv/dumps")

	path := filepath.Join(t.TempDir(), "deltabackup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backup:\n  dir: ${BACKUP_ROOT}\n  format: tar\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-host", cfg.Connection.Host)
	assert.Equal(t, "env-user", cfg.Connection.User)
	assert.Equal(t, 5432, cfg.Connection.Port)
	assert.Equal(t, "/srv/dumps", cfg.Backup.Dir)
	assert.Equal(t, FormatTar, cfg.Backup.Format)
	assert.Equal(t, "gzip", cfg.Backup.Compression)
	assert.Equal(t, []string{"template0", "template1"}, cfg.Backup.Exclude)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFilePrecedesLibpqEnv(t *testing.T) {
	t.Setenv("PGHOST", "from-env")
	t.Setenv("PGPORT", "7000")
	t.Setenv("PGDATABASE", "env-db")

	path := filepath.Join(t.TempDir(), "deltabackup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connection:\n  host: from-config\n  port: 6000\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-config", cfg.Connection.Host)
	assert.Equal(t, 6000, cfg.Connection.Port)
	assert.Equal(t, "env-db", cfg.Connection.Database, "unset keys still fall back to the environment")
}

func TestLoadConfigRejectsBadPGPORT(t *testing.T) {
	t.Setenv("PGPORT", "five")
	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "PGPORT")
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, FormatCustom, cfg.Backup.Format)
	assert.Equal(t, SourcePsql, cfg.Backup.StatsSource)
}
