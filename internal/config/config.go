package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	FormatCustom = "custom"
	FormatTar    = "tar"
	FormatPlain  = "plain"

	SourcePsql = "psql"
	SourceSQL  = "sql"
)

// Config is built once at startup and handed to components by value.
// Nothing mutates it after Load/WithOverrides.
type Config struct {
	Connection    ConnectionConfig     `mapstructure:"connection"`
	Backup        BackupConfig         `mapstructure:"backup"`
	Tools         ToolsConfig          `mapstructure:"tools"`
	Log           LogConfig            `mapstructure:"log"`
	Mirrors       []MirrorConfig       `mapstructure:"mirrors"`
	Notifications []NotificationConfig `mapstructure:"notifications"`
	Schedule      string               `mapstructure:"schedule"`
}

type ConnectionConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Database string `mapstructure:"database"`
	Password string `mapstructure:"password"`
}

type BackupConfig struct {
	Dir          string   `mapstructure:"dir"`
	Format       string   `mapstructure:"format"`
	ForceAll     bool     `mapstructure:"force_all"`
	SnapshotFile string   `mapstructure:"snapshot_file"`
	Compression  string   `mapstructure:"compression"`
	StatsSource  string   `mapstructure:"stats_source"`
	Exclude      []string `mapstructure:"exclude"`
}

type ToolsConfig struct {
	PgDump    string `mapstructure:"pg_dump"`
	PgDumpall string `mapstructure:"pg_dumpall"`
	Psql      string `mapstructure:"psql"`
	PgRestore string `mapstructure:"pg_restore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MirrorConfig describes a remote copy target for published artifacts.
// Which fields apply depends on Type (s3, gcs, azure).
type MirrorConfig struct {
	Name   string `mapstructure:"name"`
	Type   string `mapstructure:"type"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`

	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	CredentialsFile string `mapstructure:"credentials_file"`

	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
}

type NotificationConfig struct {
	Type   string              `mapstructure:"type"`
	On     []string            `mapstructure:"on"`
	Config NotificationDetails `mapstructure:"config"`
}

type NotificationDetails struct {
	SMTPHost string            `mapstructure:"smtp_host"`
	SMTPPort int               `mapstructure:"smtp_port"`
	From     string            `mapstructure:"from"`
	To       string            `mapstructure:"to"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
}

// Overrides carries command line values. Empty strings and zero ports mean
// "not given" and leave the loaded value alone.
type Overrides struct {
	Host         string
	Port         int
	User         string
	Database     string
	Dir          string
	Format       string
	SnapshotFile string
	StatsSource  string
	ForceAll     bool
	Verbose      bool
}

// LoadConfig reads path (optional) into a fresh viper instance, layering
// defaults and the libpq environment variables underneath it.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := setLibpqDefaults(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandEnv(&cfg)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("connection.port", 5432)
	v.SetDefault("backup.dir", ".")
	v.SetDefault("backup.format", FormatCustom)
	v.SetDefault("backup.compression", "gzip")
	v.SetDefault("backup.stats_source", SourcePsql)
	v.SetDefault("backup.exclude", []string{"template0", "template1"})
	v.SetDefault("tools.pg_dump", "pg_dump")
	v.SetDefault("tools.pg_dumpall", "pg_dumpall")
	v.SetDefault("tools.psql", "psql")
	v.SetDefault("tools.pg_restore", "pg_restore")
	v.SetDefault("log.level", "normal")
	v.SetDefault("log.format", "text")
}

// setLibpqDefaults layers the libpq variables under the config file: a value
// in the file always wins over the environment.
func setLibpqDefaults(v *viper.Viper) error {
	for key, env := range map[string]string{
		"connection.host":     "PGHOST",
		"connection.user":     "PGUSER",
		"connection.database": "PGDATABASE",
		"connection.password": "PGPASSWORD",
	} {
		if val := os.Getenv(env); val != "" {
			v.SetDefault(key, val)
		}
	}

	if raw := os.Getenv("PGPORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("PGPORT=%q is not a port number", raw)
		}
		v.SetDefault("connection.port", port)
	}
	return nil
}

func expandEnv(cfg *Config) {
	c := &cfg.Connection
	c.Host = os.ExpandEnv(c.Host)
	c.User = os.ExpandEnv(c.User)
	c.Database = os.ExpandEnv(c.Database)
	c.Password = os.ExpandEnv(c.Password)

	b := &cfg.Backup
	b.Dir = os.ExpandEnv(b.Dir)
	b.SnapshotFile = os.ExpandEnv(b.SnapshotFile)

	for i := range cfg.Mirrors {
		m := &cfg.Mirrors[i]
		m.Bucket = os.ExpandEnv(m.Bucket)
		m.Prefix = os.ExpandEnv(m.Prefix)
		m.Region = os.ExpandEnv(m.Region)
		m.AccessKey = os.ExpandEnv(m.AccessKey)
		m.SecretKey = os.ExpandEnv(m.SecretKey)
		m.CredentialsFile = os.ExpandEnv(m.CredentialsFile)
		m.AccountName = os.ExpandEnv(m.AccountName)
		m.AccountKey = os.ExpandEnv(m.AccountKey)
		m.Container = os.ExpandEnv(m.Container)
	}

	for i := range cfg.Notifications {
		n := &cfg.Notifications[i].Config
		n.SMTPHost = os.ExpandEnv(n.SMTPHost)
		n.From = os.ExpandEnv(n.From)
		n.To = os.ExpandEnv(n.To)
		n.Username = os.ExpandEnv(n.Username)
		n.Password = os.ExpandEnv(n.Password)
		n.URL = os.ExpandEnv(n.URL)
		for k, v := range n.Headers {
			n.Headers[k] = os.ExpandEnv(v)
		}
	}
}

// WithOverrides returns a copy of c with the command line values applied.
func (c Config) WithOverrides(o Overrides) Config {
	out := c
	out.Backup.Exclude = append([]string(nil), c.Backup.Exclude...)

	if o.Host != "" {
		out.Connection.Host = o.Host
	}
	if o.Port != 0 {
		out.Connection.Port = o.Port
	}
	if o.User != "" {
		out.Connection.User = o.User
	}
	if o.Database != "" {
		out.Connection.Database = o.Database
	}
	if o.Dir != "" {
		out.Backup.Dir = o.Dir
	}
	if o.Format != "" {
		out.Backup.Format = o.Format
	}
	if o.SnapshotFile != "" {
		out.Backup.SnapshotFile = o.SnapshotFile
	}
	if o.StatsSource != "" {
		out.Backup.StatsSource = o.StatsSource
	}
	if o.ForceAll {
		out.Backup.ForceAll = true
	}
	if o.Verbose {
		out.Log.Level = "verbose"
	}
	return out
}

// SnapshotPath is where the previous run's activity lines live.
func (c Config) SnapshotPath() string {
	if c.Backup.SnapshotFile != "" {
		return c.Backup.SnapshotFile
	}
	return filepath.Join(c.Backup.Dir, ".activity_snapshot")
}

// HostPrefix is prepended to artifact names when the cluster is remote.
func (c Config) HostPrefix() string {
	h := strings.TrimSpace(c.Connection.Host)
	switch {
	case h == "", h == "localhost", h == "127.0.0.1", h == "::1":
		return ""
	case strings.HasPrefix(h, "/"):
		// unix socket directory
		return ""
	}
	return h + "_"
}
