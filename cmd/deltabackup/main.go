package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/dev-tams/deltabackup/internal/app"
	"github.com/dev-tams/deltabackup/internal/config"
	"github.com/dev-tams/deltabackup/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "deltabackup",
		Usage: "back up only the PostgreSQL databases that changed since the last run",
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "dump globals and every database with row activity since the last snapshot",
				Flags: commonFlags(),
				Action: func(c *cli.Context) error {
					cfg, log, err := loadValidatedConfig(c)
					if err != nil {
						return err
					}

					deps, closeDeps, err := app.DepsFromConfig(c.Context, cfg, log)
					if err != nil {
						return err
					}
					defer closeDeps()

					rep, err := app.NewBackup(cfg, deps).Run(c.Context)
					app.PrintSummary(os.Stdout, rep)
					return err
				},
			},
			{
				Name:  "plan",
				Usage: "show which databases the next backup would dump, without dumping",
				Flags: commonFlags(),
				Action: func(c *cli.Context) error {
					cfg, log, err := loadValidatedConfig(c)
					if err != nil {
						return err
					}

					deps, closeDeps, err := app.DepsFromConfig(c.Context, cfg, log)
					if err != nil {
						return err
					}
					defer closeDeps()

					decisions, err := app.NewBackup(cfg, deps).Plan(c.Context)
					if err != nil {
						return err
					}
					app.PrintPlan(os.Stdout, decisions)
					return nil
				},
			},
			{
				Name:  "daemon",
				Usage: "run backups on the configured schedule",
				Flags: append(
					commonFlags(),
					&cli.StringFlag{
						Name:  "schedule",
						Usage: "5-field cron expression, overrides the config file",
					},
					&cli.DurationFlag{
						Name:  "run-timeout",
						Usage: "cancel a single run after this long (0 disables)",
					},
				),
				Action: func(c *cli.Context) error {
					cfg, log, err := loadValidatedConfig(c)
					if err != nil {
						return err
					}
					if s := c.String("schedule"); s != "" {
						cfg.Schedule = s
					}

					deps, closeDeps, err := app.DepsFromConfig(c.Context, cfg, log)
					if err != nil {
						return err
					}
					defer closeDeps()

					b := app.NewBackup(cfg, deps)
					return app.RunDaemon(c.Context, cfg, b.Run, c.Duration("run-timeout"), log)
				},
			},
			{
				Name:  "restore",
				Usage: "restore an artifact produced by backup",
				Flags: append(
					commonFlags(),
					&cli.StringFlag{
						Name:     "from",
						Required: true,
						Usage:    "path to the artifact (.dump, .tar, .sql, optionally .gz/.zst/.lz4)",
					},
					&cli.StringFlag{
						Name:  "into",
						Usage: "database to restore into (defaults to --dbname / connection.database)",
					},
					&cli.BoolFlag{
						Name:  "clean",
						Usage: "drop database objects before recreating them (pg_restore --clean --if-exists)",
					},
				),
				Action: func(c *cli.Context) error {
					cfg, log, err := loadValidatedConfig(c)
					if err != nil {
						return err
					}

					return app.RunRestore(c.Context, cfg, app.RestoreOptions{
						File:     c.String("from"),
						Database: c.String("into"),
						Clean:    c.Bool("clean"),
					}, log)
				},
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config yaml (optional)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"F"},
			Usage:   "primary dump format: custom, tar or plain",
		},
		&cli.BoolFlag{
			Name:    "all",
			Aliases: []string{"a"},
			Usage:   "back up every database regardless of activity",
		},
		&cli.StringFlag{
			Name:    "backup-dir",
			Aliases: []string{"d"},
			Usage:   "directory the artifacts are written to",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "host",
			Aliases: []string{"H"},
			Usage:   "database server host or socket directory",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "database server port",
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"U"},
			Usage:   "database user name",
		},
		&cli.StringFlag{
			Name:    "dbname",
			Aliases: []string{"D"},
			Usage:   "maintenance database used for stats and globals",
		},
		&cli.StringFlag{
			Name:  "snapshot",
			Usage: "activity snapshot file (default <backup-dir>/.activity_snapshot)",
		},
		&cli.StringFlag{
			Name:  "stats-source",
			Usage: "how activity is read: psql or sql",
		},
	}
}

func loadValidatedConfig(c *cli.Context) (config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}

	cfg = cfg.WithOverrides(config.Overrides{
		Host:         c.String("host"),
		Port:         c.Int("port"),
		User:         c.String("username"),
		Database:     c.String("dbname"),
		Dir:          c.String("backup-dir"),
		Format:       c.String("format"),
		SnapshotFile: c.String("snapshot"),
		StatsSource:  c.String("stats-source"),
		ForceAll:     c.Bool("all"),
		Verbose:      c.Bool("verbose"),
	})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr), nil
}
