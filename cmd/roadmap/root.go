package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-roadmap-replica/internal/config"
	"github.com/tbourn/go-roadmap-replica/internal/markup"
	"github.com/tbourn/go-roadmap-replica/internal/remote"
	"github.com/tbourn/go-roadmap-replica/internal/repo"
	"github.com/tbourn/go-roadmap-replica/internal/search"
	"github.com/tbourn/go-roadmap-replica/internal/services"
	"github.com/tbourn/go-roadmap-replica/internal/sysutil"
)

// cli carries flag values and the configuration shared by all commands.
type cli struct {
	out, errOut io.Writer

	envFile string
	dbPath  string
	output  string

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:          "roadmap",
		Short:        "Replicate and search the roadmap change catalog",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.setup()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (empty to skip)")
	pf.StringVar(&c.dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	pf.StringVarP(&c.output, "output", "o", "json", "output format: json|yaml")

	root.AddCommand(
		c.serveCmd(),
		c.syncCmd(),
		c.statusCmd(),
		c.searchCmd(),
		c.getCmd(),
		c.vocabCmd(),
		c.reindexCmd(),
		c.versionCmd(),
	)
	return root
}

// setup loads the environment and configuration and builds the logger.
func (c *cli) setup() error {
	if err := checkFormat(c.output); err != nil {
		return err
	}
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	c.cfg = cfg
	c.log = sysutil.NewLogger(c.errOut, cfg.LogLevel, cfg.LogPretty)
	log.Logger = c.log
	return nil
}

// app is the wired dependency graph over one database handle.
type app struct {
	db      *gorm.DB
	syncer  *services.SyncService
	catalog *services.CatalogService
}

// open opens and migrates the store and wires the services.
func (c *cli) open(ctx context.Context) (*app, error) {
	db, err := repo.OpenSQLite(c.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.cfg.DBPath, err)
	}
	if err := repo.Migrate(ctx, db); err != nil {
		_ = repo.Close(db)
		return nil, err
	}
	if c.cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			_ = repo.Close(db)
			return nil, fmt.Errorf("enable sql tracing: %w", err)
		}
	}

	rc := c.cfg.Remote
	source := remote.New(remote.Config{
		BaseURL:     rc.BaseURL,
		PageSize:    rc.PageSize,
		Timeout:     rc.Timeout,
		MaxRetries:  rc.MaxRetries,
		BackoffBase: rc.BackoffBase,
		BackoffMax:  rc.BackoffMax,
		RateRPS:     rc.RateRPS,
		MaxPages:    rc.MaxPages,
		UserAgent:   "roadmap-replica/" + version,
	}, nil, c.log)

	return &app{
		db: db,
		syncer: &services.SyncService{
			DB:              db,
			Source:          source,
			Converter:       markup.New(),
			Log:             c.log.With().Str("component", "sync").Logger(),
			PageSize:        rc.PageSize,
			LockTTL:         c.cfg.Sync.LockTTL,
			RetentionCutoff: c.cfg.Sync.RetentionCutoff,
			KeepRuns:        c.cfg.Sync.KeepRuns,
		},
		catalog: &services.CatalogService{
			DB:     db,
			Engine: search.NewEngine(db),
			Log:    c.log.With().Str("component", "catalog").Logger(),
		},
	}, nil
}

func (a *app) close() error { return repo.Close(a.db) }

func (c *cli) print(v any) error { return writeOutput(c.out, c.output, v) }
