package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staffline/internal/config"
	"staffline/internal/db"
	"staffline/internal/engine"
	"staffline/internal/migrate"
)

// ResolveConfig loads the explicit config file when one is given, otherwise the workspace's
// staffline.yml or staffline.toml, otherwise the built-in defaults.
func ResolveConfig(workspace, explicitPath string) (*config.Config, error) {
	if strings.TrimSpace(explicitPath) != "" {
		cfg, err := config.FromFile(explicitPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", explicitPath, err)
		}
		return cfg, nil
	}
	return config.LoadOptional(workspace)
}

// NewLogger builds the process logger from the log section. Output defaults to stderr.
func NewLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "staffline").Logger()
}

// OpenWorkspace opens the workspace database and applies pending migrations.
func OpenWorkspace(ctx context.Context, workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return conn, nil
}

// Options selects the workspace, config file and log sink of an engine.
type Options struct {
	Workspace  string
	ConfigPath string
	LogOutput  io.Writer
}

// NewEngine wires config, logger and database into an engine. The caller closes the returned DB.
func NewEngine(ctx context.Context, opts Options) (engine.Engine, *sql.DB, error) {
	cfg, err := ResolveConfig(opts.Workspace, opts.ConfigPath)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	conn, err := OpenWorkspace(ctx, opts.Workspace)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	eng := engine.New(conn, cfg)
	eng.Log = NewLogger(cfg.Log, opts.LogOutput)
	return eng, conn, nil
}
