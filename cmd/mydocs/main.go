package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/mydocs/internal/config"
	"github.com/standardbeagle/mydocs/internal/logging"
	"github.com/standardbeagle/mydocs/internal/server"
	"github.com/standardbeagle/mydocs/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "mydocs",
		Usage:   "Personal document indexing and search over MCP",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "transport",
				Usage: "Transport protocol (only stdio is supported)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: DEBUG, INFO, WARNING, ERROR, CRITICAL",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Diagnostic log file path (stdio carries the protocol, so logs never go to stdout)",
			},
			&cli.StringFlag{
				Name:  "database-url",
				Usage: "Database location (sqlite:///path/to/mydocs.db)",
			},
			&cli.StringFlag{
				Name:    "document-root",
				Aliases: []string{"r"},
				Usage:   "Root directory for documents",
			},
			&cli.StringSliceFlag{
				Name:  "watch",
				Usage: "Directory to watch for changes (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag overrides.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v := c.String("transport"); v != "" {
		cfg.Transport = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v := c.String("log-file"); v != "" {
		cfg.Logging.File = v
	}
	if v := c.String("database-url"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := c.String("document-root"); v != "" {
		abs, err := filepath.Abs(v)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve document root %q: %w", v, err)
		}
		cfg.Storage.DocumentRoot = abs
	}
	if dirs := c.StringSlice("watch"); len(dirs) > 0 {
		cfg.Watcher.Directories = dirs
	}
	if c.Bool("debug") {
		cfg.Debug = true
		cfg.Logging.Level = "DEBUG"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging.File, logging.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Critical("startup failed: %v", err)
		return err
	}
	defer func() {
		if err := srv.Shutdown(); err != nil {
			log.Error("shutdown: %v", err)
		}
	}()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Critical("server exited: %v", err)
		return err
	}
	return nil
}
