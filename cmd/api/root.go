package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mombo-site/mombo-api/internal/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "mombo-api",
		Short:         "Ingredient label analysis API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defPath = v
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defPath, "path to config.yaml (env CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd(opts), newImportCmd(opts), newMigrateCmd(opts))
	return cmd
}

// load reads config and builds the process logger.
func (o *rootOptions) load(validate bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, newLogger(cfg.Log.Level), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
