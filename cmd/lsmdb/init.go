package main

import (
	"log/slog"
	"os"

	"lsmkv/pkg/config"
)

// initConfig loads the YAML config at path; a missing file yields config.Default().
func initConfig(path string) (config.Config, error) {
	return config.Load(path)
}

// initLogger configures the global slog.Logger (JSON or text). Logs go to
// stderr so command output on stdout stays clean.
func initLogger(cfg *config.Config) error {
	level, err := config.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{AddSource: true, Level: level}

	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "level", level, "json", cfg.Logger.JSON)

	return nil
}
