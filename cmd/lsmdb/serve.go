package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	lsmhttp "lsmkv/internal/http"
	"lsmkv/pkg/metrics"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "HTTP port (overrides http-server.port)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the store over HTTP",
	Long:  "serve opens the store and exposes it over HTTP until SIGINT or SIGTERM, then flushes and closes it.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return serve(ctx, cmd)
	},
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	serverCfg := cfg.Server
	if cmd.Flags().Changed("port") {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return err
		}
		serverCfg.Port = port
	}

	reg := metrics.NewRegistry()
	st, err := openStore(reg)
	if err != nil {
		return err
	}

	server := lsmhttp.NewServer(st, reg, serverCfg)
	if err := server.Start(); err != nil {
		_ = st.Close()
		return err
	}

	slog.Info("lsmdb serving", "dir", cfg.Store.Path, "addr", server.URL)
	<-ctx.Done()
	slog.Info("shutting down")

	var errs []error
	if err := server.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := st.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	slog.Info("lsmdb stopped")
	return nil
}
