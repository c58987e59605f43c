package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lsmkv/pkg/config"
	"lsmkv/pkg/metrics"
	"lsmkv/pkg/store"
)

var (
	configPath string
	dirFlag    string
	threshold  int64

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "lsmdb",
	Short:         "embedded LSM key-value store",
	Long:          "lsmdb stores byte keys and values in a directory of immutable sorted tables.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := initConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("dir") {
			loaded.Store.Path = dirFlag
		}
		if cmd.Flags().Changed("threshold") {
			loaded.Store.FlushThresholdBytes = threshold
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		cfg = loaded
		return initLogger(&cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "storage directory (overrides store.path)")
	rootCmd.PersistentFlags().Int64Var(&threshold, "threshold", 0, "memtable flush threshold in bytes (overrides store.flush_threshold)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore opens the configured directory. The caller must Close it.
func openStore(reg metrics.Collector) (*store.Store, error) {
	opts := []store.Option{}
	if reg != nil {
		opts = append(opts, store.WithMetrics(reg))
	}
	st, err := store.Open(cfg.Store.Path, cfg.Store.FlushThresholdBytes, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// withStore runs fn against a freshly opened store and closes it afterwards,
// which flushes whatever fn wrote.
func withStore(fn func(st *store.Store) error) (err error) {
	st, err := openStore(nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close store: %w", cerr)
		}
	}()

	return fn(st)
}
