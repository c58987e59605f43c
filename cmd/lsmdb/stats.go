package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lsmkv/pkg/store"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			s := st.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dir:             %s\n", cfg.Store.Path)
			fmt.Fprintf(out, "generations:     %d\n", s.Generations)
			fmt.Fprintf(out, "next generation: %d\n", s.NextGeneration)
			fmt.Fprintf(out, "memtable keys:   %d\n", s.MemtableKeys)
			fmt.Fprintf(out, "memtable bytes:  %d\n", s.MemtableBytes)
			return nil
		})
	},
}
