package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lsmkv/pkg/store"
)

func init() {
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
}

var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "store a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			if err := st.Upsert([]byte(args[0]), []byte(args[1])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Aliases: []string{"rm"},
	Short:   "delete a key",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			if err := st.Remove([]byte(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		})
	},
}
