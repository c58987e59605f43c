package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lsmkv/pkg/store"
)

var errNotFound = errors.New("key not found")

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntP("limit", "n", 0, "maximum records to print (0 means all)")
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "print the value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st *store.Store) error {
			value, found, err := st.Get([]byte(args[0]))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%q: %w", args[0], errNotFound)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(value))
			return nil
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [from]",
	Short: "print live records in key order",
	Long:  "scan prints every live record with key >= from, one \"key\\tvalue\" line each.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}
		if limit < 0 {
			return fmt.Errorf("limit must not be negative, got %d", limit)
		}

		var from []byte
		if len(args) == 1 {
			from = []byte(args[0])
		}

		return withStore(func(st *store.Store) error {
			it, err := st.RangeFrom(from)
			if err != nil {
				return err
			}
			defer it.Close()

			out := cmd.OutOrStdout()
			for n := 0; it.Valid() && (limit == 0 || n < limit); n++ {
				fmt.Fprintf(out, "%s\t%s\n", it.Key(), it.Value())
				it.Next()
			}
			return it.Err()
		})
	},
}
