package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sra-fetch/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the document and taxonomy cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats <dir>",
	Short: "Show how many documents and taxa the cache holds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Open(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("cache:     %s\n", store.Path())
		fmt.Printf("documents: %d\n", st.Documents)
		fmt.Printf("taxa:      %d\n", st.Taxa)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <dir>",
	Short: "Remove every cached document and taxon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Open(args[0])
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Cleared %s\n", store.Path())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
