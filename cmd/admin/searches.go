package main

import (
	"github.com/spf13/cobra"
)

var (
	searchesLimit int
	worldsStatus  string
)

var searchesCmd = &cobra.Command{
	Use:   "searches",
	Short: "List recorded searches, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			return err
		}
		defer idx.Close()
		rows, err := idx.ListSearches(cmd.Context(), searchesLimit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
		return nil
	},
}

var hitsCmd = &cobra.Command{
	Use:   "hits SEARCH_ID",
	Short: "List the worlds of a search with their result items",
	Long: `Prints one JSON line per world. Only matched worlds are listed unless
--status names another one (rejected, skipped) or is empty.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := openIndex()
		if err != nil {
			return err
		}
		defer idx.Close()
		rows, err := idx.ListWorlds(cmd.Context(), args[0], worldsStatus)
		if err != nil {
			return err
		}
		for _, r := range rows {
			printJSON(r)
		}
		return nil
	},
}

func init() {
	searchesCmd.Flags().IntVar(&searchesLimit, "limit", 20, "result limit")
	hitsCmd.Flags().StringVar(&worldsStatus, "status", "matched", "world status filter")
}
