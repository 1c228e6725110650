package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"seedsift.ai/internal/persistence/indexdb"
)

var (
	dataDir string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Inspect past searches and record oracle fixtures",
	Long: `Offline tools for the seed searcher.

Examples:
  admin searches --limit 5
  admin hits 2b1c0f6e-... --data ./data
  admin record --query village.json --seed 42 --out village-42.fx
  admin replay --query village.json village-42.fx`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "search index path (default <data>/index/searches.sqlite)")

	rootCmd.AddCommand(searchesCmd, hitsCmd, recordCmd, replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openIndex() (*indexdb.SQLiteIndex, error) {
	path := strings.TrimSpace(dbPath)
	if path == "" {
		path = filepath.Join(dataDir, "index", "searches.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return indexdb.OpenSQLite(path)
}

func printJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal:", err)
		return
	}
	fmt.Println(string(b))
}
