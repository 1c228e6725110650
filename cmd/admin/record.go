package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"seedsift.ai/internal/config"
	"seedsift.ai/internal/filter"
	"seedsift.ai/internal/filter/query"
	"seedsift.ai/internal/oracle"
	"seedsift.ai/internal/persistence/fixture"
	"seedsift.ai/internal/protocol"
)

var (
	recordConfig    string
	recordQuery     string
	recordSeed      int64
	recordWorldType string
	recordStep      string
	recordOut       string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Evaluate a query against one seed and save every oracle answer",
	Long: `Runs the query on the synthetic generator for a single seed and
writes a fixture holding every biome sample, structure lookup and point
query the evaluation made. The fixture can be replayed without the
generator.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(recordConfig)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("world_type") {
			cfg.WorldType = recordWorldType
		}
		if cmd.Flags().Changed("step") {
			cfg.GridStep, cfg.CacheTile = recordStep, ""
		}
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			return err
		}
		raw, wf, err := loadQuery(recordQuery, cfg)
		if err != nil {
			return err
		}
		if strings.TrimSpace(recordOut) == "" {
			recordOut = fmt.Sprintf("%d-%s.fx", recordSeed, cfg.WorldType)
		}

		logger := log.New(os.Stderr, "[admin] ", log.LstdFlags|log.Lmicroseconds)
		gen, err := oracle.NewGenerator(recordSeed, cfg.WorldType, cfg.Generator)
		if err != nil {
			return err
		}
		rec := oracle.NewRecorder(gen, nil, true, logger)
		res, stats, err := wf.Evaluate(rec, filter.EvalOptions{MaxRegions: cfg.MaxRegionsPerWorld, Logger: logger})
		if err != nil {
			return err
		}

		fx := rec.Fixture()
		fx.Header.Query, fx.Header.Step = string(raw), cfg.GridStep
		if err := fixture.Write(recordOut, fx); err != nil {
			return err
		}
		logger.Printf("seed %d: verdict=%s regions=%d samples=%d structures=%d points=%d -> %s",
			recordSeed, stats.Verdict, stats.Regions, len(fx.Samples), len(fx.Structures), len(fx.Points), recordOut)
		if res != nil {
			printJSON(protocol.NewHit("", res))
		}
		return nil
	},
}

var replayQuery string

var replayCmd = &cobra.Command{
	Use:   "replay FIXTURE",
	Short: "Evaluate a query against a recorded fixture",
	Long: `Replays a fixture written by 'admin record'. The query stored in the
fixture is used unless --query is given. A request the fixture cannot
answer counts as a generation failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fx, err := fixture.Read(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.Load("")
		if err != nil {
			return err
		}
		if fx.Header.Step != "" {
			cfg.GridStep, cfg.CacheTile = fx.Header.Step, ""
			cfg.Normalize()
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		var wf *filter.WorldFilter
		switch {
		case strings.TrimSpace(replayQuery) != "":
			_, wf, err = loadQuery(replayQuery, cfg)
		case fx.Header.Query != "":
			wf, err = parseQuery([]byte(fx.Header.Query), cfg)
		default:
			err = errors.New("fixture carries no query; pass --query")
		}
		if err != nil {
			return err
		}

		w, err := oracle.NewReplay(fx)
		if err != nil {
			return err
		}
		logger := log.New(os.Stderr, "[admin] ", log.LstdFlags|log.Lmicroseconds)
		res, stats, err := wf.Evaluate(w, filter.EvalOptions{Logger: logger})
		if err != nil {
			return err
		}
		logger.Printf("seed %d: verdict=%s regions=%d gen_errors=%d", fx.Header.Seed, stats.Verdict, stats.Regions, stats.GenerationErrors)
		if res != nil {
			printJSON(protocol.NewHit("", res))
		}
		return nil
	},
}

func loadQuery(path string, cfg config.Config) ([]byte, *filter.WorldFilter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, errors.New("--query is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	wf, err := parseQuery(raw, cfg)
	return raw, wf, err
}

func parseQuery(raw []byte, cfg config.Config) (*filter.WorldFilter, error) {
	wf, err := query.Parse(raw, cfg.Step())
	var pe *query.ParseError
	if errors.As(err, &pe) {
		for _, e := range pe.Errors {
			fmt.Fprintln(os.Stderr, "query:", e)
		}
	}
	return wf, err
}

func init() {
	recordCmd.Flags().StringVar(&recordConfig, "config", "", "path to search.yaml (optional)")
	recordCmd.Flags().StringVar(&recordQuery, "query", "", "path to the JSON query (required)")
	recordCmd.Flags().Int64Var(&recordSeed, "seed", 0, "world seed")
	recordCmd.Flags().StringVar(&recordWorldType, "world_type", "", "world type: default, large_biomes or flat")
	recordCmd.Flags().StringVar(&recordStep, "step", "", "grid step: block, quarter, chunk or fragment")
	recordCmd.Flags().StringVar(&recordOut, "out", "", "fixture path (default <seed>-<world_type>.fx)")

	replayCmd.Flags().StringVar(&replayQuery, "query", "", "path to a JSON query overriding the recorded one")
}
