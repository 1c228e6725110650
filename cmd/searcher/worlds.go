package main

import (
	"log"

	"seedsift.ai/internal/config"
	"seedsift.ai/internal/filter"
	"seedsift.ai/internal/oracle"
	"seedsift.ai/internal/searcher"
)

// worldFactory stacks the synthetic generator, the request recorder (when
// a sink is given) and the tile cache (when enabled). The searcher closes
// the cache after each world.
func worldFactory(cfg config.Config, sink oracle.RequestSink, logger *log.Logger) searcher.WorldFactory {
	return func(seed int64, worldType string) (filter.World, error) {
		gen, err := oracle.NewGenerator(seed, worldType, cfg.Generator)
		if err != nil {
			return nil, err
		}
		var w filter.World = gen
		if sink != nil {
			w = oracle.NewRecorder(w, sink, false, logger)
		}
		if cfg.CacheEntries > 0 {
			return oracle.NewCached(w, cfg.Tile(), cfg.CacheEntries)
		}
		return w, nil
	}
}
