package oracle

import (
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"seedsift.ai/internal/biomegrid"
	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
	"seedsift.ai/internal/filter"
)

// Cached keeps owned quarter-resolution tiles of an inner world and
// answers requests that fall inside one tile with views into it. Other
// requests go straight to the inner world.
type Cached struct {
	inner filter.World
	tile  coords.Resolution
	cache *ristretto.Cache[string, *biomegrid.Grid]

	hits   atomic.Uint64
	misses atomic.Uint64
}

type CacheStats struct {
	Hits   uint64
	Misses uint64
}

// NewCached caches up to maxTiles tiles of side tile.Step() blocks.
func NewCached(inner filter.World, tile coords.Resolution, maxTiles int64) (*Cached, error) {
	if tile < coords.Quarter {
		return nil, fmt.Errorf("cache tile %s is finer than a quarter sample", tile)
	}
	if maxTiles <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxTiles)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *biomegrid.Grid]{
		NumCounters:        maxTiles * 10,
		MaxCost:            maxTiles,
		BufferItems:        64,
		IgnoreInternalCost: true, // costs count tiles, not bytes
	})
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, tile: tile, cache: c}, nil
}

func (c *Cached) Options() filter.WorldOptions { return c.inner.Options() }

func (c *Cached) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close releases the cache; the inner world is left open.
func (c *Cached) Close() error {
	c.cache.Close()
	return nil
}

func (c *Cached) tileFor(region coords.Box) (coords.Box, bool) {
	if region.Corner.Res != coords.World || region.Empty() {
		return coords.Box{}, false
	}
	m := coords.Quarter.Step() - 1
	if region.Corner.X&m != 0 || region.Corner.Y&m != 0 || region.Width&m != 0 || region.Height&m != 0 {
		return coords.Box{}, false
	}
	size := c.tile.Step()
	nw := region.Corner.SnapDown(c.tile)
	t := coords.NewBox(nw.X, nw.Y, size, size)
	return t, t.ContainsBox(region)
}

func tileKey(t coords.Box) string {
	return fmt.Sprintf("%d:%d", t.Corner.X, t.Corner.Y)
}

func (c *Cached) fetch(t coords.Box) (*biomegrid.Grid, error) {
	key := tileKey(t)
	if g, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return g, nil
	}
	c.misses.Add(1)
	g, err := c.inner.SampleBiomes(t, true)
	if err != nil {
		return nil, err
	}
	owned := g.Clone()
	c.cache.Set(key, owned, 1)
	c.cache.Wait()
	return owned, nil
}

// SampleBiomes serves quarter-resolution requests from the tile cache.
// The returned grid is a borrowed view and must not be modified.
func (c *Cached) SampleBiomes(region coords.Box, quarter bool) (*biomegrid.Grid, error) {
	if !quarter {
		return c.inner.SampleBiomes(region, false)
	}
	t, ok := c.tileFor(region)
	if !ok {
		return c.inner.SampleBiomes(region, true)
	}
	g, err := c.fetch(t)
	if err != nil {
		return nil, err
	}
	s := coords.Quarter.Shift()
	return g.View(
		int((region.Corner.X-t.Corner.X)>>s), int((region.Corner.Y-t.Corner.Y)>>s),
		int(region.Width>>s), int(region.Height>>s))
}

// Warm loads the tile holding region.
func (c *Cached) Warm(region coords.Box) error {
	t, ok := c.tileFor(region)
	if !ok {
		return nil
	}
	_, err := c.fetch(t)
	return err
}

func (c *Cached) LocateStructures(region coords.Box, t catalog.StructureType) ([]filter.StructureSite, error) {
	return c.inner.LocateStructures(region, t)
}

func (c *Cached) BiomeAt(x, y int64) (catalog.BiomeID, error) {
	return c.inner.BiomeAt(x, y)
}
