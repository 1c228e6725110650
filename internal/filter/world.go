package filter

import (
	"seedsift.ai/internal/biomegrid"
	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
)

type WorldOptions struct {
	Seed      int64  `json:"seed"`
	WorldType string `json:"world_type"`
}

// StructureSite is one structure occurrence reported by the oracle, in
// world blocks.
type StructureSite struct {
	Pos   coords.Coordinates
	Label string
}

// World is the terrain oracle of one generated world. Implementations are
// not shared between concurrent evaluations.
type World interface {
	Options() WorldOptions
	// SampleBiomes returns the biomes of region (world blocks), one sample
	// per block or per 4x4 blocks when quarter is set. The grid may be
	// borrowed: it is only valid until the next call on the same World.
	SampleBiomes(region coords.Box, quarter bool) (*biomegrid.Grid, error)
	LocateStructures(region coords.Box, t catalog.StructureType) ([]StructureSite, error)
	BiomeAt(x, y int64) (catalog.BiomeID, error)
}

// Warmer is implemented by worlds that can fetch a region ahead of the
// criteria asking for it (typically a cache).
type Warmer interface {
	Warm(region coords.Box) error
}
