package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// BiomeID is the small-integer biome id stored in biome grids.
type BiomeID uint16

type Biome struct {
	ID   BiomeID
	Name string
	// Variant is the id of the special ("M"/hills) variant, or ID itself
	// when the biome has none.
	Variant BiomeID
}

const variantOffset = 128

var biomes = []Biome{
	{ID: 0, Name: "ocean"},
	{ID: 1, Name: "plains", Variant: 129},
	{ID: 2, Name: "desert", Variant: 130},
	{ID: 3, Name: "extreme_hills", Variant: 131},
	{ID: 4, Name: "forest", Variant: 132},
	{ID: 5, Name: "taiga", Variant: 133},
	{ID: 6, Name: "swampland", Variant: 134},
	{ID: 7, Name: "river"},
	{ID: 12, Name: "ice_plains", Variant: 140},
	{ID: 14, Name: "mushroom_island"},
	{ID: 16, Name: "beach"},
	{ID: 21, Name: "jungle", Variant: 149},
	{ID: 24, Name: "deep_ocean"},
	{ID: 27, Name: "birch_forest", Variant: 155},
	{ID: 29, Name: "roofed_forest", Variant: 157},
	{ID: 30, Name: "cold_taiga", Variant: 158},
	{ID: 35, Name: "savanna", Variant: 163},
	{ID: 37, Name: "mesa", Variant: 165},
	{ID: 129, Name: "sunflower_plains"},
	{ID: 130, Name: "desert_m"},
	{ID: 131, Name: "extreme_hills_m"},
	{ID: 132, Name: "flower_forest"},
	{ID: 133, Name: "taiga_m"},
	{ID: 134, Name: "swampland_m"},
	{ID: 140, Name: "ice_plains_spikes"},
	{ID: 149, Name: "jungle_m"},
	{ID: 155, Name: "birch_forest_m"},
	{ID: 157, Name: "roofed_forest_m"},
	{ID: 158, Name: "cold_taiga_m"},
	{ID: 163, Name: "savanna_m"},
	{ID: 165, Name: "mesa_bryce"},
}

var (
	biomeByID   = map[BiomeID]Biome{}
	biomeByName = map[string]Biome{}
)

func init() {
	for _, b := range biomes {
		if b.Variant == 0 {
			b.Variant = b.ID
		}
		biomeByID[b.ID] = b
		biomeByName[b.Name] = b
	}
}

func BiomeByName(name string) (Biome, bool) {
	b, ok := biomeByName[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

func BiomeByID(id BiomeID) (Biome, bool) {
	b, ok := biomeByID[id]
	return b, ok
}

// BaseBiomes lists the biomes that are not themselves special variants,
// ordered by id.
func BaseBiomes() []Biome {
	out := make([]Biome, 0, len(biomes))
	for _, b := range biomeByID {
		if b.ID < variantOffset {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (id BiomeID) Name() string {
	if b, ok := biomeByID[id]; ok {
		return b.Name
	}
	return fmt.Sprintf("biome#%d", uint16(id))
}

func (id BiomeID) String() string { return id.Name() }

func (b Biome) HasVariant() bool { return b.Variant != b.ID }
