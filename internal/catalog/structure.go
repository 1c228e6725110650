package catalog

import (
	"sort"
	"strings"
)

// StructureType identifies a kind of generated structure.
type StructureType uint8

const (
	NetherFortress StructureType = iota + 1
	Stronghold
	JungleTemple
	DesertTemple
	Village
	WitchHut
	OceanMonument
	Igloo
	Mineshaft
	WoodlandMansion
	OceanRuins
	Shipwreck
)

type structureInfo struct {
	name  string
	label string
	// biomes the structure may generate in; empty means anywhere.
	biomes []string
}

var structures = map[StructureType]structureInfo{
	NetherFortress:  {name: "nether_fortress", label: "Nether Fortress"},
	Stronghold:      {name: "stronghold", label: "Stronghold"},
	JungleTemple:    {name: "jungle", label: "Jungle Temple", biomes: []string{"jungle", "jungle_m"}},
	DesertTemple:    {name: "desert", label: "Desert Temple", biomes: []string{"desert", "desert_m"}},
	Village:         {name: "village", label: "Village", biomes: []string{"plains", "desert", "savanna", "taiga"}},
	WitchHut:        {name: "witch", label: "Witch Hut", biomes: []string{"swampland", "swampland_m"}},
	OceanMonument:   {name: "ocean_monument", label: "Ocean Monument", biomes: []string{"deep_ocean"}},
	Igloo:           {name: "igloo", label: "Igloo", biomes: []string{"ice_plains", "cold_taiga"}},
	Mineshaft:       {name: "mineshaft", label: "Mineshaft"},
	WoodlandMansion: {name: "woodland_mansion", label: "Woodland Mansion", biomes: []string{"roofed_forest", "roofed_forest_m"}},
	OceanRuins:      {name: "ocean_ruins", label: "Ocean Ruins", biomes: []string{"ocean", "deep_ocean"}},
	Shipwreck:       {name: "shipwreck", label: "Shipwreck", biomes: []string{"ocean", "deep_ocean", "beach"}},
}

func StructureByName(name string) (StructureType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, info := range structures {
		if info.name == name || strings.ToLower(info.label) == name {
			return t, true
		}
	}
	return 0, false
}

func StructureTypes() []StructureType {
	out := make([]StructureType, 0, len(structures))
	for t := range structures {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t StructureType) Name() string  { return structures[t].name }
func (t StructureType) Label() string { return structures[t].label }

func (t StructureType) String() string {
	if info, ok := structures[t]; ok {
		return info.name
	}
	return "unknown_structure"
}

// SpawnBiomes returns the biome ids the structure generates in, or nil
// when it is not restricted.
func (t StructureType) SpawnBiomes() []BiomeID {
	info := structures[t]
	if len(info.biomes) == 0 {
		return nil
	}
	out := make([]BiomeID, 0, len(info.biomes))
	for _, n := range info.biomes {
		if b, ok := BiomeByName(n); ok {
			out = append(out, b.ID)
		}
	}
	return out
}
