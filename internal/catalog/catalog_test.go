package catalog

import "testing"

func TestBiomeLookup(t *testing.T) {
	d, ok := BiomeByName("Desert")
	if !ok || d.ID != 2 {
		t.Fatalf("desert: %+v %v", d, ok)
	}
	if !d.HasVariant() || d.Variant.Name() != "desert_m" {
		t.Fatalf("desert variant: %v", d.Variant)
	}
	r, _ := BiomeByName("river")
	if r.HasVariant() {
		t.Fatalf("river has no variant")
	}
	if BiomeID(999).Name() != "biome#999" {
		t.Fatalf("unknown id name: %s", BiomeID(999).Name())
	}
	for _, b := range BaseBiomes() {
		if b.ID >= variantOffset {
			t.Fatalf("variant %s listed as base biome", b.Name)
		}
	}
}

func TestStructureLookup(t *testing.T) {
	st, ok := StructureByName("Desert Temple")
	if !ok || st != DesertTemple {
		t.Fatalf("by label: %v %v", st, ok)
	}
	if st, ok := StructureByName("village"); !ok || st.Label() != "Village" {
		t.Fatalf("by name: %v %v", st, ok)
	}
	if _, ok := StructureByName("end_city"); ok {
		t.Fatalf("end_city is not supported")
	}
	if Mineshaft.SpawnBiomes() != nil {
		t.Fatalf("mineshafts spawn anywhere")
	}
	if got := WitchHut.SpawnBiomes(); len(got) != 2 || got[0] != 6 {
		t.Fatalf("witch hut biomes: %v", got)
	}
	if len(StructureTypes()) != 12 {
		t.Fatalf("structure count: %d", len(StructureTypes()))
	}
}
