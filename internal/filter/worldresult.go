package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
)

var ErrBiomeConflict = errors.New("filter: conflicting biomes at one coordinate")

// ResultItem is what was found at one coordinate of a matched world.
type ResultItem struct {
	Biome      *catalog.BiomeID
	structures map[catalog.StructureType]struct{}
	Goal       string

	sealed *bool
}

func (it *ResultItem) mutable() {
	if it.sealed != nil && *it.sealed {
		panic("filter: world result is complete and can no longer change")
	}
}

// SetBiome records the biome at this coordinate. A different biome than
// the one already recorded is an error.
func (it *ResultItem) SetBiome(b catalog.BiomeID) error {
	it.mutable()
	if it.Biome != nil {
		if *it.Biome != b {
			return fmt.Errorf("%w: %s and %s", ErrBiomeConflict, it.Biome.Name(), b.Name())
		}
		return nil
	}
	it.Biome = &b
	return nil
}

func (it *ResultItem) AddStructure(t catalog.StructureType) {
	it.mutable()
	if it.structures == nil {
		it.structures = make(map[catalog.StructureType]struct{})
	}
	it.structures[t] = struct{}{}
}

// Structures returns the recorded structure types in ascending order.
func (it *ResultItem) Structures() []catalog.StructureType {
	out := make([]catalog.StructureType, 0, len(it.structures))
	for t := range it.structures {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// tag keeps the first goal that reported the coordinate.
func (it *ResultItem) tag(goal string) {
	if goal != "" && it.Goal == "" {
		it.mutable()
		it.Goal = goal
	}
}

// WorldFilterResult aggregates what the satisfied criteria found in one
// world.
type WorldFilterResult struct {
	Options WorldOptions

	goals  map[string]struct{}
	items  map[coords.Coordinates]*ResultItem
	sealed bool
}

func NewWorldFilterResult(opts WorldOptions) *WorldFilterResult {
	return &WorldFilterResult{
		Options: opts,
		goals:   make(map[string]struct{}),
		items:   make(map[coords.Coordinates]*ResultItem),
	}
}

// ItemFor returns the item at pos, creating it when needed.
func (wr *WorldFilterResult) ItemFor(pos coords.Coordinates) *ResultItem {
	if it, ok := wr.items[pos]; ok {
		return it
	}
	if wr.sealed {
		panic("filter: world result is complete and can no longer change")
	}
	it := &ResultItem{sealed: &wr.sealed}
	wr.items[pos] = it
	return it
}

func (wr *WorldFilterResult) AddGoal(name string) {
	if wr.sealed {
		panic("filter: world result is complete and can no longer change")
	}
	wr.goals[name] = struct{}{}
}

// Goals returns the satisfied goal names, sorted.
func (wr *WorldFilterResult) Goals() []string {
	out := make([]string, 0, len(wr.goals))
	for g := range wr.goals {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func (wr *WorldFilterResult) Len() int { return len(wr.items) }

// Item returns the item at pos, if any.
func (wr *WorldFilterResult) Item(pos coords.Coordinates) (*ResultItem, bool) {
	it, ok := wr.items[pos]
	return it, ok
}

type PositionedItem struct {
	Pos  coords.Coordinates
	Item *ResultItem
}

// SortedItems orders items by row then column.
func (wr *WorldFilterResult) SortedItems() []PositionedItem {
	out := make([]PositionedItem, 0, len(wr.items))
	for pos, it := range wr.items {
		out = append(out, PositionedItem{Pos: pos, Item: it})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Y != out[j].Pos.Y {
			return out[i].Pos.Y < out[j].Pos.Y
		}
		return out[i].Pos.X < out[j].Pos.X
	})
	return out
}

// Seal marks the result complete. Later mutation panics.
func (wr *WorldFilterResult) Seal() { wr.sealed = true }

type itemJSON struct {
	X          int64    `json:"x"`
	Z          int64    `json:"z"`
	Biome      string   `json:"biome,omitempty"`
	Structures []string `json:"structures,omitempty"`
	Goal       string   `json:"goal,omitempty"`
}

type worldResultJSON struct {
	Seed      int64      `json:"seed"`
	WorldType string     `json:"world_type"`
	Goals     []string   `json:"goals"`
	Items     []itemJSON `json:"items"`
}

func (wr *WorldFilterResult) MarshalJSON() ([]byte, error) {
	out := worldResultJSON{
		Seed:      wr.Options.Seed,
		WorldType: wr.Options.WorldType,
		Goals:     wr.Goals(),
		Items:     []itemJSON{},
	}
	for _, p := range wr.SortedItems() {
		j := itemJSON{X: p.Pos.X, Z: p.Pos.Y, Goal: p.Item.Goal}
		if p.Item.Biome != nil {
			j.Biome = p.Item.Biome.Name()
		}
		for _, t := range p.Item.Structures() {
			j.Structures = append(j.Structures, t.Name())
		}
		out.Items = append(out.Items, j)
	}
	return json.Marshal(out)
}
