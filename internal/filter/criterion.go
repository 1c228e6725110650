package filter

import (
	"errors"
	"fmt"
	"strings"

	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
)

// Criterion is an immutable node of a search predicate tree. Nodes are
// created by a Builder, which gives each of them a stable index into the
// Results of an evaluation.
type Criterion interface {
	Index() int
	Children() []Criterion
	String() string

	newResult() result
}

var ErrConfig = errors.New("filter: invalid criterion")

// Builder creates criterion nodes and assigns their indexes. All nodes of
// one filter must come from the same Builder.
type Builder struct {
	step  coords.Resolution
	nodes []Criterion
}

// NewBuilder returns a builder whose leaves split their area into cells of
// the given resolution.
func NewBuilder(step coords.Resolution) (*Builder, error) {
	if step < coords.Quarter {
		return nil, fmt.Errorf("%w: cell step %s is finer than a quarter-resolution sample", ErrConfig, step)
	}
	return &Builder{step: step}, nil
}

func (b *Builder) Step() coords.Resolution { return b.step }

// Len is the number of nodes created so far.
func (b *Builder) Len() int { return len(b.nodes) }

func (b *Builder) node(i int) Criterion { return b.nodes[i] }

func (b *Builder) owns(c Criterion) bool {
	if c == nil {
		return false
	}
	i := c.Index()
	return i >= 0 && i < len(b.nodes) && b.nodes[i] == c
}

func (b *Builder) add(c Criterion) {
	b.nodes = append(b.nodes, c)
}

type leafSpec struct {
	index        int
	area         coords.Region
	step         coords.Resolution
	shortCircuit bool
	checkBounds  bool
}

func (l *leafSpec) Index() int { return l.index }
func (l *leafSpec) Children() []Criterion { return nil }
func (l *leafSpec) Area() coords.Region { return l.area }
func (l *leafSpec) ShortCircuit() bool { return l.shortCircuit }
func (l *leafSpec) CheckExactBounds() bool { return l.checkBounds }

func (l *leafSpec) flags() string {
	var parts []string
	if l.shortCircuit {
		parts = append(parts, "first")
	} else {
		parts = append(parts, "nearest")
	}
	if !l.checkBounds {
		parts = append(parts, "nocheck")
	}
	return strings.Join(parts, ",")
}

// BiomeCriterion matches when the biome is sampled inside its area.
type BiomeCriterion struct {
	leafSpec
	biome catalog.BiomeID
}

// Biome creates a biome-presence leaf. area is in world blocks.
func (b *Builder) Biome(area coords.Region, biome catalog.BiomeID, shortCircuit, checkExactBounds bool) *BiomeCriterion {
	c := &BiomeCriterion{
		leafSpec: leafSpec{index: len(b.nodes), area: area, step: b.step, shortCircuit: shortCircuit, checkBounds: checkExactBounds},
		biome:    biome,
	}
	b.add(c)
	return c
}

func (c *BiomeCriterion) BiomeID() catalog.BiomeID { return c.biome }

func (c *BiomeCriterion) String() string {
	return fmt.Sprintf("biome(%s in %v, %s)", c.biome.Name(), c.area.Bounds(), c.flags())
}

func (c *BiomeCriterion) newResult() result { return newBiomeResult(c) }

// StructureCriterion matches when a structure of the given type lies in
// its area, optionally only in one of the allowed biomes.
type StructureCriterion struct {
	leafSpec
	structure catalog.StructureType
	biomes    []catalog.BiomeID
}

// Structure creates a structure-presence leaf. An empty allowedBiomes
// accepts the structure in any biome.
func (b *Builder) Structure(area coords.Region, t catalog.StructureType, allowedBiomes []catalog.BiomeID, shortCircuit, checkExactBounds bool) *StructureCriterion {
	c := &StructureCriterion{
		leafSpec:  leafSpec{index: len(b.nodes), area: area, step: b.step, shortCircuit: shortCircuit, checkBounds: checkExactBounds},
		structure: t,
		biomes:    append([]catalog.BiomeID(nil), allowedBiomes...),
	}
	b.add(c)
	return c
}

func (c *StructureCriterion) StructureType() catalog.StructureType { return c.structure }

func (c *StructureCriterion) AllowedBiomes() []catalog.BiomeID {
	return append([]catalog.BiomeID(nil), c.biomes...)
}

func (c *StructureCriterion) String() string {
	s := fmt.Sprintf("structure(%s in %v, %s", c.structure, c.area.Bounds(), c.flags())
	if len(c.biomes) > 0 {
		names := make([]string, len(c.biomes))
		for i, id := range c.biomes {
			names[i] = id.Name()
		}
		s += ", biomes=" + strings.Join(names, "|")
	}
	return s + ")"
}

func (c *StructureCriterion) newResult() result { return newStructureResult(c) }

// AtLeastCriterion matches when at least n of its children match.
type AtLeastCriterion struct {
	index    int
	n        int
	children []Criterion
	// shortCircuit is set when every leaf below stops at its first match;
	// the node then takes cells from its first undecided child instead of
	// the cheapest one.
	shortCircuit bool
}

// AtLeast rejects thresholds outside [1, len(children)].
func (b *Builder) AtLeast(n int, children ...Criterion) (*AtLeastCriterion, error) {
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: at_least needs at least one child", ErrConfig)
	}
	if n < 1 || n > len(children) {
		return nil, fmt.Errorf("%w: at_least threshold %d outside [1, %d]", ErrConfig, n, len(children))
	}
	for _, ch := range children {
		if !b.owns(ch) {
			return nil, fmt.Errorf("%w: child %v was not created by this builder", ErrConfig, ch)
		}
	}
	c := &AtLeastCriterion{
		index:        len(b.nodes),
		n:            n,
		children:     append([]Criterion(nil), children...),
		shortCircuit: allShortCircuit(children),
	}
	b.add(c)
	return c, nil
}

// And matches when every child matches.
func (b *Builder) And(children ...Criterion) (*AtLeastCriterion, error) {
	return b.AtLeast(len(children), children...)
}

// Or matches when any child matches.
func (b *Builder) Or(children ...Criterion) (*AtLeastCriterion, error) {
	return b.AtLeast(1, children...)
}

func allShortCircuit(cs []Criterion) bool {
	for _, c := range cs {
		switch n := c.(type) {
		case *BiomeCriterion:
			if !n.shortCircuit {
				return false
			}
		case *StructureCriterion:
			if !n.shortCircuit {
				return false
			}
		case *AtLeastCriterion:
			if !n.shortCircuit {
				return false
			}
		case *NegateCriterion:
			if !allShortCircuit(n.Children()) {
				return false
			}
		}
	}
	return true
}

func (c *AtLeastCriterion) Index() int { return c.index }
func (c *AtLeastCriterion) Threshold() int { return c.n }
func (c *AtLeastCriterion) Children() []Criterion { return append([]Criterion(nil), c.children...) }

func (c *AtLeastCriterion) String() string {
	parts := make([]string, len(c.children))
	for i, ch := range c.children {
		parts[i] = ch.String()
	}
	return fmt.Sprintf("at_least(%d, [%s])", c.n, strings.Join(parts, ", "))
}

func (c *AtLeastCriterion) newResult() result { return newAtLeastResult(c) }

// NegateCriterion inverts the verdict of its child.
type NegateCriterion struct {
	index int
	child Criterion
}

func (b *Builder) Negate(child Criterion) (*NegateCriterion, error) {
	if !b.owns(child) {
		return nil, fmt.Errorf("%w: child %v was not created by this builder", ErrConfig, child)
	}
	c := &NegateCriterion{index: len(b.nodes), child: child}
	b.add(c)
	return c, nil
}

func (c *NegateCriterion) Index() int { return c.index }
func (c *NegateCriterion) Child() Criterion { return c.child }
func (c *NegateCriterion) Children() []Criterion { return []Criterion{c.child} }
func (c *NegateCriterion) String() string { return "not(" + c.child.String() + ")" }
func (c *NegateCriterion) newResult() result { return negateResult{child: c.child} }
