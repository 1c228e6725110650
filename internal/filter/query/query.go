// Package query turns a JSON search query into a filter.WorldFilter.
//
// A query names one match criterion and any number of named goals:
//
//	{"radius": 2048, "match": {"and": [
//	    {"structures": ["village"], "biomes": ["plains"]},
//	    {"biomes": ["jungle"], "variants": true, "radius": 512, "nearest": true}
//	]}}
//
// Containers (and, or, at_least) pass center, radius, shape and nearest down
// to their children; a child's center is relative to its parent's.
package query

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
	"seedsift.ai/internal/filter"
)

//go:embed schemas/query.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("query.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("query.schema.json")
	})
	return schema, schemaErr
}

// ParseError lists every problem found in a query, each prefixed by the
// path of the offending criterion.
type ParseError struct {
	Errors []string
}

func (e *ParseError) Error() string {
	if len(e.Errors) == 1 {
		return "query: " + e.Errors[0]
	}
	return fmt.Sprintf("query: %d errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

const (
	ShapeSquare        = "square"
	ShapeCircle        = "circle"
	ShapeSquareNoCheck = "square_nocheck"
	ShapeCircleNoCheck = "circle_nocheck"
)

type document struct {
	Center  *[2]int64       `json:"center"`
	Radius  *int64          `json:"radius"`
	Shape   *string         `json:"shape"`
	Nearest *bool           `json:"nearest"`
	Match   node            `json:"match"`
	Goals   map[string]node `json:"goals"`
}

type node struct {
	Center  *[2]int64 `json:"center"`
	Radius  *int64    `json:"radius"`
	Shape   *string   `json:"shape"`
	Nearest *bool     `json:"nearest"`
	Negate  bool      `json:"negate"`

	Biomes     []string `json:"biomes"`
	Variants   bool     `json:"variants"`
	Structures []string `json:"structures"`

	And     []node `json:"and"`
	Or      []node `json:"or"`
	AtLeast *int   `json:"at_least"`
	Of      []node `json:"of"`
}

func (n *node) container() bool { return n.And != nil || n.Or != nil || n.AtLeast != nil }

// scope is what a criterion inherits from the containers above it.
type scope struct {
	path    string
	center  coords.Coordinates
	radius  int64
	shape   string
	nearest bool
}

func (s scope) child(name string) scope {
	s.path += name
	return s
}

func (s scope) apply(center *[2]int64, radius *int64, shape *string, nearest *bool, errs *[]string) scope {
	if center != nil {
		s.center = s.center.Offset(center[0], center[1])
	}
	if radius != nil {
		if *radius <= 0 {
			*errs = append(*errs, fmt.Sprintf("%s: the radius must be strictly positive (is %d)", s.path, *radius))
		} else {
			s.radius = *radius
		}
	}
	if shape != nil {
		s.shape = *shape
	}
	if nearest != nil {
		s.nearest = *nearest
	}
	return s
}

type parser struct {
	b    *filter.Builder
	errs []string
}

func (p *parser) errorf(s scope, format string, args ...any) {
	p.errs = append(p.errs, s.path+": "+fmt.Sprintf(format, args...))
}

// Parse validates data against the query schema, then builds the criterion
// tree with cells of the given step. Every schema or semantic problem is
// reported at once in a *ParseError.
func Parse(data []byte, step coords.Resolution) (*filter.WorldFilter, error) {
	b, err := filter.NewBuilder(step)
	if err != nil {
		return nil, err
	}
	sch, err := compiled()
	if err != nil {
		return nil, fmt.Errorf("query schema: %w", err)
	}
	var inst any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&inst); err != nil {
		return nil, &ParseError{Errors: []string{"invalid json: " + err.Error()}}
	}
	if err := sch.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, &ParseError{Errors: schemaErrors(ve)}
		}
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Errors: []string{"invalid json: " + err.Error()}}
	}

	p := &parser{b: b}
	root := scope{path: "query", center: coords.Origin(), shape: ShapeSquare}
	root = root.apply(doc.Center, doc.Radius, doc.Shape, doc.Nearest, &p.errs)

	match := p.criterion(&doc.Match, root.child(".match"))

	names := make([]string, 0, len(doc.Goals))
	for name := range doc.Goals {
		names = append(names, name)
	}
	sort.Strings(names)
	goals := make([]filter.Goal, 0, len(names))
	for _, name := range names {
		g := doc.Goals[name]
		if strings.TrimSpace(name) == "" {
			p.errorf(root.child(".goals"), "goal names must not be empty")
			continue
		}
		if c := p.criterion(&g, root.child(".goals."+name)); c != nil {
			goals = append(goals, filter.Goal{Name: name, Criterion: c})
		}
	}

	if len(p.errs) > 0 {
		return nil, &ParseError{Errors: p.errs}
	}
	wf, err := filter.NewWorldFilter(b, match, goals...)
	if err != nil {
		return nil, &ParseError{Errors: []string{err.Error()}}
	}
	return wf, nil
}

// criterion returns nil once any error was recorded below n.
func (p *parser) criterion(n *node, s scope) filter.Criterion {
	before := len(p.errs)
	s = s.apply(n.Center, n.Radius, n.Shape, n.Nearest, &p.errs)

	var c filter.Criterion
	if n.container() {
		c = p.container(n, s)
	} else {
		c = p.base(n, s)
	}
	if c == nil || len(p.errs) > before {
		return nil
	}
	if n.Negate {
		neg, err := p.b.Negate(c)
		if err != nil {
			p.errorf(s, "%v", err)
			return nil
		}
		return neg
	}
	return c
}

func (p *parser) container(n *node, s scope) filter.Criterion {
	var (
		list []node
		name string
		need int
	)
	switch {
	case n.And != nil:
		list, name, need = n.And, "and", len(n.And)
	case n.Or != nil:
		list, name, need = n.Or, "or", 1
	default:
		list, name, need = n.Of, "of", *n.AtLeast
	}
	children := make([]filter.Criterion, 0, len(list))
	ok := true
	for i := range list {
		c := p.criterion(&list[i], s.child("."+name+"["+strconv.Itoa(i)+"]"))
		if c == nil {
			ok = false
			continue
		}
		children = append(children, c)
	}
	if need > len(list) {
		p.errorf(s, "at_least %d is more than the %d criteria listed", need, len(list))
		return nil
	}
	if !ok {
		return nil
	}
	c, err := p.b.AtLeast(need, children...)
	if err != nil {
		p.errorf(s, "%v", err)
		return nil
	}
	return c
}

func (p *parser) base(n *node, s scope) filter.Criterion {
	if s.radius <= 0 && n.Radius == nil {
		p.errorf(s, "a radius must be specified")
	}
	var square, exact bool
	switch s.shape {
	case ShapeSquare:
		square, exact = true, true
	case ShapeCircle:
		exact = true
	case ShapeSquareNoCheck:
		square = true
	case ShapeCircleNoCheck:
	default:
		p.errorf(s, "unknown shape %s", s.shape)
	}

	biomes := p.biomeSet(n, s)
	structs := p.structureSet(n, s)
	if len(biomes) == 0 && len(structs) == 0 {
		p.errorf(s, "the biome list can't be empty if no structure is specified")
	}
	if s.radius <= 0 {
		return nil
	}

	var area coords.Region
	if square {
		area = coords.BoxAround(s.center, s.radius)
	} else {
		area = coords.NewCircle(s.center, s.radius)
	}
	shortCircuit := !s.nearest

	var list []filter.Criterion
	if len(structs) == 0 {
		for _, id := range biomes {
			list = append(list, p.b.Biome(area, id, shortCircuit, exact))
		}
	} else {
		for _, t := range structs {
			list = append(list, p.b.Structure(area, t, biomes, shortCircuit, exact))
		}
	}
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	}
	c, err := p.b.Or(list...)
	if err != nil {
		p.errorf(s, "%v", err)
		return nil
	}
	return c
}

// biomeSet keeps declaration order; a special variant follows its base
// biome when variants is set.
func (p *parser) biomeSet(n *node, s scope) []catalog.BiomeID {
	seen := map[catalog.BiomeID]bool{}
	var out []catalog.BiomeID
	add := func(id catalog.BiomeID) {
		if seen[id] {
			p.errorf(s, "duplicate biome %s", id.Name())
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, name := range n.Biomes {
		b, ok := catalog.BiomeByName(name)
		if !ok {
			p.errorf(s, "the biome %s doesn't exist", name)
			continue
		}
		add(b.ID)
		if n.Variants && b.HasVariant() {
			add(b.Variant)
		}
	}
	return out
}

func (p *parser) structureSet(n *node, s scope) []catalog.StructureType {
	seen := map[catalog.StructureType]bool{}
	var out []catalog.StructureType
	for _, name := range n.Structures {
		t, ok := catalog.StructureByName(name)
		if !ok {
			p.errorf(s, "the structure %s doesn't exist", name)
			continue
		}
		if seen[t] {
			p.errorf(s, "duplicate structure %s", t.Name())
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func schemaErrors(ve *jsonschema.ValidationError) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			msg := pointerPath(e.InstanceLocation) + ": " + e.Message
			if !seen[msg] {
				seen[msg] = true
				out = append(out, msg)
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

// pointerPath renders a JSON pointer like /match/and/1 as query.match.and[1].
func pointerPath(ptr string) string {
	var sb strings.Builder
	sb.WriteString("query")
	for _, seg := range strings.Split(ptr, "/") {
		if seg == "" {
			continue
		}
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			sb.WriteString("[" + seg + "]")
			continue
		}
		sb.WriteString("." + seg)
	}
	return sb.String()
}
