package oracle

import (
	"log"
	"sync"
	"time"

	"seedsift.ai/internal/biomegrid"
	"seedsift.ai/internal/catalog"
	"seedsift.ai/internal/coords"
	"seedsift.ai/internal/filter"
	"seedsift.ai/internal/persistence/fixture"
)

// RequestRecord describes one call into a world oracle.
type RequestRecord struct {
	Kind      string    `json:"kind"`
	Seed      int64     `json:"seed"`
	WorldType string    `json:"world_type"`
	X         int64     `json:"x"`
	Z         int64     `json:"z"`
	Width     int64     `json:"width,omitempty"`
	Height    int64     `json:"height,omitempty"`
	Quarter   bool      `json:"quarter,omitempty"`
	Structure string    `json:"structure,omitempty"`
	Start     time.Time `json:"start"`
	Micros    int64     `json:"duration_us"`
	Error     string    `json:"error,omitempty"`
}

const (
	KindBiomes     = "biomes"
	KindStructures = "structures"
	KindPoint      = "point"
)

type RequestSink interface {
	WriteRequest(RequestRecord) error
}

// Recorder times every request to an inner world and reports it to a
// sink. With capture enabled it also keeps every answer so that the
// evaluation can be replayed later.
type Recorder struct {
	inner   filter.World
	sink    RequestSink
	capture bool
	logger  *log.Logger

	mu sync.Mutex
	fx fixture.Fixture
}

// NewRecorder accepts a nil sink when only capture is wanted.
func NewRecorder(inner filter.World, sink RequestSink, capture bool, logger *log.Logger) *Recorder {
	opts := inner.Options()
	return &Recorder{
		inner:   inner,
		sink:    sink,
		capture: capture,
		logger:  logger,
		fx: fixture.Fixture{Header: fixture.Header{
			Version:   fixture.Version,
			Seed:      opts.Seed,
			WorldType: opts.WorldType,
		}},
	}
}

func (r *Recorder) Options() filter.WorldOptions { return r.inner.Options() }

func (r *Recorder) report(rec RequestRecord, start time.Time, err error) {
	if r.sink == nil {
		return
	}
	opts := r.inner.Options()
	rec.Seed, rec.WorldType = opts.Seed, opts.WorldType
	rec.Start = start.UTC()
	rec.Micros = time.Since(start).Microseconds()
	if err != nil {
		rec.Error = err.Error()
	}
	if werr := r.sink.WriteRequest(rec); werr != nil && r.logger != nil {
		r.logger.Printf("request log: %v", werr)
	}
}

func (r *Recorder) SampleBiomes(region coords.Box, quarter bool) (*biomegrid.Grid, error) {
	start := time.Now()
	g, err := r.inner.SampleBiomes(region, quarter)
	r.report(RequestRecord{
		Kind: KindBiomes, X: region.Corner.X, Z: region.Corner.Y,
		Width: region.Width, Height: region.Height, Quarter: quarter,
	}, start, err)
	if err == nil && r.capture {
		r.mu.Lock()
		r.fx.Samples = append(r.fx.Samples, fixture.SampleV1{
			X: region.Corner.X, Z: region.Corner.Y,
			Width: region.Width, Height: region.Height,
			Quarter: quarter,
			Biomes:  compact(g),
		})
		r.mu.Unlock()
	}
	return g, err
}

func compact(g *biomegrid.Grid) []uint16 {
	out := make([]uint16, 0, g.Len())
	g.All(func(_, _ int, b catalog.BiomeID) bool {
		out = append(out, uint16(b))
		return true
	})
	return out
}

func (r *Recorder) LocateStructures(region coords.Box, t catalog.StructureType) ([]filter.StructureSite, error) {
	start := time.Now()
	sites, err := r.inner.LocateStructures(region, t)
	r.report(RequestRecord{
		Kind: KindStructures, X: region.Corner.X, Z: region.Corner.Y,
		Width: region.Width, Height: region.Height, Structure: t.Name(),
	}, start, err)
	if err == nil && r.capture {
		rec := fixture.StructureV1{
			X: region.Corner.X, Z: region.Corner.Y,
			Width: region.Width, Height: region.Height,
			Type: uint8(t),
		}
		for _, s := range sites {
			rec.Sites = append(rec.Sites, fixture.SiteV1{X: s.Pos.X, Z: s.Pos.Y, Label: s.Label})
		}
		r.mu.Lock()
		r.fx.Structures = append(r.fx.Structures, rec)
		r.mu.Unlock()
	}
	return sites, err
}

func (r *Recorder) BiomeAt(x, y int64) (catalog.BiomeID, error) {
	start := time.Now()
	b, err := r.inner.BiomeAt(x, y)
	r.report(RequestRecord{Kind: KindPoint, X: x, Z: y}, start, err)
	if err == nil && r.capture {
		r.mu.Lock()
		r.fx.Points = append(r.fx.Points, fixture.PointV1{X: x, Z: y, Biome: uint16(b)})
		r.mu.Unlock()
	}
	return b, err
}

// Fixture returns a copy of everything captured so far.
func (r *Recorder) Fixture() fixture.Fixture {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.fx
	out.Samples = append([]fixture.SampleV1(nil), r.fx.Samples...)
	out.Structures = append([]fixture.StructureV1(nil), r.fx.Structures...)
	out.Points = append([]fixture.PointV1(nil), r.fx.Points...)
	return out
}
