package fixture

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int    `json:"version"`
	Seed      int64  `json:"seed"`
	WorldType string `json:"world_type"`
	// Query is the filter the recording was made for, when known, and Step
	// the grid step it was parsed with.
	Query string `json:"query,omitempty"`
	Step  string `json:"step,omitempty"`
}

// Fixture is everything an oracle answered while one world was evaluated,
// replayable without the generator.
type Fixture struct {
	Header Header `json:"header"`

	Samples    []SampleV1    `json:"samples"`
	Structures []StructureV1 `json:"structures"`
	Points     []PointV1     `json:"points,omitempty"`
}

// SampleV1 is one biome grid request, in world blocks. Biomes is compact
// row-major (width/4 * height/4 entries when Quarter is set).
type SampleV1 struct {
	X       int64    `json:"x"`
	Z       int64    `json:"z"`
	Width   int64    `json:"width"`
	Height  int64    `json:"height"`
	Quarter bool     `json:"quarter"`
	Biomes  []uint16 `json:"biomes"`
}

type StructureV1 struct {
	X      int64    `json:"x"`
	Z      int64    `json:"z"`
	Width  int64    `json:"width"`
	Height int64    `json:"height"`
	Type   uint8    `json:"type"`
	Sites  []SiteV1 `json:"sites"`
}

type SiteV1 struct {
	X     int64  `json:"x"`
	Z     int64  `json:"z"`
	Label string `json:"label"`
}

type PointV1 struct {
	X     int64  `json:"x"`
	Z     int64  `json:"z"`
	Biome uint16 `json:"biome"`
}

func Write(path string, fx Fixture) error {
	if fx.Header.Version == 0 {
		fx.Header.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(fx.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&fx); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func Read(path string) (Fixture, error) {
	var fx Fixture
	f, err := os.Open(path)
	if err != nil {
		return fx, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fx, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The header is repeated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return fx, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&fx); err != nil {
		return fx, fmt.Errorf("gob decode: %w", err)
	}
	if fx.Header.Version != Version {
		return fx, fmt.Errorf("fixture version %d not supported", fx.Header.Version)
	}
	return fx, nil
}
