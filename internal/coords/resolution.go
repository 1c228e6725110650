package coords

import (
	"fmt"
	"strings"
)

// Resolution is a sampling resolution expressed as a power-of-two shift
// relative to world blocks.
type Resolution uint8

const (
	World       Resolution = 0
	Quarter     Resolution = 2
	Nether      Resolution = 3
	Chunk       Resolution = 4
	NetherChunk Resolution = 7
	Fragment    Resolution = 9
)

var resolutionNames = map[Resolution]string{
	World:       "world",
	Quarter:     "quarter",
	Nether:      "nether",
	Chunk:       "chunk",
	NetherChunk: "nether_chunk",
	Fragment:    "fragment",
}

func (r Resolution) Shift() int { return int(r) }

// Step is the number of world blocks covered by one unit of r.
func (r Resolution) Step() int64 { return int64(1) << r }

// StepsPer returns how many units of r fit in one unit of coarser.
func (r Resolution) StepsPer(coarser Resolution) int64 {
	if coarser < r {
		panic(fmt.Sprintf("coords: %s is finer than %s", coarser, r))
	}
	return int64(1) << (coarser - r)
}

func (r Resolution) String() string {
	if n, ok := resolutionNames[r]; ok {
		return n
	}
	return fmt.Sprintf("res(%d)", uint8(r))
}

func ParseResolution(name string) (Resolution, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for r, n := range resolutionNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown resolution %q", name)
}

// MarshalText lets resolutions appear by name in yaml and json.
func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Resolution) UnmarshalText(b []byte) error {
	v, err := ParseResolution(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
