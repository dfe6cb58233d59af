// Package fixtures builds synthetic chunks and region files for tests.
package fixtures

import (
	"github.com/Tnze/go-mc/nbt"
	"github.com/maxsupermanhd/regionmap/chunk"
	rnbt "github.com/maxsupermanhd/regionmap/lib/nbt"
)

// DataVersion116 and DataVersion118 are 1.16.5 and 1.18.2 saves
const (
	DataVersion116 = 2586
	DataVersion118 = 2975
)

// Chunk is a mutable 16x16 block column, unset blocks are air
type Chunk struct {
	X, Z        int32
	DataVersion int32
	MinSection  int8
	sections    map[int8]*[chunk.SectionSize]string
}

func NewChunk(x, z int32) *Chunk {
	return &Chunk{
		X:           x,
		Z:           z,
		DataVersion: DataVersion118,
		MinSection:  -4,
		sections:    map[int8]*[chunk.SectionSize]string{},
	}
}

// Set places block name at column x z and absolute height y
func (c *Chunk) Set(x, y, z int, name string) *Chunk {
	sy := int8(y >> 4)
	s, ok := c.sections[sy]
	if !ok {
		s = &[chunk.SectionSize]string{}
		c.sections[sy] = s
	}
	s[(y&15)*256+z*16+x] = name
	return c
}

// Column fills x z from bottom to top inclusive
func (c *Chunk) Column(x, z, bottom, top int, name string) *Chunk {
	for y := bottom; y <= top; y++ {
		c.Set(x, y, z, name)
	}
	return c
}

// Layer fills the whole 16x16 plane at height y
func (c *Chunk) Layer(y int, name string) *Chunk {
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			c.Set(x, y, z, name)
		}
	}
	return c
}

type paletteEntry struct {
	Name string `nbt:"Name"`
}

type blockStates struct {
	Palette []paletteEntry `nbt:"palette"`
	Data    []int64        `nbt:"data"`
}

type modernSection struct {
	Y           int8        `nbt:"Y"`
	BlockStates blockStates `nbt:"block_states"`
}

type modernChunk struct {
	DataVersion int32           `nbt:"DataVersion"`
	XPos        int32           `nbt:"xPos"`
	YPos        int32           `nbt:"yPos"`
	ZPos        int32           `nbt:"zPos"`
	Status      string          `nbt:"Status"`
	Sections    []modernSection `nbt:"sections"`
}

type legacySection struct {
	Y           int8           `nbt:"Y"`
	Palette     []paletteEntry `nbt:"Palette"`
	BlockStates []int64        `nbt:"BlockStates"`
}

type legacyLevel struct {
	XPos     int32           `nbt:"xPos"`
	ZPos     int32           `nbt:"zPos"`
	Status   string          `nbt:"Status"`
	Sections []legacySection `nbt:"Sections"`
}

type legacyChunk struct {
	DataVersion int32       `nbt:"DataVersion"`
	Level       legacyLevel `nbt:"Level"`
}

// palette builds palette and packed data of one section, air first
// as the game does. Uniform sections get no data.
func palette(blocks *[chunk.SectionSize]string) ([]paletteEntry, []int64) {
	ids := map[string]int{chunk.Air: 0}
	pal := []paletteEntry{{Name: chunk.Air}}
	indices := make([]int, chunk.SectionSize)
	for i, b := range blocks {
		if b == "" {
			b = chunk.Air
		}
		id, ok := ids[b]
		if !ok {
			id = len(pal)
			ids[b] = id
			pal = append(pal, paletteEntry{Name: b})
		}
		indices[i] = id
	}
	if len(pal) == 1 {
		return pal, nil
	}
	return pal, PackIndices(indices, chunk.PaletteBits(len(pal)))
}

func (c *Chunk) sortedSections() []int8 {
	ret := []int8{}
	for y := int8(-128); ; y++ {
		if _, ok := c.sections[y]; ok {
			ret = append(ret, y)
		}
		if y == 127 {
			break
		}
	}
	return ret
}

// Marshal encodes the chunk in 1.18+ layout, uncompressed
func (c *Chunk) Marshal() ([]byte, error) {
	mc := modernChunk{
		DataVersion: c.DataVersion,
		XPos:        c.X,
		YPos:        int32(c.MinSection),
		ZPos:        c.Z,
		Status:      "full",
		Sections:    []modernSection{},
	}
	for _, y := range c.sortedSections() {
		p, d := palette(c.sections[y])
		mc.Sections = append(mc.Sections, modernSection{
			Y:           y,
			BlockStates: blockStates{Palette: p, Data: d},
		})
	}
	return nbt.Marshal(mc)
}

// MarshalLegacy encodes the chunk in 1.16-1.17 layout, uncompressed
func (c *Chunk) MarshalLegacy() ([]byte, error) {
	lc := legacyChunk{
		DataVersion: DataVersion116,
		Level: legacyLevel{
			XPos:     c.X,
			ZPos:     c.Z,
			Status:   "full",
			Sections: []legacySection{},
		},
	}
	for _, y := range c.sortedSections() {
		p, d := palette(c.sections[y])
		if d == nil {
			d = make([]int64, 256)
		}
		lc.Level.Sections = append(lc.Level.Sections, legacySection{
			Y:           y,
			Palette:     p,
			BlockStates: d,
		})
	}
	return nbt.Marshal(lc)
}

// Compound marshals the chunk and decodes it back into a tag tree
func (c *Chunk) Compound() (*rnbt.Compound, error) {
	b, err := c.Marshal()
	if err != nil {
		return nil, err
	}
	return rnbt.DecodeBytes(b, rnbt.CompressionNone)
}

// PackIndices packs values into longs without spanning entries across
// long boundaries, lowest bits first
func PackIndices(values []int, bits int) []int64 {
	perLong := 64 / bits
	ret := make([]int64, (len(values)+perLong-1)/perLong)
	for i, v := range values {
		ret[i/perLong] |= int64(uint64(v) << (uint(i%perLong) * uint(bits)))
	}
	return ret
}
