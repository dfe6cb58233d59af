// Package chunk interprets decoded chunk tag trees as block grids.
package chunk

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"

	"github.com/Tnze/go-mc/level"
	"github.com/maxsupermanhd/regionmap/definitions"
	"github.com/maxsupermanhd/regionmap/lib/nbt"
	"github.com/maxsupermanhd/regionmap/primitives"
)

const (
	Width          = 16
	SectionSize    = Width * Width * Width
	Air            = "minecraft:air"
	CaveAir        = "minecraft:cave_air"
	minPaletteBits = 4

	// MinDataVersion is the first version (20w17a, 1.16) that stopped
	// packing block states across longs
	MinDataVersion = 2566
)

var (
	ErrUnsupportedVersion = errors.New("unsupported chunk data version")
	ErrMalformedSection   = errors.New("malformed chunk section")
)

// IsAir reports names the scans treat as empty space
func IsAir(name string) bool {
	return name == Air || name == CaveAir
}

// BlockSlim is a block name at an absolute height
type BlockSlim struct {
	Name   string
	Height int
}

type section struct {
	palette []string
	// indices into palette by y*256+z*16+x, nil when palette has one entry
	indices []uint16
}

func (s *section) name(x, y, z int) string {
	if s.indices == nil {
		return s.palette[0]
	}
	return s.palette[s.indices[y*Width*Width+z*Width+x]]
}

// Chunk is a read only view over block states of one chunk
type Chunk struct {
	coords      primitives.ChunkCoords
	dataVersion int
	minSection  int
	// sections[i] holds section minSection+i, nil for missing ones
	sections []*section
}

// New reads block states out of a decoded chunk. Both 1.18+ layout
// (sections at the root) and 1.16-1.17 layout (Level.Sections) are
// understood.
func New(root *nbt.Compound) (*Chunk, error) {
	dv, err := root.GetNumber("DataVersion")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedVersion, err)
	}
	if dv < MinDataVersion {
		return nil, fmt.Errorf("%w %d, need at least %d", ErrUnsupportedVersion, dv, MinDataVersion)
	}
	c := &Chunk{dataVersion: int(dv)}
	if _, ok := root.Get("sections"); ok {
		err = c.readModern(root)
	} else {
		err = c.readLegacy(root)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chunk) readModern(root *nbt.Compound) error {
	if err := c.readCoords(root); err != nil {
		return err
	}
	if y, err := root.GetNumber("yPos"); err == nil {
		c.minSection = int(y)
	}
	sections, err := root.GetList("sections")
	if err != nil {
		return err
	}
	return c.readSections(sections, "block_states", "palette", "data")
}

func (c *Chunk) readLegacy(root *nbt.Compound) error {
	l, err := root.GetCompound("Level")
	if err != nil {
		return err
	}
	if err := c.readCoords(l); err != nil {
		return err
	}
	sections, err := l.GetList("Sections")
	if err != nil {
		return err
	}
	return c.readSections(sections, "", "Palette", "BlockStates")
}

func (c *Chunk) readCoords(t *nbt.Compound) error {
	x, err := t.GetNumber("xPos")
	if err != nil {
		return err
	}
	z, err := t.GetNumber("zPos")
	if err != nil {
		return err
	}
	c.coords = primitives.ChunkCoords{X: int(x), Z: int(z)}
	return nil
}

type rawSection struct {
	y int
	s *section
}

// readSections collects sections that carry block states, others
// (light only) are dropped. statesTag is empty when palette and data
// live in the section itself.
func (c *Chunk) readSections(l *nbt.List, statesTag, paletteTag, dataTag string) error {
	compounds, err := l.Compounds()
	if err != nil {
		return err
	}
	read := make([]rawSection, 0, len(compounds))
	for _, sc := range compounds {
		y, err := sc.GetNumber("Y")
		if err != nil {
			return err
		}
		states := sc
		if statesTag != "" {
			if _, ok := sc.Get(statesTag); !ok {
				continue
			}
			states, err = sc.GetCompound(statesTag)
			if err != nil {
				return err
			}
		}
		if _, ok := states.Get(paletteTag); !ok {
			continue
		}
		s, err := readSection(states, paletteTag, dataTag)
		if err != nil {
			return fmt.Errorf("section %d: %w", y, err)
		}
		read = append(read, rawSection{y: int(y), s: s})
	}
	if len(read) == 0 {
		return nil
	}
	lo, hi := read[0].y, read[0].y
	for _, r := range read {
		lo = min(lo, r.y)
		hi = max(hi, r.y)
	}
	c.minSection = lo
	c.sections = make([]*section, hi-lo+1)
	for _, r := range read {
		c.sections[r.y-lo] = r.s
	}
	return nil
}

func readSection(states *nbt.Compound, paletteTag, dataTag string) (*section, error) {
	pl, err := states.GetList(paletteTag)
	if err != nil {
		return nil, err
	}
	entries, err := pl.Compounds()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty palette", ErrMalformedSection)
	}
	s := &section{palette: make([]string, len(entries))}
	for i, e := range entries {
		s.palette[i], err = e.GetString("Name")
		if err != nil {
			return nil, fmt.Errorf("palette entry %d: %w", i, err)
		}
	}
	var data []int64
	if _, ok := states.Get(dataTag); ok {
		data, err = states.GetLongArray(dataTag)
		if err != nil {
			return nil, err
		}
	}
	if len(s.palette) == 1 && len(data) == 0 {
		return s, nil
	}
	s.indices, err = unpackIndices(data, len(s.palette))
	if err != nil {
		return nil, err
	}
	return s, nil
}

// PaletteBits is the width of one packed palette index
func PaletteBits(paletteLen int) int {
	return max(minPaletteBits, bits.Len(uint(paletteLen-1)))
}

// unpackIndices validates packed data before handing it to BitStorage,
// which panics on length mismatch
func unpackIndices(data []int64, paletteLen int) ([]uint16, error) {
	b := PaletteBits(paletteLen)
	perLong := 64 / b
	want := (SectionSize + perLong - 1) / perLong
	if len(data) != want {
		return nil, fmt.Errorf("%w: %d longs of packed data, expected %d for %d bits", ErrMalformedSection, len(data), want, b)
	}
	raw := make([]uint64, len(data))
	for i, v := range data {
		raw[i] = uint64(v)
	}
	storage := level.NewBitStorage(b, SectionSize, raw)
	ret := make([]uint16, SectionSize)
	for i := range ret {
		v := storage.Get(i)
		if v >= paletteLen {
			return nil, fmt.Errorf("%w: index %d at %d past palette of %d", ErrMalformedSection, v, i, paletteLen)
		}
		ret[i] = uint16(v)
	}
	return ret, nil
}

func (c *Chunk) Coords() primitives.ChunkCoords {
	return c.coords
}

func (c *Chunk) DataVersion() int {
	return c.dataVersion
}

func (c *Chunk) Width() int {
	return Width
}

func (c *Chunk) LowestBlockHeight() int {
	return c.minSection * Width
}

// HighestBlockHeight is the top of the highest section, it is below
// LowestBlockHeight for chunks without block states
func (c *Chunk) HighestBlockHeight() int {
	return (c.minSection+len(c.sections))*Width - 1
}

// BlockNameAt returns block at column x z (0..15) and absolute height y,
// air outside of stored sections
func (c *Chunk) BlockNameAt(x, y, z int) string {
	if x < 0 || x >= Width || z < 0 || z >= Width {
		return Air
	}
	si := y>>4 - c.minSection
	if si < 0 || si >= len(c.sections) || c.sections[si] == nil {
		return Air
	}
	return c.sections[si].name(x, y&15, z)
}

func skipped(name string, defs definitions.Resolver) bool {
	if IsAir(name) {
		return true
	}
	if defs == nil {
		return false
	}
	d, ok := defs.Lookup(name)
	return ok && d.Excluded
}

// scan walks column down from top to the floor and returns the first block
// that is not skipped and is not named exclude
func (c *Chunk) scan(x, z, top int, exclude string, defs definitions.Resolver) BlockSlim {
	floor := c.LowestBlockHeight()
	top = min(top, c.HighestBlockHeight())
	if x < 0 || x >= Width || z < 0 || z >= Width {
		return BlockSlim{Name: Air, Height: floor}
	}
	for y := top; y >= floor; {
		s := c.sections[y>>4-c.minSection]
		if s == nil {
			y = y&^15 - 1
			continue
		}
		if s.indices == nil {
			name := s.palette[0]
			if name == exclude || skipped(name, defs) {
				y = y&^15 - 1
				continue
			}
			return BlockSlim{Name: name, Height: y}
		}
		name := s.name(x, y&15, z)
		if name != exclude && !skipped(name, defs) {
			return BlockSlim{Name: name, Height: y}
		}
		y--
	}
	return BlockSlim{Name: Air, Height: floor}
}

// HighestBlockAt finds the topmost visible block at or below ceiling.
// Air at the lowest height is returned for empty columns.
func (c *Chunk) HighestBlockAt(x, z, ceiling int, defs definitions.Resolver) BlockSlim {
	return c.scan(x, z, ceiling, "", defs)
}

// HighestBlockBelow finds the next visible block strictly below height
// that is not named exclude
func (c *Chunk) HighestBlockBelow(x, z, height int, exclude string, defs definitions.Resolver) BlockSlim {
	return c.scan(x, z, height-1, exclude, defs)
}

// Palette lists distinct block names stored in section y (absolute
// section index), nil for sections without block states
func (c *Chunk) Palette(y int) []string {
	si := y - c.minSection
	if si < 0 || si >= len(c.sections) || c.sections[si] == nil {
		return nil
	}
	return slices.Clone(c.sections[si].palette)
}

// SectionRange returns the lowest and highest stored section index
func (c *Chunk) SectionRange() (lowest, highest int) {
	return c.minSection, c.minSection + len(c.sections) - 1
}
