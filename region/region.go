/*
	regionmap, top-down map renderer for block game saves
	Copyright (C) 2022 Maxim Zhuchkov

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.

	Contact me via mail: q3.max.2011@yandex.ru or Discord: MaX#6717
*/

package region

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/maxsupermanhd/regionmap/chunk"
	"github.com/maxsupermanhd/regionmap/lib/nbt"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/willf/bitset"
)

const (
	SectorSize      = 4096
	ChunkCount      = 32
	TotalChunkCount = ChunkCount * ChunkCount
	EntrySize       = 4
	SectorTableSize = TotalChunkCount * EntrySize
	// BlockCount is the side of a region in blocks
	BlockCount = ChunkCount * 16

	chunkHeaderSize = 5
	externalFlag    = 0x80
	externalMethod  = 127
)

var (
	ErrNoData                 = errors.New("region has no data")
	ErrTooSmall               = errors.New("region data is smaller than sector table")
	ErrOutOfRange             = errors.New("chunk coordinates out of range")
	ErrChunkNotGenerated      = errors.New("chunk is not generated")
	ErrInvalidChunkLength     = errors.New("invalid chunk length")
	ErrUnsupportedCompression = errors.New("unsupported chunk compression")
)

// OutOfRangeError reports coordinates outside of Range
type OutOfRangeError struct {
	Coords primitives.ChunkCoords
	Range  primitives.Range2
}

func (err *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %s not in %s", ErrOutOfRange.Error(), err.Coords, err.Range)
}

func (err *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

var relRange = primitives.Range2{
	Min: primitives.ChunkCoords{X: 0, Z: 0},
	Max: primitives.ChunkCoords{X: ChunkCount - 1, Z: ChunkCount - 1},
}

// Region is an anvil file held in memory. It never changes after
// construction and is safe for concurrent use.
type Region struct {
	data       []byte
	coords     primitives.RegionCoords
	chunkRange primitives.Range2
}

// New wraps region file contents, data must not be modified afterwards
func New(data []byte, coords primitives.RegionCoords) (*Region, error) {
	if len(data) == 0 {
		return nil, ErrNoData
	}
	if len(data) < SectorTableSize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooSmall, len(data))
	}
	return &Region{
		data:   data,
		coords: coords,
		chunkRange: primitives.Range2{
			Min: primitives.ChunkCoords{X: coords.X * ChunkCount, Z: coords.Z * ChunkCount},
			Max: primitives.ChunkCoords{X: coords.X*ChunkCount + ChunkCount - 1, Z: coords.Z*ChunkCount + ChunkCount - 1},
		},
	}, nil
}

func (r *Region) Coords() primitives.RegionCoords {
	return r.coords
}

// ChunkRangeAbs is the inclusive range of absolute chunk coordinates
func (r *Region) ChunkRangeAbs() primitives.Range2 {
	return r.chunkRange
}

// Size is the length of the underlying data in bytes
func (r *Region) Size() int {
	return len(r.data)
}

func checkRel(rel primitives.ChunkCoords) error {
	if !relRange.Contains(rel) {
		return &OutOfRangeError{Coords: rel, Range: relRange}
	}
	return nil
}

// sector returns table entry of rel. Offset is read byte by byte to
// avoid sign extension.
func (r *Region) sector(rel primitives.ChunkCoords) (offset, count int) {
	i := (rel.X + rel.Z*ChunkCount) * EntrySize
	offset = int(r.data[i])<<16 | int(r.data[i+1])<<8 | int(r.data[i+2])
	count = int(r.data[i+3])
	return
}

func (r *Region) HasChunkGenerated(rel primitives.ChunkCoords) (bool, error) {
	if err := checkRel(rel); err != nil {
		return false, err
	}
	offset, count := r.sector(rel)
	return offset != 0 && count != 0, nil
}

// RawChunk returns the still compressed payload of a chunk
func (r *Region) RawChunk(rel primitives.ChunkCoords) ([]byte, nbt.Compression, error) {
	if err := checkRel(rel); err != nil {
		return nil, 0, err
	}
	offset, count := r.sector(rel)
	if offset == 0 || count == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrChunkNotGenerated, rel)
	}
	start := offset * SectorSize
	end := start + count*SectorSize
	if end > len(r.data) {
		return nil, 0, fmt.Errorf("%w: chunk %s sectors [%d, %d) past end of data (%d)", ErrInvalidChunkLength, rel, start, end, len(r.data))
	}
	span := r.data[start:end]
	length := int(int32(binary.BigEndian.Uint32(span)))
	if length < 1 || length+4 > len(span) {
		return nil, 0, fmt.Errorf("%w: chunk %s declares %d bytes in %d sectors", ErrInvalidChunkLength, rel, length, count)
	}
	method := span[4]
	var c nbt.Compression
	switch method {
	case 1:
		c = nbt.CompressionGzip
	case 2:
		c = nbt.CompressionZlib
	case 3:
		c = nbt.CompressionNone
	case 4:
		c = nbt.CompressionLZ4
	default:
		if method == externalMethod || method&externalFlag != 0 {
			return nil, 0, fmt.Errorf("%w: chunk %s is stored in external c.%d.%d.mcc file", ErrUnsupportedCompression, rel, r.chunkRange.Min.X+rel.X, r.chunkRange.Min.Z+rel.Z)
		}
		return nil, 0, fmt.Errorf("%w: chunk %s method %d", ErrUnsupportedCompression, rel, method)
	}
	return span[chunkHeaderSize : length+4], c, nil
}

// GetChunkNBT decodes tag tree of chunk at region relative coordinates
func (r *Region) GetChunkNBT(rel primitives.ChunkCoords) (*nbt.Compound, error) {
	payload, c, err := r.RawChunk(rel)
	if err != nil {
		return nil, err
	}
	root, err := nbt.DecodeBytes(payload, c)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", rel, err)
	}
	return root, nil
}

// GetChunkNBTAbs is GetChunkNBT taking absolute chunk coordinates
func (r *Region) GetChunkNBTAbs(abs primitives.ChunkCoords) (*nbt.Compound, error) {
	if !r.chunkRange.Contains(abs) {
		return nil, &OutOfRangeError{Coords: abs, Range: r.chunkRange}
	}
	return r.GetChunkNBT(AbsToRel(abs))
}

// GetChunk decodes chunk and builds a block view of it
func (r *Region) GetChunk(rel primitives.ChunkCoords) (*chunk.Chunk, error) {
	root, err := r.GetChunkNBT(rel)
	if err != nil {
		return nil, err
	}
	c, err := chunk.New(root)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", rel, err)
	}
	return c, nil
}

// GeneratedChunks scans the sector table on every call
func (r *Region) GeneratedChunks() []primitives.ChunkCoords {
	ret := []primitives.ChunkCoords{}
	for z := 0; z < ChunkCount; z++ {
		for x := 0; x < ChunkCount; x++ {
			c := primitives.ChunkCoords{X: x, Z: z}
			if offset, count := r.sector(c); offset != 0 && count != 0 {
				ret = append(ret, c)
			}
		}
	}
	return ret
}

// GeneratedMask has bit x+z*32 set for every generated chunk
func (r *Region) GeneratedMask() *bitset.BitSet {
	b := bitset.New(TotalChunkCount)
	for _, c := range r.GeneratedChunks() {
		b.Set(uint(c.X + c.Z*ChunkCount))
	}
	return b
}

// Timestamp reads last modification time of a chunk from the second
// header sector, zero time when there is none
func (r *Region) Timestamp(rel primitives.ChunkCoords) (time.Time, error) {
	if err := checkRel(rel); err != nil {
		return time.Time{}, err
	}
	i := SectorTableSize + (rel.X+rel.Z*ChunkCount)*EntrySize
	if i+EntrySize > len(r.data) {
		return time.Time{}, nil
	}
	ts := binary.BigEndian.Uint32(r.data[i:])
	if ts == 0 {
		return time.Time{}, nil
	}
	return time.Unix(int64(ts), 0), nil
}
