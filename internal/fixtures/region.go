package fixtures

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/pierrec/lz4/v4"
)

// Chunk payload compression method ids as stored in region files
const (
	MethodGzip     = 1
	MethodZlib     = 2
	MethodNone     = 3
	MethodLZ4      = 4
	MethodExternal = 127
)

const sectorSize = 4096

type regionEntry struct {
	method    byte
	payload   []byte
	timestamp uint32
}

// Region assembles an anvil file in memory
type Region struct {
	chunks map[primitives.ChunkCoords]regionEntry
	order  []primitives.ChunkCoords
}

func NewRegion() *Region {
	return &Region{chunks: map[primitives.ChunkCoords]regionEntry{}}
}

// AddRaw stores payload as is under method, payload must already be
// compressed accordingly
func (r *Region) AddRaw(rel primitives.ChunkCoords, method byte, payload []byte) *Region {
	if _, ok := r.chunks[rel]; !ok {
		r.order = append(r.order, rel)
	}
	r.chunks[rel] = regionEntry{method: method, payload: payload}
	return r
}

// AddChunk marshals c and stores it compressed with method
func (r *Region) AddChunk(rel primitives.ChunkCoords, method byte, c *Chunk) error {
	raw, err := c.Marshal()
	if err != nil {
		return err
	}
	payload, err := Compress(method, raw)
	if err != nil {
		return err
	}
	r.AddRaw(rel, method, payload)
	return nil
}

// SetTimestamp sets modification time of an already added chunk
func (r *Region) SetTimestamp(rel primitives.ChunkCoords, unix uint32) *Region {
	e := r.chunks[rel]
	e.timestamp = unix
	r.chunks[rel] = e
	return r
}

// Bytes lays chunks out after the two header sectors in insertion order,
// each padded to whole sectors
func (r *Region) Bytes() []byte {
	out := make([]byte, 2*sectorSize)
	for _, rel := range r.order {
		e := r.chunks[rel]
		body := binary.BigEndian.AppendUint32(nil, uint32(len(e.payload)+1))
		body = append(body, e.method)
		body = append(body, e.payload...)
		sectors := (len(body) + sectorSize - 1) / sectorSize
		offset := len(out) / sectorSize
		i := (rel.X + rel.Z*32) * 4
		out[i] = byte(offset >> 16)
		out[i+1] = byte(offset >> 8)
		out[i+2] = byte(offset)
		out[i+3] = byte(sectors)
		binary.BigEndian.PutUint32(out[sectorSize+i:], e.timestamp)
		out = append(out, body...)
		out = append(out, make([]byte, sectors*sectorSize-len(body))...)
	}
	return out
}

// Compress wraps data the way region files store chunk payloads
func Compress(method byte, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch method {
	case MethodNone:
		return data, nil
	case MethodGzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case MethodZlib:
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case MethodLZ4:
		return lz4Block(data)
	default:
		return nil, fmt.Errorf("fixtures can not compress with method %d", method)
	}
	return buf.Bytes(), nil
}

// lz4Block writes a single lz4-java block followed by the end block
func lz4Block(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, err
	}
	ret := []byte("LZ4Block")
	if n == 0 {
		ret = append(ret, 0x10)
		ret = binary.LittleEndian.AppendUint32(ret, uint32(len(data)))
		ret = binary.LittleEndian.AppendUint32(ret, uint32(len(data)))
		ret = binary.LittleEndian.AppendUint32(ret, 0)
		ret = append(ret, data...)
	} else {
		ret = append(ret, 0x20)
		ret = binary.LittleEndian.AppendUint32(ret, uint32(n))
		ret = binary.LittleEndian.AppendUint32(ret, uint32(len(data)))
		ret = binary.LittleEndian.AppendUint32(ret, 0)
		ret = append(ret, dst[:n]...)
	}
	ret = append(ret, []byte("LZ4Block")...)
	ret = append(ret, 0x10)
	return append(ret, make([]byte, 12)...), nil
}
