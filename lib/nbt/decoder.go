package nbt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrInvalidList is returned for a non-empty list declared as TagEnd list
var ErrInvalidList = errors.New("non-empty list of TagEnd")

// payloads bigger than this are read in steps so a corrupted length
// can not make us allocate gigabytes before hitting end of stream
const readStep = 64 * 1024

// Decoder reads a single tag tree from a stream.
// It is not safe for concurrent use, create one per stream.
type Decoder struct {
	r      io.Reader
	order  binary.ByteOrder
	offset int64
	stack  []Frame
	buf    [8]byte
}

// NewDecoder creates decoder reading numbers in the given byte order,
// nil order means big-endian (Java edition).
func NewDecoder(r io.Reader, order binary.ByteOrder) *Decoder {
	if order == nil {
		order = binary.BigEndian
	}
	switch r.(type) {
	case *bytes.Reader, *bufio.Reader, *bytes.Buffer:
	default:
		r = bufio.NewReader(r)
	}
	return &Decoder{
		r:     r,
		order: order,
		stack: make([]Frame, 0, 16),
	}
}

// Offset returns count of bytes consumed so far
func (d *Decoder) Offset() int64 {
	return d.offset
}

// Decode reads one named compound. Trailing bytes after the root
// compound's TagEnd are left unread.
func (d *Decoder) Decode() (*Compound, error) {
	d.stack = d.stack[:0]
	start := d.offset
	t, err := d.readType()
	if err != nil {
		return nil, d.errorAt(err, start, Frame{Type: t, Index: -1})
	}
	if t != TagCompound {
		return nil, d.errorAt(ErrRootNotCompound, start, Frame{Type: t, Index: -1})
	}
	name, err := d.readString()
	if err != nil {
		return nil, d.errorAt(err, d.offset, Frame{Type: t, Index: -1})
	}
	tag, err := d.readPayload(Frame{Type: t, Name: name, Index: -1})
	if err != nil {
		return nil, err
	}
	return tag.payload.(*Compound), nil
}

// Decode reads root compound from r after unwrapping compression c
func Decode(r io.Reader, c Compression) (*Compound, error) {
	rc, err := NewReader(r, c)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return NewDecoder(rc, binary.BigEndian).Decode()
}

// DecodeBytes is Decode over an in-memory buffer
func DecodeBytes(data []byte, c Compression) (*Compound, error) {
	return Decode(bytes.NewReader(data), c)
}

// errorAt builds DecodeError with a snapshot of the currently open tags
func (d *Decoder) errorAt(err error, offset int64, tag Frame) error {
	stack := make([]Frame, len(d.stack))
	copy(stack, d.stack)
	return &DecodeError{
		Err:    err,
		Offset: offset,
		Stack:  stack,
		Tag:    tag,
	}
}

// readPayload pushes f, reads its payload and pops f.
// Errors coming from deeper levels are already wrapped and pass through.
func (d *Decoder) readPayload(f Frame) (Tag, error) {
	d.stack = append(d.stack, f)
	tag, err := d.payload(f)
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) {
			return Tag{}, err
		}
		d.stack = d.stack[:len(d.stack)-1]
		return Tag{}, d.errorAt(err, d.offset, f)
	}
	d.stack = d.stack[:len(d.stack)-1]
	tag.Name = f.Name
	return tag, nil
}

func (d *Decoder) payload(f Frame) (Tag, error) {
	t := f.Type
	switch t {
	case TagByte:
		b, err := d.read(1)
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: int8(b[0])}, nil
	case TagShort:
		b, err := d.read(2)
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: int16(d.order.Uint16(b))}, nil
	case TagInt:
		v, err := d.readInt32()
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: v}, nil
	case TagLong:
		b, err := d.read(8)
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: int64(d.order.Uint64(b))}, nil
	case TagFloat:
		b, err := d.read(4)
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: math.Float32frombits(d.order.Uint32(b))}, nil
	case TagDouble:
		b, err := d.read(8)
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: math.Float64frombits(d.order.Uint64(b))}, nil
	case TagByteArray:
		n, err := d.readLength()
		if err != nil {
			return Tag{}, err
		}
		b, err := d.readBytes(n)
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: b}, nil
	case TagString:
		s, err := d.readString()
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: s}, nil
	case TagList:
		l, err := d.readList()
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: l}, nil
	case TagCompound:
		c, err := d.readCompound()
		if err != nil {
			return Tag{}, err
		}
		return Tag{Type: t, payload: c}, nil
	case TagIntArray:
		n, err := d.readLength()
		if err != nil {
			return Tag{}, err
		}
		b, err := d.readBytes(n * 4)
		if err != nil {
			return Tag{}, err
		}
		arr := make([]int32, n)
		for i := range arr {
			arr[i] = int32(d.order.Uint32(b[i*4:]))
		}
		return Tag{Type: t, payload: arr}, nil
	case TagLongArray:
		n, err := d.readLength()
		if err != nil {
			return Tag{}, err
		}
		b, err := d.readBytes(n * 8)
		if err != nil {
			return Tag{}, err
		}
		arr := make([]int64, n)
		for i := range arr {
			arr[i] = int64(d.order.Uint64(b[i*8:]))
		}
		return Tag{Type: t, payload: arr}, nil
	}
	return Tag{}, fmt.Errorf("%w %d", ErrUnknownTagType, byte(t))
}

func (d *Decoder) readCompound() (*Compound, error) {
	c := &Compound{tags: map[string]Tag{}}
	for {
		start := d.offset
		t, err := d.readType()
		if err != nil {
			return nil, d.errorAt(err, start, Frame{Type: t, Index: -1})
		}
		if t == TagEnd {
			return c, nil
		}
		name, err := d.readString()
		if err != nil {
			return nil, d.errorAt(err, d.offset, Frame{Type: t, Index: -1})
		}
		tag, err := d.readPayload(Frame{Type: t, Name: name, Index: -1})
		if err != nil {
			return nil, err
		}
		c.Put(tag)
	}
}

func (d *Decoder) readList() (*List, error) {
	start := d.offset
	et, err := d.readType()
	if err != nil {
		return nil, d.errorAt(err, start, Frame{Type: et, Index: 0})
	}
	n, err := d.readLength()
	if err != nil {
		return nil, err
	}
	if et == TagEnd && n > 0 {
		return nil, ErrInvalidList
	}
	l := &List{ElemType: et, elems: make([]Tag, 0, min(n, 1024))}
	for i := 0; i < n; i++ {
		tag, err := d.readPayload(Frame{Type: et, Index: i})
		if err != nil {
			return nil, err
		}
		l.elems = append(l.elems, tag)
	}
	return l, nil
}

// readType reads a tag id, on unknown id the raw value is still returned
func (d *Decoder) readType() (TagType, error) {
	b, err := d.read(1)
	if err != nil {
		return TagEnd, err
	}
	t := TagType(b[0])
	if !t.Valid() {
		return t, fmt.Errorf("%w %d", ErrUnknownTagType, b[0])
	}
	return t, nil
}

func (d *Decoder) readInt32() (int32, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return int32(d.order.Uint32(b)), nil
}

func (d *Decoder) readLength() (int, error) {
	n, err := d.readInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w %d", ErrNegativeLength, n)
	}
	return int(n), nil
}

func (d *Decoder) readString() (string, error) {
	b, err := d.read(2)
	if err != nil {
		return "", err
	}
	s, err := d.readBytes(int(d.order.Uint16(b)))
	if err != nil {
		return "", err
	}
	return decodeMUTF8(s), nil
}

// read returns a view into the decoder's scratch buffer, n <= 8
func (d *Decoder) read(n int) ([]byte, error) {
	b := d.buf[:n]
	return b, d.readFull(b)
}

func (d *Decoder) readBytes(n int) ([]byte, error) {
	if n <= readStep {
		b := make([]byte, n)
		return b, d.readFull(b)
	}
	b := make([]byte, 0, readStep)
	for len(b) < n {
		k := min(readStep, n-len(b))
		b = append(b, make([]byte, k)...)
		if err := d.readFull(b[len(b)-k:]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (d *Decoder) readFull(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.offset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrUnexpectedEOF
		}
		return err
	}
	return nil
}
