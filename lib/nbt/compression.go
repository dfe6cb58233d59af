package nbt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// Compression is the wrapping applied to a serialized tag tree
type Compression byte

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZlib
	// CompressionLZ4 is the lz4-java block stream ("LZ4Block" frames)
	CompressionLZ4
	// CompressionAuto sniffs gzip/zlib/lz4 magic and falls back to none
	CompressionAuto
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionLZ4:
		return "lz4"
	case CompressionAuto:
		return "auto"
	}
	return fmt.Sprintf("compression(%d)", byte(c))
}

var ErrUnknownCompression = errors.New("unknown compression")

var lz4BlockMagic = []byte("LZ4Block")

// NewReader wraps r in decompressor for c. Errors opening the stream
// (bad gzip header and alike) match ErrMalformedBinary.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	if c == CompressionAuto {
		br := bufio.NewReader(r)
		c = detectCompression(br)
		r = br
	}
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s stream: %w", ErrMalformedBinary, c, err)
		}
		return gr, nil
	case CompressionZlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s stream: %w", ErrMalformedBinary, c, err)
		}
		return zr, nil
	case CompressionLZ4:
		return io.NopCloser(&lz4BlockReader{r: r}), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
}

func detectCompression(br *bufio.Reader) Compression {
	if magic, err := br.Peek(len(lz4BlockMagic)); err == nil && bytes.Equal(magic, lz4BlockMagic) {
		return CompressionLZ4
	}
	b, err := br.Peek(2)
	if err != nil {
		return CompressionNone
	}
	if b[0] == 0x1f && b[1] == 0x8b {
		return CompressionGzip
	}
	// deflate method with valid header checksum, RFC 1950
	if b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0 {
		return CompressionZlib
	}
	return CompressionNone
}

const (
	lz4MethodRaw       = 0x10
	lz4MethodLZ4       = 0x20
	lz4BlockHeaderSize = 8 + 1 + 4 + 4 + 4
	lz4MaxBlockSize    = 32 * 1024 * 1024
)

// lz4BlockReader reads lz4-java LZ4BlockOutputStream output:
// magic, token, compressed len, decompressed len, checksum (all LE), data.
// A block with zero decompressed length ends the stream.
// Checksums are not verified.
type lz4BlockReader struct {
	r    io.Reader
	hdr  [lz4BlockHeaderSize]byte
	src  []byte
	buf  []byte
	pos  int
	done bool
}

func (l *lz4BlockReader) Read(p []byte) (int, error) {
	for l.pos >= len(l.buf) {
		if l.done {
			return 0, io.EOF
		}
		if err := l.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, l.buf[l.pos:])
	l.pos += n
	return n, nil
}

func (l *lz4BlockReader) next() error {
	if _, err := io.ReadFull(l.r, l.hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if !bytes.Equal(l.hdr[:8], lz4BlockMagic) {
		return fmt.Errorf("%w: bad lz4 block magic %q", ErrMalformedBinary, l.hdr[:8])
	}
	method := l.hdr[8] & 0xf0
	compressed := int(int32(binary.LittleEndian.Uint32(l.hdr[9:])))
	decompressed := int(int32(binary.LittleEndian.Uint32(l.hdr[13:])))
	if compressed < 0 || decompressed < 0 || compressed > lz4MaxBlockSize || decompressed > lz4MaxBlockSize {
		return fmt.Errorf("%w: lz4 block lengths %d/%d", ErrMalformedBinary, compressed, decompressed)
	}
	if decompressed == 0 {
		l.done = true
		l.buf, l.pos = l.buf[:0], 0
		return nil
	}
	if cap(l.src) < compressed {
		l.src = make([]byte, compressed)
	}
	l.src = l.src[:compressed]
	if _, err := io.ReadFull(l.r, l.src); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if cap(l.buf) < decompressed {
		l.buf = make([]byte, decompressed)
	}
	l.buf, l.pos = l.buf[:decompressed], 0
	switch method {
	case lz4MethodRaw:
		if compressed != decompressed {
			return fmt.Errorf("%w: raw lz4 block length mismatch %d/%d", ErrMalformedBinary, compressed, decompressed)
		}
		copy(l.buf, l.src)
	case lz4MethodLZ4:
		n, err := lz4.UncompressBlock(l.src, l.buf)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedBinary, err)
		}
		if n != decompressed {
			return fmt.Errorf("%w: lz4 block decompressed to %d, expected %d", ErrMalformedBinary, n, decompressed)
		}
	default:
		return fmt.Errorf("%w: lz4 block method 0x%02x", ErrMalformedBinary, method)
	}
	return nil
}
