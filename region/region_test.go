package region

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/maxsupermanhd/regionmap/internal/fixtures"
	"github.com/maxsupermanhd/regionmap/lib/nbt"
	"github.com/maxsupermanhd/regionmap/primitives"
)

func cc(x, z int) primitives.ChunkCoords {
	return primitives.ChunkCoords{X: x, Z: z}
}

// three sector tables worth of data, chunk 0:0 at sector 1 holding an
// uncompressed compound with no children
func minimalRegion() []byte {
	data := make([]byte, 3*SectorTableSize)
	data[2] = 1
	data[3] = 1
	payload := []byte{byte(nbt.TagCompound), 0, 5, 'L', 'e', 'v', 'e', 'l', byte(nbt.TagEnd)}
	copy(data[SectorSize:], []byte{0, 0, 0, 10, 3})
	copy(data[SectorSize+5:], payload)
	return data
}

func TestMinimalRegion(t *testing.T) {
	r, err := New(minimalRegion(), primitives.RegionCoords{X: 0, Z: 0})
	if err != nil {
		t.Fatal(err)
	}
	c, err := r.GetChunkNBT(cc(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty compound, got %v", c.Names())
	}
	_, err = r.GetChunkNBT(cc(1, 0))
	if !errors.Is(err, ErrChunkNotGenerated) {
		t.Errorf("expected ErrChunkNotGenerated, got %v", err)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(nil, primitives.RegionCoords{}); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if _, err := New(make([]byte, SectorTableSize-1), primitives.RegionCoords{}); !errors.Is(err, ErrTooSmall) {
		t.Errorf("expected ErrTooSmall, got %v", err)
	}
	if _, err := New(make([]byte, SectorTableSize), primitives.RegionCoords{}); err != nil {
		t.Errorf("table sized region should be accepted, got %v", err)
	}
}

func TestOutOfRange(t *testing.T) {
	r, err := New(minimalRegion(), primitives.RegionCoords{X: -1, Z: 2})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []primitives.ChunkCoords{cc(-1, 0), cc(0, -1), cc(32, 0), cc(0, 32), cc(100, -100)} {
		if _, err := r.HasChunkGenerated(c); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("HasChunkGenerated(%s) expected ErrOutOfRange, got %v", c, err)
		}
		if _, err := r.GetChunkNBT(c); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("GetChunkNBT(%s) expected ErrOutOfRange, got %v", c, err)
		}
		if _, err := r.GetChunk(c); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("GetChunk(%s) expected ErrOutOfRange, got %v", c, err)
		}
		if _, err := r.Timestamp(c); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Timestamp(%s) expected ErrOutOfRange, got %v", c, err)
		}
	}
	_, err = r.GetChunkNBTAbs(cc(0, 0))
	var oerr *OutOfRangeError
	if !errors.As(err, &oerr) {
		t.Fatalf("expected *OutOfRangeError, got %v", err)
	}
	if oerr.Range != r.ChunkRangeAbs() {
		t.Errorf("error range %s, expected %s", oerr.Range, r.ChunkRangeAbs())
	}
}

func TestChunkRangeAbs(t *testing.T) {
	r, err := New(minimalRegion(), primitives.RegionCoords{X: -1, Z: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := primitives.Range2{Min: cc(-32, 64), Max: cc(-1, 95)}
	if r.ChunkRangeAbs() != want {
		t.Errorf("range %s, expected %s", r.ChunkRangeAbs(), want)
	}
	c, err := r.GetChunkNBTAbs(cc(-32, 64))
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Error("expected empty compound")
	}
}

func TestHasChunkGenerated(t *testing.T) {
	data := make([]byte, SectorTableSize)
	// offset only
	data[(1+0*32)*4+2] = 7
	// count only
	data[(2+0*32)*4+3] = 1
	// high offset byte set, must not sign extend
	data[(3+5*32)*4] = 0x80
	data[(3+5*32)*4+3] = 2
	r, err := New(data, primitives.RegionCoords{})
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		c    primitives.ChunkCoords
		want bool
	}{
		{cc(0, 0), false},
		{cc(1, 0), false},
		{cc(2, 0), false},
		{cc(3, 5), true},
	} {
		got, err := r.HasChunkGenerated(tc.c)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("HasChunkGenerated(%s) = %v, expected %v", tc.c, got, tc.want)
		}
	}
	if diff := cmp.Diff([]primitives.ChunkCoords{cc(3, 5)}, r.GeneratedChunks()); diff != "" {
		t.Errorf("generated chunks mismatch (-want +got):\n%s", diff)
	}
	mask := r.GeneratedMask()
	if mask.Count() != 1 || !mask.Test(3+5*32) {
		t.Errorf("unexpected mask %s", mask.String())
	}
	// offset 0x800000 sectors is far past the data
	if _, err := r.GetChunkNBT(cc(3, 5)); !errors.Is(err, ErrInvalidChunkLength) {
		t.Errorf("expected ErrInvalidChunkLength, got %v", err)
	}
}

func TestBadPayloads(t *testing.T) {
	for name, tc := range map[string]struct {
		header []byte
		err    error
	}{
		"zero length":     {[]byte{0, 0, 0, 0, 3}, ErrInvalidChunkLength},
		"negative length": {[]byte{0xff, 0xff, 0xff, 0xf0, 3}, ErrInvalidChunkLength},
		"past sectors":    {[]byte{0, 0, 0x10, 0, 3}, ErrInvalidChunkLength},
		"external":        {[]byte{0, 0, 0, 2, 0x82}, ErrUnsupportedCompression},
		"unknown method":  {[]byte{0, 0, 0, 2, 9}, ErrUnsupportedCompression},
		"bad nbt":         {[]byte{0, 0, 0, 2, 3, 99}, nbt.ErrMalformedBinary},
	} {
		t.Run(name, func(t *testing.T) {
			data := make([]byte, 2*SectorSize)
			data[2] = 1
			data[3] = 1
			copy(data[SectorSize:], tc.header)
			r, err := New(data, primitives.RegionCoords{})
			if err != nil {
				t.Fatal(err)
			}
			_, err = r.GetChunkNBT(cc(0, 0))
			if !errors.Is(err, tc.err) {
				t.Errorf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestCompressedChunks(t *testing.T) {
	b := fixtures.NewRegion()
	methods := []byte{fixtures.MethodGzip, fixtures.MethodZlib, fixtures.MethodNone, fixtures.MethodLZ4}
	for i, m := range methods {
		fc := fixtures.NewChunk(int32(32+i), int32(-32)).
			Layer(0, "minecraft:stone").
			Set(i, 10, i, "minecraft:gold_block")
		if err := b.AddChunk(cc(i, 0), m, fc); err != nil {
			t.Fatal(err)
		}
		b.SetTimestamp(cc(i, 0), uint32(1700000000+i))
	}
	r, err := New(b.Bytes(), primitives.RegionCoords{X: 1, Z: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.GeneratedChunks()) != len(methods) {
		t.Fatalf("generated chunks %v", r.GeneratedChunks())
	}
	for i := range methods {
		c, err := r.GetChunk(cc(i, 0))
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if c.Coords() != cc(32+i, -32) {
			t.Errorf("chunk %d coords %s", i, c.Coords())
		}
		if got := c.HighestBlockAt(i, i, 1000, nil); got.Name != "minecraft:gold_block" || got.Height != 10 {
			t.Errorf("chunk %d top %s", i, spew.Sdump(got))
		}
		ts, err := r.Timestamp(cc(i, 0))
		if err != nil {
			t.Fatal(err)
		}
		if !ts.Equal(time.Unix(int64(1700000000+i), 0)) {
			t.Errorf("chunk %d timestamp %v", i, ts)
		}
	}
	if ts, _ := r.Timestamp(cc(10, 10)); !ts.IsZero() {
		t.Errorf("absent chunk timestamp %v", ts)
	}
}

func TestOpenAndList(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"r.0.0.mca", "r.-1.0.mca", "r.0.-1.mca", "r.a.b.mca", "level.dat"} {
		if err := os.WriteFile(filepath.Join(dir, n), minimalRegion(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := ListRegionFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := []primitives.RegionCoords{}
	for _, f := range files {
		got = append(got, f.Coords)
		if f.Size != int64(len(minimalRegion())) {
			t.Errorf("%s size %d", f.Path, f.Size)
		}
	}
	want := []primitives.RegionCoords{{X: 0, Z: -1}, {X: -1, Z: 0}, {X: 0, Z: 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("region files mismatch (-want +got):\n%s", diff)
	}
	r, err := Open(filepath.Join(dir, "r.-1.0.mca"))
	if err != nil {
		t.Fatal(err)
	}
	if r.Coords() != (primitives.RegionCoords{X: -1, Z: 0}) {
		t.Errorf("coords %s", r.Coords())
	}
	if _, err := Open(filepath.Join(dir, "level.dat")); !errors.Is(err, ErrUnrecognizedFile) {
		t.Errorf("expected ErrUnrecognizedFile, got %v", err)
	}
	if _, err := Open(filepath.Join(dir, "r.5.5.mca")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not exist, got %v", err)
	}
}

func TestCoordinateHelpers(t *testing.T) {
	for _, tc := range []struct {
		abs primitives.ChunkCoords
		rel primitives.ChunkCoords
		reg primitives.RegionCoords
	}{
		{cc(0, 0), cc(0, 0), primitives.RegionCoords{X: 0, Z: 0}},
		{cc(31, 32), cc(31, 0), primitives.RegionCoords{X: 0, Z: 1}},
		{cc(-1, -32), cc(31, 0), primitives.RegionCoords{X: -1, Z: -1}},
		{cc(-33, 70), cc(31, 6), primitives.RegionCoords{X: -2, Z: 2}},
	} {
		if got := AbsToRel(tc.abs); got != tc.rel {
			t.Errorf("AbsToRel(%s) = %s, expected %s", tc.abs, got, tc.rel)
		}
		if got := RegionOf(tc.abs); got != tc.reg {
			t.Errorf("RegionOf(%s) = %s, expected %s", tc.abs, got, tc.reg)
		}
	}
}

func TestDimensionPath(t *testing.T) {
	for dim, want := range map[string]string{
		"overworld":           filepath.Join("w", "region"),
		"minecraft:overworld": filepath.Join("w", "region"),
		"the_nether":          filepath.Join("w", "DIM-1", "region"),
		"minecraft:the_end":   filepath.Join("w", "DIM1", "region"),
		"mymod:mining":        filepath.Join("w", "dimensions", "mymod", "mining", "region"),
		"custom":              filepath.Join("w", "dimensions", "minecraft", "custom", "region"),
	} {
		if got := DimensionPath("w", dim); got != want {
			t.Errorf("DimensionPath(%q) = %s, expected %s", dim, got, want)
		}
	}
}
