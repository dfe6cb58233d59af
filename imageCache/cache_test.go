package imagecache

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxsupermanhd/regionmap/primitives"
)

func testImage(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func loc(variant string, s, x, z int) primitives.ImageLocation {
	return primitives.ImageLocation{Dimension: "overworld", Variant: variant, S: s, X: x, Z: z}
}

func TestMemoryOnly(t *testing.T) {
	c := NewImageCache(nil, Config{})
	red := color.RGBA{0xff, 0, 0, 0xff}
	img := testImage(red)
	c.Set(loc("standard", 0, 1, 2), img)
	img.SetRGBA(0, 0, color.RGBA{})

	got, err := c.Get(loc("standard", 0, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if got.Img == nil || got.Img.RGBAAt(0, 0) != red {
		t.Fatalf("cache did not keep its own copy")
	}
	got.Img.SetRGBA(1, 1, color.RGBA{})
	again, _ := c.Get(loc("standard", 0, 1, 2))
	if again.Img.RGBAAt(1, 1) != red {
		t.Error("returned image shares memory with cache")
	}
	miss, err := c.Get(loc("height", 0, 1, 2))
	if err != nil || miss.Img != nil {
		t.Errorf("expected empty miss, got %v %v", miss, err)
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 || st.Cached != 1 || st.Unsaved != 1 {
		t.Errorf("stats %+v", st)
	}
	if err := c.Save(); err != nil {
		t.Errorf("save without root: %v", err)
	}
}

func TestPersistence(t *testing.T) {
	root := t.TempDir()
	blue := color.RGBA{0, 0, 0xff, 0xff}
	c := NewImageCache(nil, Config{Root: root})
	c.Set(loc("standard", 0, -1, 3), testImage(blue))
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}
	fp := filepath.Join(root, "overworld", "standard", "0", "-1x3.png")
	if _, err := os.Stat(fp); err != nil {
		t.Fatalf("png not written: %v", err)
	}
	if st := c.Stats(); st.Unsaved != 0 {
		t.Errorf("unsaved after save: %d", st.Unsaved)
	}
	if c.ModTime(loc("standard", 0, -1, 3)).IsZero() {
		t.Error("zero mod time")
	}

	fresh := NewImageCache(nil, Config{Root: root})
	got, err := fresh.Get(loc("standard", 0, -1, 3))
	if err != nil {
		t.Fatal(err)
	}
	if got.Img == nil || got.Img.RGBAAt(3, 3) != blue || !got.SyncedToDisk {
		t.Errorf("loaded image %v", got)
	}
}

func TestBrokenFileIsRemoved(t *testing.T) {
	root := t.TempDir()
	c := NewImageCache(nil, Config{Root: root})
	fp := c.cacheGetFilenameLoc(loc("standard", 0, 0, 0))
	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fp, []byte("not a png"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(loc("standard", 0, 0, 0)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := os.Stat(fp); !os.IsNotExist(err) {
		t.Errorf("broken file left behind: %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	root := t.TempDir()
	c := NewImageCache(nil, Config{Root: root})
	img := testImage(color.RGBA{0, 0xff, 0, 0xff})
	c.Set(loc("standard", 0, 5, -3), img)
	c.Set(loc("height", 0, 5, -3), img)
	c.Set(loc("standard", 1, 2, -2), img)
	c.Set(loc("standard", 0, 4, -3), img)
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}
	c.Set(loc("standard", 2, 1, -1), img)

	// memory: 3 saved plus 1 unsaved, disk: the 3 saved
	if n := c.Invalidate("overworld", 5, -3); n != 7 {
		t.Errorf("invalidated %d images, expected 7", n)
	}
	if st := c.Stats(); st.Cached != 1 {
		t.Errorf("left %d images, expected only the neighbor", st.Cached)
	}
	got, _ := c.Get(loc("standard", 0, 4, -3))
	if got.Img == nil {
		t.Error("neighbor region was invalidated")
	}
	if n := c.Invalidate("the_nether", 5, -3); n != 0 {
		t.Errorf("other dimension invalidated %d", n)
	}
}

func TestUnloadStale(t *testing.T) {
	root := t.TempDir()
	c := NewImageCache(nil, Config{Root: root, UnloadAfter: time.Minute})
	c.Set(loc("standard", 0, 0, 0), testImage(color.RGBA{A: 0xff}))
	c.unloadStale(time.Now().Add(time.Hour))
	if c.Stats().Cached != 1 {
		t.Fatal("unsaved image unloaded")
	}
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}
	c.unloadStale(time.Now().Add(time.Hour))
	if st := c.Stats(); st.Cached != 0 || st.Evicted != 1 {
		t.Errorf("stats after unload %+v", st)
	}
	got, err := c.Get(loc("standard", 0, 0, 0))
	if err != nil || got.Img == nil {
		t.Errorf("unloaded image not read back: %v", err)
	}
}

func TestRunSavesOnExit(t *testing.T) {
	root := t.TempDir()
	c := NewImageCache(nil, Config{Root: root, AutosaveInterval: time.Hour})
	c.Set(loc("standard", 0, 0, 0), testImage(color.RGBA{A: 0xff}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if st := c.Stats(); st.Unsaved != 0 {
		t.Errorf("%d images left unsaved", st.Unsaved)
	}
}
