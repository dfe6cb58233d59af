package main

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxsupermanhd/regionmap/definitions"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/render/renderers"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	cfg := defaultConfig()
	cfg.LogsLocation = ""
	cfg.World.Path = writeWorld(t)
	cfg.Web.CacheRoot = t.TempDir()
	cfg.Web.RenderRate = 0
	cfg.Render.Workers = 2
	ctx, cancel := context.WithCancel(context.Background())
	s, err := newServer(ctx, cfg, zap.NewNop())
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		cancel()
		s.close()
	})
	return s
}

func get(t *testing.T, h http.Handler, uri string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", uri, nil))
	return rec
}

func decodeTile(t *testing.T, rec *httptest.ResponseRecorder) image.Image {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type %q", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 512 || b.Dy() != 512 {
		t.Fatalf("tile is %v", b)
	}
	return img
}

func alphaAt(img image.Image, x, y int) uint32 {
	_, _, _, a := img.At(x, y).RGBA()
	return a
}

func TestRegionTile(t *testing.T) {
	s := newTestServer(t)
	h := s.router()
	rec := get(t, h, "/tiles/overworld/standard/0/0/0.png")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("no request id")
	}
	img := decodeTile(t, rec)
	if alphaAt(img, 3, 3) != 0xffff {
		t.Error("stone chunk is not drawn")
	}
	if alphaAt(img, 24, 24) != 0xffff {
		t.Error("hill chunk is not drawn")
	}
	if alphaAt(img, 100, 100) != 0 {
		t.Error("empty chunk is drawn")
	}
	before := s.cache.Stats().Hits
	decodeTile(t, get(t, h, "/tiles/overworld/standard/0/0/0.png"))
	if s.cache.Stats().Hits != before+1 {
		t.Error("second request was not served from cache")
	}
	decodeTile(t, get(t, h, "/tiles/overworld/height/0/-1/-1.png"))
}

func TestMosaicTile(t *testing.T) {
	s := newTestServer(t)
	h := s.router()
	img := decodeTile(t, get(t, h, "/tiles/overworld/standard/1/0/0.png"))
	for _, p := range []image.Point{{2, 2}, {256 + 2, 2}} {
		if alphaAt(img, p.X, p.Y) != 0xffff {
			t.Errorf("pixel %v is empty", p)
		}
	}
	if alphaAt(img, 2, 256+2) != 0 {
		t.Error("missing region 0:1 is drawn")
	}
	img = decodeTile(t, get(t, h, "/tiles/overworld/standard/1/-1/-1.png"))
	if alphaAt(img, 256+2, 256+2) != 0xffff {
		t.Error("region -1:-1 is not in the bottom right quarter")
	}
	if alphaAt(img, 2, 2) != 0 {
		t.Error("missing region -2:-2 is drawn")
	}
	for _, loc := range []primitives.ImageLocation{
		{Dimension: "overworld", Variant: "standard", S: 0, X: 0, Z: 0},
		{Dimension: "overworld", Variant: "standard", S: 0, X: 1, Z: 0},
	} {
		c, err := s.cache.Get(loc)
		if err != nil || c.Img == nil {
			t.Errorf("child %v not cached: %v", loc, err)
		}
	}
	decodeTile(t, get(t, h, "/tiles/overworld/standard/6/0/0.png"))
}

func TestTileErrors(t *testing.T) {
	h := newTestServer(t).router()
	for uri, code := range map[string]int{
		"/tiles/overworld/standard/0/5/5.png":    http.StatusNotFound,
		"/tiles/overworld/standard/2/9/9.png":    http.StatusNotFound,
		"/tiles/overworld/nope/0/0/0.png":        http.StatusNotFound,
		"/tiles/the_nether/standard/0/0/0.png":   http.StatusNotFound,
		"/tiles/the_nether/standard/3/0/0.png":   http.StatusNotFound,
		"/tiles/overworld/standard/7/0/0.png":    http.StatusBadRequest,
		"/tiles/overworld/standard/0/a/0.png":    http.StatusNotFound,
		"/tiles/overworld/standard/0/0/0.jpg":    http.StatusNotFound,
		"/tiles/Overworld/standard/0/0/0.png":    http.StatusNotFound,
		"/tiles/overworld/standard/99/0/0.png":   http.StatusBadRequest,
		"/tiles/minecraft:overworld/x/0/0/0.png": http.StatusNotFound,
	} {
		if rec := get(t, h, uri); rec.Code != code {
			t.Errorf("%s: status %d, want %d", uri, rec.Code, code)
		}
	}
}

func TestAPI(t *testing.T) {
	h := newTestServer(t).router()

	rec := get(t, h, "/api/v1/shaders")
	var shaders []shaderInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &shaders); err != nil {
		t.Fatal(err)
	}
	if len(shaders) != 2 || shaders[0].Name != "standard" || !shaders[0].Default || shaders[1].Default {
		t.Errorf("shaders %+v", shaders)
	}

	rec = get(t, h, "/api/v1/regions/overworld")
	var regions []regionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &regions); err != nil {
		t.Fatal(err)
	}
	if len(regions) != 3 {
		t.Errorf("regions %+v", regions)
	}
	for _, r := range regions {
		if r.Size == 0 || r.SizeHuman == "" {
			t.Errorf("region %+v has no size", r)
		}
	}
	rec = get(t, h, "/api/v1/regions/the_end")
	if rec.Code != http.StatusNotFound {
		t.Errorf("the_end regions status %d", rec.Code)
	}
	var apiErr apiErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Error == "" || apiErr.RequestID == "" || apiErr.RequestID != rec.Header().Get("X-Request-Id") {
		t.Errorf("error body %+v, request id %q", apiErr, rec.Header().Get("X-Request-Id"))
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}

	rec = get(t, h, "/api/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"version", "world", "cache", "definitions"} {
		if _, ok := status[k]; !ok {
			t.Errorf("status has no %q: %v", k, status)
		}
	}
	if rec := get(t, h, "/robots.txt"); rec.Code != http.StatusOK {
		t.Errorf("robots status %d", rec.Code)
	}
}

func TestRequestIDIsKept(t *testing.T) {
	h := newTestServer(t).router()
	req := httptest.NewRequest("GET", "/robots.txt", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if id := rec.Header().Get("X-Request-Id"); id != "abc" {
		t.Errorf("request id %q", id)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegionChanged(t *testing.T) {
	s := newTestServer(t)
	decodeTile(t, get(t, s.router(), "/tiles/overworld/standard/1/0/0.png"))
	mosaic := primitives.ImageLocation{Dimension: "overworld", Variant: "standard", S: 1}
	tile := primitives.ImageLocation{Dimension: "overworld", Variant: "standard"}
	cached := func(loc primitives.ImageLocation) bool {
		c, err := s.cache.Get(loc)
		return err == nil && c.Img != nil
	}

	rw := newRegionWatcher(s, time.Millisecond)
	rw.regionChanged("overworld", 0, 0)
	waitFor(t, "mosaic invalidation", func() bool { return !cached(mosaic) })
	waitFor(t, "background render", func() bool { return cached(tile) })
	if cached(mosaic) {
		t.Error("mosaic rendered in background")
	}
}

func TestReloadDefinitions(t *testing.T) {
	s := newTestServer(t)
	p := filepath.Join(t.TempDir(), "defs.json")
	s.cfg.Render.Definitions = p
	if err := os.WriteFile(p, []byte(`{"name": "broken"`), 0644); err != nil {
		t.Fatal(err)
	}
	s.reloadDefinitions()
	if name := s.defs.Load().Name; name != "Default" {
		t.Errorf("broken definitions replaced %q", name)
	}
	if err := os.WriteFile(p, []byte(`{"name": "grey", "missing_block": {"color": "#808080"}, "blocks": {}}`), 0644); err != nil {
		t.Fatal(err)
	}
	s.reloadDefinitions()
	if name := s.defs.Load().Name; name != "grey" {
		t.Errorf("definitions %q after reload", name)
	}
	if _, ok := s.defs.Load().Lookup("minecraft:stone"); ok {
		t.Error("old definitions still used")
	}
}

func TestRenderOptionsKeepDefinitions(t *testing.T) {
	s := newTestServer(t)
	before := s.renderOptions(renderers.StandardShaderName)
	s.defs.Store(definitions.New("other", definitions.BlockDefinition{}, nil))
	if d, ok := before.Definitions.(*definitions.ViewportDefinition); !ok || d.Name != "Default" {
		t.Errorf("options taken before reload use %v", before.Definitions)
	}
	if d, ok := s.renderOptions("").Definitions.(*definitions.ViewportDefinition); !ok || d.Name != "other" {
		t.Errorf("options taken after reload use %v", d)
	}
}

func TestWatchDefinitionsReplaced(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	p := filepath.Join(dir, "defs.json")
	replace := func(name string) {
		tmp := p + ".tmp"
		if err := os.WriteFile(tmp, []byte(`{"name": "`+name+`", "missing_block": {"color": "#808080"}, "blocks": {}}`), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(tmp, p); err != nil {
			t.Fatal(err)
		}
	}
	replace("first")
	s.cfg.Render.Definitions = p
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.watch(ctx); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"second", "third"} {
		replace(name)
		waitFor(t, name+" definitions", func() bool { return s.defs.Load().Name == name })
	}
}
