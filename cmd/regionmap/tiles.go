package main

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	imagecache "github.com/maxsupermanhd/regionmap/imageCache"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/maxsupermanhd/regionmap/render/dispatchers"
	"github.com/maxsupermanhd/regionmap/render/renderers"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

var errTileNotFound = errors.New("no regions in tile")

func parseTileLocation(params map[string]string) (primitives.ImageLocation, error) {
	loc := primitives.ImageLocation{
		Dimension: params["dim"],
		Variant:   params["variant"],
	}
	var err error
	if loc.S, err = strconv.Atoi(params["s"]); err != nil {
		return loc, err
	}
	if loc.X, err = strconv.Atoi(params["x"]); err != nil {
		return loc, err
	}
	if loc.Z, err = strconv.Atoi(params["z"]); err != nil {
		return loc, err
	}
	if loc.S > imagecache.MaxScale {
		return loc, fmt.Errorf("scale %d is over %d", loc.S, imagecache.MaxScale)
	}
	return loc, nil
}

func knownShader(name string) bool {
	for _, n := range renderers.ShaderNames() {
		if n == name {
			return true
		}
	}
	return false
}

func (s *server) tileHandler(w http.ResponseWriter, r *http.Request) {
	loc, err := parseTileLocation(mux.Vars(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !knownShader(loc.Variant) {
		http.Error(w, "unknown variant "+loc.Variant, http.StatusNotFound)
		return
	}
	img, modTime, err := s.tile(loc)
	if errors.Is(err, errTileNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.l.Error("tile render failed", zap.Stringer("loc", loc), zap.Error(err))
		http.Error(w, "render failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if !modTime.IsZero() {
		w.Header().Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
	}
	if err := png.Encode(w, img); err != nil {
		s.l.Debug("tile write failed", zap.Stringer("loc", loc), zap.Error(err))
	}
}

// tile returns cached image or renders it, concurrent requests for the
// same location share one render
func (s *server) tile(loc primitives.ImageLocation) (*image.RGBA, time.Time, error) {
	cached, err := s.cache.Get(loc)
	if err != nil {
		s.l.Warn("cached tile unreadable", zap.Stringer("loc", loc), zap.Error(err))
	} else if cached.Img != nil {
		return cached.Img, cached.ModTime, nil
	}
	v, err, shared := s.renders.Do(loc.String(), func() (any, error) {
		return s.renderTile(loc)
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	if shared {
		s.l.Debug("tile render shared", zap.Stringer("loc", loc))
	}
	return v.(*image.RGBA), time.Now(), nil
}

func (s *server) renderTile(loc primitives.ImageLocation) (*image.RGBA, error) {
	if loc.S == 0 {
		return s.renderRegionTile(loc)
	}
	present, err := s.regionsInTile(loc)
	if err != nil {
		return nil, err
	}
	if len(present) == 0 {
		return nil, errTileNotFound
	}
	ret := image.NewRGBA(image.Rect(0, 0, dispatchers.RegionImageSize, dispatchers.RegionImageSize))
	half := dispatchers.RegionImageSize / 2
	for dz := 0; dz < 2; dz++ {
		for dx := 0; dx < 2; dx++ {
			child := loc
			child.S--
			child.X = loc.X*2 + dx
			child.Z = loc.Z*2 + dz
			if !anyInTile(present, child) {
				continue
			}
			img, _, err := s.tile(child)
			if errors.Is(err, errTileNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			small := resize.Resize(uint(half), uint(half), img, resize.Bilinear)
			draw.Draw(ret, image.Rect(dx*half, dz*half, dx*half+half, dz*half+half), small, image.Point{}, draw.Src)
		}
	}
	s.cache.Set(loc, ret)
	return ret, nil
}

func (s *server) renderRegionTile(loc primitives.ImageLocation) (*image.RGBA, error) {
	r, err := s.fetchRegion(loc)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, region.ErrNoData) {
		return nil, errTileNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Wait(s.ctx); err != nil {
		return nil, err
	}
	res, err := dispatchers.RenderRegion(s.ctx, r, s.renderOptions(loc.Variant))
	if err != nil {
		return nil, err
	}
	if ferr := res.Err(); ferr != nil {
		s.l.Warn("region rendered with failures", zap.Stringer("loc", loc), zap.Int("failed", len(res.Failures)), zap.Error(ferr))
	}
	s.cache.Set(loc, res.Image)
	return res.Image, nil
}

func (s *server) regionsInTile(loc primitives.ImageLocation) ([]primitives.RegionCoords, error) {
	files, err := region.ListRegionFiles(s.dimensionDir(loc.Dimension))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ret := []primitives.RegionCoords{}
	for _, f := range files {
		if f.Coords.X>>loc.S == loc.X && f.Coords.Z>>loc.S == loc.Z {
			ret = append(ret, f.Coords)
		}
	}
	return ret, nil
}

func anyInTile(regions []primitives.RegionCoords, loc primitives.ImageLocation) bool {
	for _, c := range regions {
		if c.X>>loc.S == loc.X && c.Z>>loc.S == loc.Z {
			return true
		}
	}
	return false
}
