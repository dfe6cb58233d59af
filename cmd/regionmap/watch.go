package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/maxsupermanhd/regionmap/render/renderers"
	"go.uber.org/zap"
)

var knownDimensions = []string{"overworld", "the_nether", "the_end"}

// the game rewrites a region many times while saving
const regionDebounce = 2 * time.Second

type regionWatcher struct {
	s        *server
	debounce time.Duration
	lock     sync.Mutex
	pending  map[primitives.ImageLocation]*time.Timer
}

func newRegionWatcher(s *server, debounce time.Duration) *regionWatcher {
	return &regionWatcher{
		s:        s,
		debounce: debounce,
		pending:  map[primitives.ImageLocation]*time.Timer{},
	}
}

// watch follows region folders of known dimensions and the folder of
// the definitions file until ctx is done
func (s *server) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := map[string]string{}
	for _, dim := range knownDimensions {
		dir := filepath.Clean(s.dimensionDir(dim))
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.l.Warn("can not watch region folder", zap.String("dir", dir), zap.Error(err))
			continue
		}
		dirs[dir] = dim
	}
	defsPath := ""
	if s.cfg.Render.Definitions != "" {
		defsPath = filepath.Clean(s.cfg.Render.Definitions)
		// editors replace the file by rename, so follow its folder
		if err := watcher.Add(filepath.Dir(defsPath)); err != nil {
			s.l.Warn("can not watch definitions", zap.String("path", defsPath), zap.Error(err))
		}
	}
	rw := newRegionWatcher(s, regionDebounce)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				name := filepath.Clean(event.Name)
				if name == defsPath {
					s.reloadDefinitions()
					continue
				}
				dim, ok := dirs[filepath.Dir(name)]
				if !ok {
					continue
				}
				var x, z int
				if region.ExtractRegionPath(filepath.Base(name), &x, &z) {
					rw.regionChanged(dim, x, z)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.l.Warn("file watcher error", zap.Error(err))
			}
		}
	}()
	s.l.Info("watching for changes", zap.Int("dimensions", len(dirs)), zap.String("definitions", defsPath))
	return nil
}

// regionChanged drops cached tiles of the region once writes settle and
// queues a background render of its default variant
func (rw *regionWatcher) regionChanged(dim string, x, z int) {
	variant := rw.s.cfg.Render.Shader
	if variant == "" {
		variant = renderers.StandardShaderName
	}
	loc := primitives.ImageLocation{Dimension: dim, Variant: variant, X: x, Z: z}
	rw.lock.Lock()
	defer rw.lock.Unlock()
	if t, ok := rw.pending[loc]; ok {
		t.Reset(rw.debounce)
		return
	}
	rw.pending[loc] = time.AfterFunc(rw.debounce, func() {
		rw.lock.Lock()
		delete(rw.pending, loc)
		rw.lock.Unlock()
		n := rw.s.cache.Invalidate(dim, x, z)
		rw.s.l.Debug("region changed", zap.Stringer("loc", loc), zap.Int("invalidated", n))
		if err := rw.s.pipeline.AddToRenderQueue(loc); err != nil {
			rw.s.l.Debug("re-render not queued", zap.Stringer("loc", loc), zap.Error(err))
		}
	})
}

func (s *server) reloadDefinitions() {
	d, err := loadDefinitions(s.cfg.Render.Definitions)
	if err != nil {
		s.l.Error("definitions reload failed, keeping old ones", zap.Error(err))
		return
	}
	s.defs.Store(d)
	s.l.Info("definitions reloaded", zap.String("name", d.Name), zap.Int("blocks", d.Len()))
}
