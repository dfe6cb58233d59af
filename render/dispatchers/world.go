package dispatchers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/maxsupermanhd/regionmap/render"
	"github.com/maxsupermanhd/regionmap/render/renderers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrShaderPanic = errors.New("shader panicked")

// RegionFailure is a region file that could not be read at all
type RegionFailure struct {
	Path   string
	Coords primitives.RegionCoords
	Err    error
}

func (f RegionFailure) Error() string {
	return fmt.Sprintf("region %s (%s): %s", f.Coords, f.Path, f.Err)
}

func (f RegionFailure) Unwrap() error {
	return f.Err
}

// RenderWorld renders every region file in dir with up to o.Workers
// regions in flight, every worker with its own shader. done receives
// results one at a time in completion order, it may be nil.
// Returned error is only set when the listing fails, shader is unknown
// or ctx is cancelled; unreadable regions are returned as failures.
func RenderWorld(ctx context.Context, dir string, o Options, done func(*RegionResult)) ([]RegionFailure, error) {
	files, err := region.ListRegionFiles(dir)
	if err != nil {
		return nil, err
	}
	workers := o.workers()
	shaders := make(chan render.ChunkShader, workers)
	for i := 0; i < workers; i++ {
		s, err := renderers.NewShader(o.Shader)
		if err != nil {
			return nil, err
		}
		shaders <- s
	}
	l := o.logger()
	l.Info("rendering world", zap.String("dir", dir), zap.Int("regions", len(files)), zap.Int("workers", workers))

	var (
		lock     sync.Mutex
		failures []RegionFailure
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		if gctx.Err() != nil {
			break
		}
		f := f
		g.Go(func() error {
			shader := <-shaders
			defer func() { shaders <- shader }()
			r, err := region.OpenAt(f.Path, f.Coords)
			if err != nil {
				l.Warn("region failed", zap.String("path", f.Path), zap.Error(err))
				lock.Lock()
				failures = append(failures, RegionFailure{Path: f.Path, Coords: f.Coords, Err: err})
				lock.Unlock()
				return nil
			}
			res, err := renderRegion(gctx, r, shader, o)
			if err != nil {
				return err
			}
			res.Path = f.Path
			l.Debug("region rendered", zap.Stringer("region", res.Coords), zap.Int("chunks", res.Rendered), zap.Int("failed", len(res.Failures)))
			lock.Lock()
			defer lock.Unlock()
			if done != nil {
				done(res)
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return failures, err
}
