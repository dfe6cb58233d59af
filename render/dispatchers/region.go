package dispatchers

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"

	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/regionmap/chunk"
	"github.com/maxsupermanhd/regionmap/definitions"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/maxsupermanhd/regionmap/render"
	"github.com/maxsupermanhd/regionmap/render/renderers"
	"go.uber.org/zap"
)

// RegionImageSize is the side of a rendered region in pixels
const RegionImageSize = region.ChunkCount * chunk.Width

type Options struct {
	// Workers bounds regions rendered at once by RenderWorld, <1 means 1
	Workers int
	// Shader is a name from renderers.Shaders, empty for the default one
	Shader      string
	Definitions definitions.Resolver
	HeightLimit int
	LimitHeight bool
	Logger      *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}

// ChunkFailure is a chunk that could not be decoded or rendered
type ChunkFailure struct {
	Coords primitives.ChunkCoords
	Err    error
}

func (f ChunkFailure) Error() string {
	return fmt.Sprintf("chunk %s: %s", f.Coords, f.Err)
}

func (f ChunkFailure) Unwrap() error {
	return f.Err
}

type RegionResult struct {
	Coords primitives.RegionCoords
	// Path is set for regions opened by RenderWorld
	Path     string
	Image    *image.RGBA
	Rendered int
	Failures []ChunkFailure
}

// Err joins chunk failures, nil when every chunk rendered
func (r *RegionResult) Err() error {
	var ret *multierror.Error
	for _, f := range r.Failures {
		ret = multierror.Append(ret, f)
	}
	return ret.ErrorOrNil()
}

// RenderRegion paints every generated chunk of r into a region sized
// image. Broken chunks are recorded and skipped, their pixels stay
// transparent. On cancellation the partial result is returned with
// ctx.Err().
func RenderRegion(ctx context.Context, r *region.Region, o Options) (*RegionResult, error) {
	shader, err := renderers.NewShader(o.Shader)
	if err != nil {
		return nil, err
	}
	return renderRegion(ctx, r, shader, o)
}

func renderRegion(ctx context.Context, r *region.Region, shader render.ChunkShader, o Options) (*RegionResult, error) {
	if o.Definitions == nil {
		o.Definitions = definitions.Default()
	}
	l := o.logger().With(zap.Stringer("region", r.Coords()))
	ret := &RegionResult{
		Coords: r.Coords(),
		Image:  image.NewRGBA(image.Rect(0, 0, RegionImageSize, RegionImageSize)),
	}
	for _, rel := range r.GeneratedChunks() {
		if err := ctx.Err(); err != nil {
			l.Debug("region render cancelled", zap.Int("rendered", ret.Rendered))
			return ret, err
		}
		if err := renderChunk(r, rel, shader, ret.Image, o); err != nil {
			l.Debug("chunk failed", zap.Stringer("chunk", rel), zap.Error(err))
			ret.Failures = append(ret.Failures, ChunkFailure{Coords: rel, Err: err})
			continue
		}
		ret.Rendered++
	}
	return ret, nil
}

func renderChunk(r *region.Region, rel primitives.ChunkCoords, shader render.ChunkShader, img *image.RGBA, o Options) (err error) {
	defer func() {
		if p := recover(); p != nil {
			o.logger().Error("shader panicked", zap.Stringer("chunk", rel), zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrShaderPanic, p)
		}
	}()
	c, err := r.GetChunk(rel)
	if err != nil {
		return err
	}
	shader.RenderChunk(render.RenderOptions{
		Chunk:       c,
		Definitions: o.Definitions,
		Sink:        img,
		Origin:      image.Pt(rel.X*chunk.Width, rel.Z*chunk.Width),
		HeightLimit: o.HeightLimit,
		LimitHeight: o.LimitHeight,
	})
	return nil
}
