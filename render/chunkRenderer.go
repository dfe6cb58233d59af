package render

import (
	"image"
	"image/color"

	"github.com/maxsupermanhd/regionmap/chunk"
	"github.com/maxsupermanhd/regionmap/definitions"
)

// ChunkView is the block data shaders read, *chunk.Chunk implements it
type ChunkView interface {
	Width() int
	LowestBlockHeight() int
	HighestBlockHeight() int
	HighestBlockAt(x, z, ceiling int, defs definitions.Resolver) chunk.BlockSlim
	HighestBlockBelow(x, z, height int, exclude string, defs definitions.Resolver) chunk.BlockSlim
}

// PixelSink receives shaded pixels, *image.RGBA satisfies it
type PixelSink interface {
	SetRGBA(x, y int, c color.RGBA)
}

type RenderOptions struct {
	Chunk       ChunkView
	Definitions definitions.Resolver
	Sink        PixelSink
	// Origin is where column 0:0 of the chunk lands in Sink
	Origin image.Point
	// blocks above HeightLimit are ignored when LimitHeight is set
	HeightLimit int
	LimitHeight bool
}

// Ceiling is the height column scans start from
func (o RenderOptions) Ceiling() int {
	if o.LimitHeight {
		return o.HeightLimit
	}
	return o.Chunk.HighestBlockHeight()
}

// ChunkShader paints one pixel per column. Shaders keep scratch buffers
// between calls and must not be shared between goroutines.
type ChunkShader interface {
	Name() string
	RenderChunk(o RenderOptions)
}
