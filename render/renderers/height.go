package renderers

import (
	"image/color"

	"github.com/maxsupermanhd/regionmap/chunk"
	"github.com/maxsupermanhd/regionmap/lib/pool"
	"github.com/maxsupermanhd/regionmap/render"
)

const HeightShaderName = "height"

// HeightShader paints the height of the top block in grayscale, from
// black at the lowest height of the chunk to white at the highest.
// Columns with nothing but air stay transparent.
type HeightShader struct {
	highest *pool.Pool[[]chunk.BlockSlim]
}

func NewHeightShader() *HeightShader {
	return &HeightShader{highest: pool.New[[]chunk.BlockSlim]()}
}

func (s *HeightShader) Name() string {
	return HeightShaderName
}

func (s *HeightShader) RenderChunk(o render.RenderOptions) {
	highest := rentHighest(s.highest, o)
	w := o.Chunk.Width()
	lowest := o.Chunk.LowestBlockHeight()
	span := o.Chunk.HighestBlockHeight() - lowest
	for z := 0; z < w; z++ {
		for x := 0; x < w; x++ {
			b := highest[z*w+x]
			if chunk.IsAir(b.Name) {
				continue
			}
			v := uint8(0)
			if span > 0 {
				v = uint8((b.Height - lowest) * 255 / span)
			}
			north, west, northWest := neighborHeights(highest, w, x, z)
			c := render.Shade(color.RGBA{v, v, v, 0xff}, shadeDelta(b.Height, north, west, northWest))
			o.Sink.SetRGBA(o.Origin.X+x, o.Origin.Y+z, c)
		}
	}
	s.highest.Return(highest[:0])
}
