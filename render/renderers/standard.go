package renderers

import (
	"image/color"
	"slices"

	"github.com/maxsupermanhd/regionmap/chunk"
	"github.com/maxsupermanhd/regionmap/definitions"
	"github.com/maxsupermanhd/regionmap/lib/pool"
	"github.com/maxsupermanhd/regionmap/render"
)

const (
	StandardShaderName = "standard"

	// each next unit of the same translucent layer contributes less,
	// ratio is alpha/(i*blendStrength+1)
	blendStrength = 0.5
)

// colorLayer is a run of the same translucent block in a column
type colorLayer struct {
	color     color.RGBA
	thickness int
}

// StandardShader paints top blocks with their definition color, mixes in
// translucent blocks (water, glass, leaves) down to the first opaque one
// and shades by height difference with north and west neighbors.
type StandardShader struct {
	layers  *pool.Pool[[]colorLayer]
	highest *pool.Pool[[]chunk.BlockSlim]
}

func NewStandardShader() *StandardShader {
	return &StandardShader{
		layers:  pool.New[[]colorLayer](),
		highest: pool.New[[]chunk.BlockSlim](),
	}
}

func (s *StandardShader) Name() string {
	return StandardShaderName
}

func (s *StandardShader) RenderChunk(o render.RenderOptions) {
	if o.Definitions == nil {
		o.Definitions = definitions.Default()
	}
	highest := rentHighest(s.highest, o)
	layers, ok := s.layers.Rent()
	if !ok {
		layers = make([]colorLayer, 0, 16)
	}
	w := o.Chunk.Width()
	for z := 0; z < w; z++ {
		for x := 0; x < w; x++ {
			layers = s.renderColumn(o, highest, layers[:0], x, z)
		}
	}
	s.layers.Return(layers[:0])
	s.highest.Return(highest[:0])
}

// rentHighest fills a buffer with the top visible block of every column
func rentHighest(p *pool.Pool[[]chunk.BlockSlim], o render.RenderOptions) []chunk.BlockSlim {
	w := o.Chunk.Width()
	highest, _ := p.Rent()
	if cap(highest) < w*w {
		highest = make([]chunk.BlockSlim, w*w)
	}
	highest = highest[:w*w]
	ceiling := o.Ceiling()
	for z := 0; z < w; z++ {
		for x := 0; x < w; x++ {
			highest[z*w+x] = o.Chunk.HighestBlockAt(x, z, ceiling, o.Definitions)
		}
	}
	return highest
}

func (s *StandardShader) renderColumn(o render.RenderOptions, highest []chunk.BlockSlim, layers []colorLayer, x, z int) []colorLayer {
	w := o.Chunk.Width()
	top := highest[z*w+x]
	px, py := o.Origin.X+x, o.Origin.Y+z
	def, ok := o.Definitions.Lookup(top.Name)
	if !ok {
		o.Sink.SetRGBA(px, py, o.Definitions.Missing().Color)
		return layers
	}
	north, west, northWest := neighborHeights(highest, w, x, z)
	delta := shadeDelta(top.Height, north, west, northWest)
	lowest := o.Chunk.LowestBlockHeight()
	if render.IsOpaque(def.Color) || top.Height <= lowest {
		o.Sink.SetRGBA(px, py, render.Shade(def.Color, delta))
		return layers
	}

	var background color.RGBA
	last, lastDef := top, def
	for {
		next := o.Chunk.HighestBlockBelow(x, z, last.Height, last.Name, o.Definitions)
		nextDef, ok := o.Definitions.Lookup(next.Name)
		if !ok {
			nextDef = o.Definitions.Missing()
		}
		layers = append(layers, colorLayer{
			color:     lastDef.Color,
			thickness: last.Height - next.Height,
		})
		if render.IsOpaque(nextDef.Color) || next.Height <= lowest {
			background = nextDef.Color
			break
		}
		last, lastDef = next, nextDef
	}
	// scanned top down, composited bottom up
	slices.Reverse(layers)
	o.Sink.SetRGBA(px, py, render.Shade(compositeLayers(background, layers), delta))
	return layers
}

func compositeLayers(background color.RGBA, layers []colorLayer) color.RGBA {
	result := background
	for _, l := range layers {
		alpha := float64(l.color.A) / 255
		for i := 0; i < l.thickness; i++ {
			result = render.Blend(result, l.color, alpha/(float64(i)*blendStrength+1))
		}
	}
	return result
}
