package renderers

import (
	"errors"
	"fmt"

	"github.com/maxsupermanhd/regionmap/chunk"
	"github.com/maxsupermanhd/regionmap/render"
)

var ErrUnknownShader = errors.New("unknown shader")

type ShaderInfo struct {
	Name        string
	DisplayName string
	New         func() render.ChunkShader
}

// Shaders lists every available shader, the first one is the default
var Shaders = []ShaderInfo{
	{
		Name:        StandardShaderName,
		DisplayName: "Standard",
		New:         func() render.ChunkShader { return NewStandardShader() },
	},
	{
		Name:        HeightShaderName,
		DisplayName: "Height map",
		New:         func() render.ChunkShader { return NewHeightShader() },
	},
}

// NewShader creates a fresh shader instance, empty name gives the default
func NewShader(name string) (render.ChunkShader, error) {
	if name == "" {
		return Shaders[0].New(), nil
	}
	for _, s := range Shaders {
		if s.Name == name {
			return s.New(), nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownShader, name)
}

func ShaderNames() []string {
	ret := make([]string, len(Shaders))
	for i, s := range Shaders {
		ret[i] = s.Name
	}
	return ret
}

// shadeDelta brightens blocks standing above their north, west and
// north-west neighbors and darkens ones below them
func shadeDelta(self, north, west, northWest int) int {
	d := 0
	d += compare(self, west) * 10
	d += compare(self, north) * 10
	d += compare(self, northWest) * 20
	return d
}

func compare(a, b int) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}

// neighborHeights looks up heights of blocks to the north (z-1), west
// (x-1) and north-west, columns outside the chunk count as self height
func neighborHeights(blocks []chunk.BlockSlim, w, x, z int) (north, west, northWest int) {
	self := blocks[z*w+x].Height
	north, west, northWest = self, self, self
	if z > 0 {
		north = blocks[(z-1)*w+x].Height
	}
	if x > 0 {
		west = blocks[z*w+x-1].Height
	}
	if x > 0 && z > 0 {
		northWest = blocks[(z-1)*w+x-1].Height
	}
	return
}
