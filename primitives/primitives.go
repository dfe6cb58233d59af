package primitives

import "fmt"

// ChunkCoords are chunk coordinates, absolute or relative to a region
// depending on context
type ChunkCoords struct {
	X, Z int
}

func (c ChunkCoords) String() string {
	return fmt.Sprintf("%d:%d", c.X, c.Z)
}

type RegionCoords struct {
	X, Z int
}

func (c RegionCoords) String() string {
	return fmt.Sprintf("r.%d.%d", c.X, c.Z)
}

// Range2 is an inclusive rectangle of chunk coordinates
type Range2 struct {
	Min, Max ChunkCoords
}

func (r Range2) Contains(c ChunkCoords) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X && c.Z >= r.Min.Z && c.Z <= r.Max.Z
}

func (r Range2) String() string {
	return fmt.Sprintf("[%d..%d]x[%d..%d]", r.Min.X, r.Max.X, r.Min.Z, r.Max.Z)
}

// ImageLocation addresses a rendered tile. S is the zoom out level:
// 0 is one region per tile, every next level doubles the side.
type ImageLocation struct {
	Dimension, Variant string
	S, X, Z            int
}

func (i ImageLocation) String() string {
	return fmt.Sprintf("{%s:%s at %ds %dx %dz}", i.Dimension, i.Variant, i.S, i.X, i.Z)
}
