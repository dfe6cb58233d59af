package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/maxsupermanhd/regionmap/internal/fixtures"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
)

// writeWorld creates a save with overworld regions 0:0, 1:0 and -1:-1,
// each holding a stone chunk at 0:0 and a grass hill at 1:1
func writeWorld(t *testing.T) string {
	t.Helper()
	world := t.TempDir()
	dir := filepath.Join(world, "region")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, rc := range []primitives.RegionCoords{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: -1, Z: -1}} {
		b := fixtures.NewRegion()
		flat := fixtures.NewChunk(int32(rc.X*32), int32(rc.Z*32)).Layer(0, "minecraft:stone")
		if err := b.AddChunk(primitives.ChunkCoords{X: 0, Z: 0}, fixtures.MethodZlib, flat); err != nil {
			t.Fatal(err)
		}
		hill := fixtures.NewChunk(int32(rc.X*32+1), int32(rc.Z*32+1)).
			Layer(0, "minecraft:dirt").
			Column(8, 8, 1, 6, "minecraft:grass_block")
		if err := b.AddChunk(primitives.ChunkCoords{X: 1, Z: 1}, fixtures.MethodGzip, hill); err != nil {
			t.Fatal(err)
		}
		b.SetTimestamp(primitives.ChunkCoords{X: 0, Z: 0}, 1700000000)
		b.SetTimestamp(primitives.ChunkCoords{X: 1, Z: 1}, 1700003600)
		if err := os.WriteFile(region.RegionPath(dir, rc), b.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return world
}
