package main

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maxsupermanhd/regionmap/primitives"
)

func TestFindBlocks(t *testing.T) {
	dir := filepath.Join(writeWorld(t), "region")
	var got []blockMatch
	st, err := findBlocks(context.Background(), dir, "grass", 2, func(m blockMatch) {
		got = append(got, m)
	})
	if err != nil {
		t.Fatal(err)
	}
	slices.SortFunc(got, func(a, b blockMatch) int {
		if a.Chunk.X != b.Chunk.X {
			return a.Chunk.X - b.Chunk.X
		}
		return a.Chunk.Z - b.Chunk.Z
	})
	want := []blockMatch{
		{Chunk: primitives.ChunkCoords{X: -31, Z: -31}, Section: 0, Name: "minecraft:grass_block"},
		{Chunk: primitives.ChunkCoords{X: 1, Z: 1}, Section: 0, Name: "minecraft:grass_block"},
		{Chunk: primitives.ChunkCoords{X: 33, Z: 1}, Section: 0, Name: "minecraft:grass_block"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("matches mismatch (-want +got):\n%s", diff)
	}
	if st.regions.Load() != 3 || st.chunks.Load() != 6 || st.failed.Load() != 0 {
		t.Errorf("stats %d regions %d chunks %d failed", st.regions.Load(), st.chunks.Load(), st.failed.Load())
	}
	if got[0].String() != "CHUNK x-31 z-31 section 0 palette match minecraft:grass_block" {
		t.Errorf("line %q", got[0].String())
	}

	got = nil
	if _, err := findBlocks(context.Background(), dir, "air", 1, func(m blockMatch) { got = append(got, m) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("air matched: %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := findBlocks(ctx, dir, "stone", 1, func(blockMatch) {}); err == nil {
		t.Error("cancelled search succeeded")
	}
	if _, err := findBlocks(context.Background(), filepath.Join(dir, "nope"), "stone", 1, func(blockMatch) {}); err == nil {
		t.Error("missing folder accepted")
	}
}
