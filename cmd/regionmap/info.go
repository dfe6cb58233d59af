package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/maxsupermanhd/regionmap/lib/nbt"
	"github.com/maxsupermanhd/regionmap/lib/nbtwalk"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/urfave/cli/v2"
	"github.com/willf/bitset"
)

var errUsage = errors.New("wrong arguments")

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "print region file summary",
		ArgsUsage: "<r.x.z.mca>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "decode", Usage: "decode every chunk and report failures"},
			&cli.BoolFlag{Name: "map", Usage: "draw generated chunks, north is up"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("%w: expected one region file", errUsage)
			}
			r, err := region.Open(c.Args().First())
			if err != nil {
				return err
			}
			return printRegionInfo(os.Stdout, c.Args().First(), r, c.Bool("decode"), c.Bool("map"))
		},
	}
}

func printRegionInfo(w io.Writer, path string, r *region.Region, decode, drawMap bool) error {
	generated := r.GeneratedChunks()
	mask := r.GeneratedMask()
	var oldest, newest time.Time
	for _, rel := range generated {
		ts, err := r.Timestamp(rel)
		if err != nil || ts.IsZero() {
			continue
		}
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	fmt.Fprintf(w, "File:      %s\n", filepath.Base(path))
	fmt.Fprintf(w, "Region:    %s, chunks %s\n", r.Coords(), r.ChunkRangeAbs())
	fmt.Fprintf(w, "Size:      %s\n", humanize.Bytes(uint64(r.Size())))
	fmt.Fprintf(w, "Generated: %d/%d\n", mask.Count(), region.TotalChunkCount)
	if !oldest.IsZero() {
		fmt.Fprintf(w, "Modified:  %s .. %s (%s)\n", oldest.Format(time.DateTime), newest.Format(time.DateTime), humanize.Time(newest))
	}
	if drawMap {
		printOccupancy(w, mask)
	}
	if !decode {
		return nil
	}
	ok := 0
	for _, rel := range generated {
		if _, err := r.GetChunk(rel); err != nil {
			color.New(color.FgRed).Fprintf(w, "%s\n", err)
			continue
		}
		ok++
	}
	if ok == len(generated) {
		color.New(color.FgGreen).Fprintf(w, "All %d chunks decoded\n", ok)
	} else {
		color.New(color.FgYellow).Fprintf(w, "Decoded %d chunks, %d failed\n", ok, len(generated)-ok)
	}
	return nil
}

// printOccupancy draws one row per chunk z, # for generated chunks
func printOccupancy(w io.Writer, mask *bitset.BitSet) {
	var line [region.ChunkCount + 1]byte
	line[region.ChunkCount] = '\n'
	for z := 0; z < region.ChunkCount; z++ {
		for x := 0; x < region.ChunkCount; x++ {
			line[x] = '.'
			if mask.Test(uint(x + z*region.ChunkCount)) {
				line[x] = '#'
			}
		}
		w.Write(line[:])
	}
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "print nbt tree of a chunk or of a standalone nbt file",
		ArgsUsage: "<r.x.z.mca> <x> <z> | <file.dat>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-array", Value: 16, Usage: "summarize arrays longer than this, -1 prints all"},
		},
		Action: func(c *cli.Context) error {
			root, err := dumpTarget(c.Args().Slice())
			if err != nil {
				return err
			}
			return nbtwalk.Dump(os.Stdout, root, c.Int("max-array"))
		},
	}
}

// dumpTarget decodes either chunk x:z (relative) of a region file or a
// whole gzip/zlib/raw nbt file
func dumpTarget(args []string) (*nbt.Compound, error) {
	switch len(args) {
	case 1:
		f, err := os.Open(args[0])
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return nbt.Decode(f, nbt.CompressionAuto)
	case 3:
		r, err := region.Open(args[0])
		if err != nil {
			return nil, err
		}
		x, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: chunk x: %w", errUsage, err)
		}
		z, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("%w: chunk z: %w", errUsage, err)
		}
		return r.GetChunkNBT(primitives.ChunkCoords{X: x, Z: z})
	}
	return nil, fmt.Errorf("%w: expected a file or a region file and chunk coordinates", errUsage)
}
