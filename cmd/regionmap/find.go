package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maxsupermanhd/regionmap/chunk"
	"github.com/maxsupermanhd/regionmap/primitives"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type blockMatch struct {
	Chunk   primitives.ChunkCoords
	Section int
	Name    string
}

func (m blockMatch) String() string {
	return fmt.Sprintf("CHUNK x%d z%d section %d palette match %s", m.Chunk.X, m.Chunk.Z, m.Section, m.Name)
}

type findStats struct {
	regions atomic.Int64
	chunks  atomic.Int64
	failed  atomic.Int64
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "list chunks whose palette has a block name containing pattern",
		ArgsUsage: "<pattern>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "world", Usage: "world save folder (overrides config)"},
			&cli.StringFlag{Name: "dimension", Usage: "overworld, the_nether, the_end or namespace:name"},
			&cli.StringFlag{Name: "out", Usage: "append results to this file instead of stdout"},
			&cli.IntFlag{Name: "workers", Usage: "regions scanned in parallel"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 || c.Args().First() == "" {
				return fmt.Errorf("%w: expected one block name pattern", errUsage)
			}
			world, dim := loadedConfig.World.Path, loadedConfig.World.Dimension
			if c.IsSet("world") {
				world = c.String("world")
			}
			if c.IsSet("dimension") {
				dim = c.String("dimension")
			}
			workers := loadedConfig.Render.Workers
			if c.IsSet("workers") {
				workers = c.Int("workers")
			}
			var w io.Writer = os.Stdout
			if p := c.String("out"); p != "" {
				f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			ctx, cancel := signalContext(c.Context)
			defer cancel()
			var werr error
			st, err := findBlocks(ctx, region.DimensionPath(world, dim), c.Args().First(), workers, func(m blockMatch) {
				if werr == nil {
					_, werr = fmt.Fprintln(w, m)
				}
			})
			if err != nil {
				return err
			}
			logger.Info("search done",
				zap.Int64("regions", st.regions.Load()),
				zap.Int64("chunks", st.chunks.Load()),
				zap.Int64("failed", st.failed.Load()))
			return werr
		},
	}
}

// findBlocks scans every chunk of every region in dir. found is called
// one at a time. Broken regions and chunks are logged and counted.
func findBlocks(ctx context.Context, dir, pattern string, workers int, found func(blockMatch)) (*findStats, error) {
	files, err := region.ListRegionFiles(dir)
	if err != nil {
		return nil, err
	}
	st := &findStats{}
	var lock sync.Mutex
	progressDone := make(chan struct{})
	defer close(progressDone)
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		start := time.Now()
		for {
			select {
			case <-progressDone:
				return
			case <-t.C:
				logger.Info("searching",
					zap.Int64("regions", st.regions.Load()),
					zap.Int("total", len(files)),
					zap.String("chunks", humanize.Comma(st.chunks.Load())),
					zap.Duration("elapsed", time.Since(start).Round(time.Second)))
			}
		}
	}()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, f := range files {
		if gctx.Err() != nil {
			break
		}
		f := f
		g.Go(func() error {
			r, err := region.OpenAt(f.Path, f.Coords)
			if errors.Is(err, region.ErrNoData) {
				return nil
			}
			if err != nil {
				logger.Warn("region skipped", zap.String("path", f.Path), zap.Error(err))
				return nil
			}
			for _, rel := range r.GeneratedChunks() {
				if err := gctx.Err(); err != nil {
					return err
				}
				c, err := r.GetChunk(rel)
				if err != nil {
					st.failed.Add(1)
					logger.Debug("chunk skipped", zap.Stringer("region", f.Coords), zap.Stringer("chunk", rel), zap.Error(err))
					continue
				}
				st.chunks.Add(1)
				lowest, highest := c.SectionRange()
				for y := lowest; y <= highest; y++ {
					for _, name := range c.Palette(y) {
						if !strings.Contains(name, pattern) || chunk.IsAir(name) {
							continue
						}
						lock.Lock()
						found(blockMatch{Chunk: c.Coords(), Section: y, Name: name})
						lock.Unlock()
					}
				}
			}
			st.regions.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return st, err
	}
	return st, ctx.Err()
}
