package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/regionmap/region"
	"github.com/maxsupermanhd/regionmap/render/dispatchers"
	"github.com/nfnt/resize"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "render a region file or a whole dimension to png files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "region", Usage: "single region file to render"},
			&cli.StringFlag{Name: "world", Usage: "world save folder (overrides config)"},
			&cli.StringFlag{Name: "dimension", Usage: "overworld, the_nether, the_end or namespace:name"},
			&cli.StringFlag{Name: "out", Value: "out", Usage: "directory for png files"},
			&cli.StringFlag{Name: "shader", Usage: "shader name, see serve /api/v1/shaders"},
			&cli.StringFlag{Name: "definitions", Usage: "block definitions json"},
			&cli.IntFlag{Name: "height-limit", Usage: "ignore blocks above this height"},
			&cli.Float64Flag{Name: "scale", Value: 1, Usage: "resize output images by this factor"},
			&cli.IntFlag{Name: "workers", Usage: "regions rendered in parallel"},
		},
		Action: func(c *cli.Context) error {
			o, err := renderFlags(c)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(c.Context)
			defer cancel()
			out := c.String("out")
			if err := os.MkdirAll(out, 0755); err != nil {
				return err
			}
			w := &pngWriter{dir: out, scale: c.Float64("scale")}
			if p := c.String("region"); p != "" {
				return renderSingle(ctx, p, o, w)
			}
			world, dim := loadedConfig.World.Path, loadedConfig.World.Dimension
			if c.IsSet("world") {
				world = c.String("world")
			}
			if c.IsSet("dimension") {
				dim = c.String("dimension")
			}
			return renderDimension(ctx, region.DimensionPath(world, dim), o, w)
		},
	}
}

func renderFlags(c *cli.Context) (dispatchers.Options, error) {
	rc := loadedConfig
	if c.IsSet("shader") {
		rc.Render.Shader = c.String("shader")
	}
	if c.IsSet("definitions") {
		rc.Render.Definitions = c.String("definitions")
	}
	if c.IsSet("height-limit") {
		h := c.Int("height-limit")
		rc.Render.HeightLimit = &h
	}
	if c.IsSet("workers") {
		rc.Render.Workers = c.Int("workers")
	}
	defs, err := loadDefinitions(rc.Render.Definitions)
	if err != nil {
		return dispatchers.Options{}, err
	}
	return rc.renderOptions(defs, logger), nil
}

type pngWriter struct {
	dir   string
	scale float64
}

func (w *pngWriter) write(res *dispatchers.RegionResult) error {
	var img image.Image = res.Image
	if w.scale > 0 && w.scale != 1 {
		side := uint(float64(dispatchers.RegionImageSize) * w.scale)
		img = resize.Resize(side, side, res.Image, resize.NearestNeighbor)
	}
	p := filepath.Join(w.dir, res.Coords.String()+".png")
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func renderSingle(ctx context.Context, path string, o dispatchers.Options, w *pngWriter) error {
	r, err := region.Open(path)
	if err != nil {
		return err
	}
	res, err := dispatchers.RenderRegion(ctx, r, o)
	if err != nil {
		return err
	}
	printChunkFailures(res)
	if err := w.write(res); err != nil {
		return err
	}
	color.Green("Rendered %d chunks of %s", res.Rendered, res.Coords)
	return nil
}

func renderDimension(ctx context.Context, dir string, o dispatchers.Options, w *pngWriter) error {
	regions, chunks, failed := 0, 0, 0
	var writeErr *multierror.Error
	failures, err := dispatchers.RenderWorld(ctx, dir, o, func(res *dispatchers.RegionResult) {
		regions++
		chunks += res.Rendered
		failed += len(res.Failures)
		printChunkFailures(res)
		if err := w.write(res); err != nil {
			logger.Error("failed to write image", zap.Stringer("region", res.Coords), zap.Error(err))
			writeErr = multierror.Append(writeErr, err)
		}
	})
	for _, f := range failures {
		color.Red("%s", f)
	}
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("Rendered %d regions (%d chunks) from %s", regions, chunks, dir)
	if failed > 0 || len(failures) > 0 {
		color.Yellow("%s, %d chunks and %d regions failed", summary, failed, len(failures))
	} else {
		color.Green("%s", summary)
	}
	return writeErr.ErrorOrNil()
}

func printChunkFailures(res *dispatchers.RegionResult) {
	for _, f := range res.Failures {
		color.Red("%s %s", res.Coords, f)
	}
}
