package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/maxsupermanhd/regionmap/colorgen"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func colorgenCommand() *cli.Command {
	return &cli.Command{
		Name:      "colorgen",
		Usage:     "generate block definitions from a client jar or resource pack",
		ArgsUsage: "<client.jar>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "definitions.json", Usage: "file to write definitions to"},
			&cli.StringFlag{Name: "name", Usage: "definition set name"},
			&cli.StringFlag{Name: "version", Usage: "game version the jar is from"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("%w: expected one jar file", errUsage)
			}
			d, err := colorgen.GenerateFile(c.Args().First(), colorgen.Options{
				Name:             c.String("name"),
				MinecraftVersion: c.String("version"),
				Logger:           logger.Named("colorgen"),
			})
			if d == nil {
				return err
			}
			if err != nil {
				logger.Debug("skipped blocks", zap.Error(err))
				color.Yellow("Some blocks were skipped, run with --debug to see why")
			}
			f, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			if err := d.Encode(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			color.Green("Wrote %d blocks to %s", d.Len(), c.String("out"))
			return nil
		},
	}
}
