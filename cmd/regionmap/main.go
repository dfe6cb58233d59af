package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	BuildTime  = "00000000.000000"
	CommitHash = "0000000"
	GitTag     = "0.0"
)

var (
	loadedConfig Config
	logger       = zap.NewNop()
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		color.Yellow("Failed to load .env: %s", err)
	}
	if err := newApp().Run(os.Args); err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "regionmap",
		Usage:   "renders top-down maps of anvil region files",
		Version: fmt.Sprintf("%s (%s, built %s)", GitTag, CommitHash, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to toml config",
				Value:   defaultConfigPath,
				EnvVars: []string{"REGIONMAP_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log debug messages",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			loadedConfig, err = loadConfig(c.String("config"), c.IsSet("config"))
			if err != nil {
				return fmt.Errorf("loading config %s: %w", c.String("config"), err)
			}
			logger = createLogger(loadedConfig.LogsLocation, c.Bool("debug"))
			if info, ok := debug.ReadBuildInfo(); ok {
				logger.Debug("build info", zap.String("go", info.GoVersion), zap.String("tag", GitTag), zap.String("commit", CommitHash))
			}
			return nil
		},
		After: func(c *cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			renderCommand(),
			infoCommand(),
			dumpCommand(),
			serveCommand(),
			findCommand(),
			colorgenCommand(),
		},
	}
}

// signalContext is cancelled on interrupt or terminate
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
