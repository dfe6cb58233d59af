package main

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/maxsupermanhd/regionmap/definitions"
	"github.com/maxsupermanhd/regionmap/render/dispatchers"
	"github.com/maxsupermanhd/regionmap/render/renderers"
	"go.uber.org/zap"
)

const defaultConfigPath = "regionmap.toml"

type Config struct {
	LogsLocation string       `toml:"logs_location"`
	World        WorldConfig  `toml:"world"`
	Render       RenderConfig `toml:"render"`
	Web          WebConfig    `toml:"web"`
}

type WorldConfig struct {
	Path      string `toml:"path"`
	Dimension string `toml:"dimension"`
}

type RenderConfig struct {
	Workers int    `toml:"workers"`
	Shader  string `toml:"shader"`
	// nil renders from the top of every chunk
	HeightLimit *int `toml:"height_limit"`
	// path to a definitions json, empty for the built in set
	Definitions string `toml:"definitions"`
}

type WebConfig struct {
	Listen           string   `toml:"listen"`
	CacheRoot        string   `toml:"cache_root"`
	AutosaveInterval duration `toml:"autosave_interval"`
	// region renders per second started by tile requests
	RenderRate  float64 `toml:"render_rate"`
	RenderBurst int     `toml:"render_burst"`
	// re-render changed regions in background
	Watch bool `toml:"watch"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

func defaultConfig() Config {
	return Config{
		LogsLocation: "logs/regionmap.log",
		World: WorldConfig{
			Path:      ".",
			Dimension: "overworld",
		},
		Render: RenderConfig{
			Workers: 4,
			Shader:  renderers.StandardShaderName,
		},
		Web: WebConfig{
			Listen:           "127.0.0.1:3002",
			CacheRoot:        "cache",
			AutosaveInterval: duration{15 * time.Second},
			RenderRate:       4,
			RenderBurst:      8,
			Watch:            true,
		},
	}
}

type errUnknownConfig []string

func (e errUnknownConfig) Error() string {
	return "unknown config keys: [" + strings.Join(e, ", ") + "]"
}

// loadConfig reads path over the defaults. A missing file is fine
// unless it was asked for explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	c := defaultConfig()
	meta, err := toml.DecodeFile(path, &c)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return defaultConfig(), nil
		}
		return Config{}, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		var err errUnknownConfig
		for _, key := range undecoded {
			err = append(err, key.String())
		}
		return Config{}, err
	}
	return c, nil
}

func loadDefinitions(path string) (*definitions.ViewportDefinition, error) {
	if path == "" {
		return definitions.Default(), nil
	}
	return definitions.LoadFile(path)
}

// renderOptions builds dispatcher options from the render section,
// shader is left for the caller
func (c Config) renderOptions(defs definitions.Resolver, l *zap.Logger) dispatchers.Options {
	o := dispatchers.Options{
		Workers:     c.Render.Workers,
		Shader:      c.Render.Shader,
		Definitions: defs,
		Logger:      l,
	}
	if c.Render.HeightLimit != nil {
		o.HeightLimit = *c.Render.HeightLimit
		o.LimitHeight = true
	}
	return o
}
