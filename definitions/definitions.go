// Package definitions maps block names to the colors used on the map.
package definitions

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/maps"
)

// BlockDefinition is how one block name is drawn
type BlockDefinition struct {
	DisplayName string
	// Color is not premultiplied, A below 255 makes the block translucent
	Color color.RGBA
	// Excluded blocks are skipped by column scans like air
	Excluded bool
}

// Resolver looks up block definitions by namespaced name.
// Implementations must be safe for concurrent reads.
type Resolver interface {
	Lookup(name string) (BlockDefinition, bool)
	// Missing is painted for names Lookup does not know
	Missing() BlockDefinition
}

var (
	ErrNoName        = errors.New("definition has no name")
	ErrEmptyBlockKey = errors.New("empty block name")
)

type blockJSON struct {
	DisplayName string  `json:"display_name"`
	Color       hexRGBA `json:"color"`
	Excluded    bool    `json:"excluded,omitempty"`
}

type definitionJSON struct {
	Name             string               `json:"name"`
	FormatVersion    int                  `json:"format_version"`
	MinecraftVersion string               `json:"minecraft_version"`
	MissingBlock     blockJSON            `json:"missing_block"`
	Blocks           map[string]blockJSON `json:"blocks"`
}

// ViewportDefinition is a named set of block definitions, usually
// loaded from a json file. It is immutable after loading.
type ViewportDefinition struct {
	Name             string
	FormatVersion    int
	MinecraftVersion string
	// Filename is the base name of the file it was loaded from, if any
	Filename string
	missing  BlockDefinition
	blocks   map[string]BlockDefinition
}

// New builds a definition set in code, blocks is copied
func New(name string, missing BlockDefinition, blocks map[string]BlockDefinition) *ViewportDefinition {
	return &ViewportDefinition{
		Name:    name,
		missing: missing,
		blocks:  maps.Clone(blocks),
	}
}

func (d *ViewportDefinition) Lookup(name string) (BlockDefinition, bool) {
	b, ok := d.blocks[name]
	return b, ok
}

func (d *ViewportDefinition) Missing() BlockDefinition {
	return d.missing
}

func (d *ViewportDefinition) Len() int {
	return len(d.blocks)
}

// Names returns defined block names sorted
func (d *ViewportDefinition) Names() []string {
	ret := maps.Keys(d.blocks)
	slices.Sort(ret)
	return ret
}

// Load parses a json definition
func Load(r io.Reader) (*ViewportDefinition, error) {
	var raw definitionJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding definition: %w", err)
	}
	if strings.TrimSpace(raw.Name) == "" {
		return nil, ErrNoName
	}
	d := &ViewportDefinition{
		Name:             raw.Name,
		FormatVersion:    raw.FormatVersion,
		MinecraftVersion: raw.MinecraftVersion,
		missing:          raw.MissingBlock.definition(),
		blocks:           make(map[string]BlockDefinition, len(raw.Blocks)),
	}
	for k, v := range raw.Blocks {
		if k == "" {
			return nil, fmt.Errorf("definition %q: %w", raw.Name, ErrEmptyBlockKey)
		}
		d.blocks[k] = v.definition()
	}
	return d, nil
}

func LoadFile(path string) (*ViewportDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d.Filename = filepath.Base(path)
	return d, nil
}

// LoadDir loads every *.json file in dir. Files that fail to load are
// skipped and reported in the returned error, good ones are returned
// regardless.
func LoadDir(dir string) ([]*ViewportDefinition, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	var ret []*ViewportDefinition
	var errs *multierror.Error
	for _, m := range matches {
		d, err := LoadFile(m)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		ret = append(ret, d)
	}
	return ret, errs.ErrorOrNil()
}

// Encode writes d as indented json that Load accepts
func (d *ViewportDefinition) Encode(w io.Writer) error {
	raw := definitionJSON{
		Name:             d.Name,
		FormatVersion:    d.FormatVersion,
		MinecraftVersion: d.MinecraftVersion,
		MissingBlock:     toBlockJSON(d.missing),
		Blocks:           make(map[string]blockJSON, len(d.blocks)),
	}
	for k, v := range d.blocks {
		raw.Blocks[k] = toBlockJSON(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(raw)
}

func toBlockJSON(b BlockDefinition) blockJSON {
	return blockJSON{
		DisplayName: b.DisplayName,
		Color:       hexRGBA(b.Color),
		Excluded:    b.Excluded,
	}
}

func (b blockJSON) definition() BlockDefinition {
	return BlockDefinition{
		DisplayName: b.DisplayName,
		Color:       color.RGBA(b.Color),
		Excluded:    b.Excluded,
	}
}

var (
	//go:embed default.json
	defaultDefinition []byte
	defaultOnce       sync.Once
	defaultParsed     *ViewportDefinition
)

// Default returns the built in definition set, shared between callers
func Default() *ViewportDefinition {
	defaultOnce.Do(func() {
		d, err := Load(bytes.NewReader(defaultDefinition))
		if err != nil {
			panic("built in definition is broken: " + err.Error())
		}
		d.Filename = "default.json"
		defaultParsed = d
	})
	return defaultParsed
}
