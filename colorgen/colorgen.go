// Package colorgen builds block definitions out of a game client jar or
// resource pack by averaging the texture seen from above.
package colorgen

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/maxsupermanhd/regionmap/definitions"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

var (
	ErrNoBlockstates = errors.New("no blockstates found")
	ErrNoModel       = errors.New("blockstate has no model")
	ErrNoTexture     = errors.New("model has no texture")
)

var blockstateRegex = regexp.MustCompile(`^assets/([a-z0-9_.-]+)/blockstates/([a-z0-9_/.-]+)\.json$`)

// texture slots in order of preference, top faces first
var texturePreference = []string{"top", "end", "up", "all", "texture", "cross", "plant", "side", "particle"}

// parents deeper than this are treated as a loop
const maxModelDepth = 16

var skippedBlocks = map[string]bool{
	"minecraft:air":      true,
	"minecraft:cave_air": true,
	"minecraft:void_air": true,
}

type Options struct {
	Name             string
	MinecraftVersion string
	Logger           *zap.Logger
}

type blockstateJSON struct {
	Variants  map[string]json.RawMessage `json:"variants"`
	Multipart []struct {
		When  json.RawMessage `json:"when"`
		Apply json.RawMessage `json:"apply"`
	} `json:"multipart"`
}

type modelRef struct {
	Model string `json:"model"`
}

type modelJSON struct {
	Parent   string            `json:"parent"`
	Textures map[string]string `json:"textures"`
}

type generator struct {
	files    map[string]*zip.File
	l        *zap.Logger
	models   map[string]*modelJSON
	textures map[string]color.RGBA
}

// GenerateFile is Generate over a jar or zip file on disk
func GenerateFile(path string, o Options) (*definitions.ViewportDefinition, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Generate(&r.Reader, o)
}

// Generate maps every blockstate in the archive to the average color
// of its model's top texture. Blocks that can not be resolved are
// left out and reported in the returned error, the definition is
// returned regardless unless no blockstates were found.
func Generate(zr *zip.Reader, o Options) (*definitions.ViewportDefinition, error) {
	g := &generator{
		files:    make(map[string]*zip.File, len(zr.File)),
		l:        o.Logger,
		models:   map[string]*modelJSON{},
		textures: map[string]color.RGBA{},
	}
	if g.l == nil {
		g.l = zap.NewNop()
	}
	for _, f := range zr.File {
		g.files[f.Name] = f
	}
	names := maps.Keys(g.files)
	slices.Sort(names)
	blocks := map[string]definitions.BlockDefinition{}
	var errs *multierror.Error
	found := 0
	for _, fname := range names {
		m := blockstateRegex.FindStringSubmatch(fname)
		if m == nil {
			continue
		}
		found++
		name := m[1] + ":" + m[2]
		if skippedBlocks[name] {
			continue
		}
		c, err := g.blockColor(fname)
		if err != nil {
			g.l.Debug("block skipped", zap.String("block", name), zap.Error(err))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		blocks[name] = definitions.BlockDefinition{
			DisplayName: displayName(m[2]),
			Color:       c,
		}
	}
	if found == 0 {
		return nil, ErrNoBlockstates
	}
	name := o.Name
	if name == "" {
		name = "Generated"
	}
	d := definitions.New(name, definitions.BlockDefinition{
		DisplayName: "Unknown block",
		Color:       color.RGBA{R: 0xff, B: 0xff, A: 0xff},
	}, blocks)
	d.FormatVersion = 1
	d.MinecraftVersion = o.MinecraftVersion
	g.l.Info("definitions generated", zap.Int("blockstates", found), zap.Int("blocks", len(blocks)), zap.Int("textures", len(g.textures)))
	return d, errs.ErrorOrNil()
}

func displayName(id string) string {
	words := strings.Split(id[strings.LastIndex(id, "/")+1:], "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func (g *generator) readJSON(fname string, v any) error {
	f, ok := g.files[fname]
	if !ok {
		return fmt.Errorf("%s not found", fname)
	}
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("%s: %w", fname, err)
	}
	return nil
}

func (g *generator) blockColor(fname string) (color.RGBA, error) {
	var bs blockstateJSON
	if err := g.readJSON(fname, &bs); err != nil {
		return color.RGBA{}, err
	}
	model, err := pickModel(bs)
	if err != nil {
		return color.RGBA{}, err
	}
	textures, err := g.modelTextures(model, 0)
	if err != nil {
		return color.RGBA{}, err
	}
	tex := pickTexture(textures)
	if tex == "" {
		return color.RGBA{}, fmt.Errorf("%w: %s", ErrNoTexture, model)
	}
	return g.textureColor(tex)
}

// pickModel takes the default variant, or the first one by key, or the
// unconditional multipart piece
func pickModel(bs blockstateJSON) (string, error) {
	var raw json.RawMessage
	switch {
	case len(bs.Variants) > 0:
		raw = bs.Variants[""]
		if raw == nil {
			keys := maps.Keys(bs.Variants)
			slices.Sort(keys)
			raw = bs.Variants[keys[0]]
		}
	case len(bs.Multipart) > 0:
		raw = bs.Multipart[0].Apply
		for _, p := range bs.Multipart {
			if p.When == nil {
				raw = p.Apply
				break
			}
		}
	}
	if raw == nil {
		return "", ErrNoModel
	}
	var ref modelRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		var refs []modelRef
		if err := json.Unmarshal(raw, &refs); err != nil || len(refs) == 0 {
			return "", fmt.Errorf("%w: %s", ErrNoModel, raw)
		}
		ref = refs[0]
	}
	if ref.Model == "" {
		return "", ErrNoModel
	}
	return ref.Model, nil
}

func resourcePath(ref, kind, ext string) string {
	ns, p, ok := strings.Cut(ref, ":")
	if !ok {
		ns, p = "minecraft", ref
	}
	return "assets/" + ns + "/" + kind + "/" + p + ext
}

// modelTextures resolves the texture map of a model with its parents
// merged in, #references are replaced by what they point at
func (g *generator) modelTextures(model string, depth int) (map[string]string, error) {
	if depth > maxModelDepth {
		return nil, fmt.Errorf("model %s: parent chain too deep", model)
	}
	m, ok := g.models[model]
	if !ok {
		m = &modelJSON{}
		if err := g.readJSON(resourcePath(model, "models", ".json"), m); err != nil {
			return nil, err
		}
		g.models[model] = m
	}
	ret := map[string]string{}
	if m.Parent != "" && !strings.HasPrefix(m.Parent, "builtin/") {
		parent, err := g.modelTextures(m.Parent, depth+1)
		if err != nil {
			return nil, err
		}
		maps.Copy(ret, parent)
	}
	maps.Copy(ret, m.Textures)
	if depth > 0 {
		return ret, nil
	}
	for k, v := range ret {
		for i := 0; strings.HasPrefix(v, "#") && i < maxModelDepth; i++ {
			v = ret[v[1:]]
		}
		ret[k] = v
	}
	return ret, nil
}

func pickTexture(textures map[string]string) string {
	for _, k := range texturePreference {
		if t := textures[k]; t != "" && !strings.HasPrefix(t, "#") {
			return t
		}
	}
	keys := maps.Keys(textures)
	slices.Sort(keys)
	for _, k := range keys {
		if t := textures[k]; t != "" && !strings.HasPrefix(t, "#") {
			return t
		}
	}
	return ""
}

func (g *generator) textureColor(tex string) (color.RGBA, error) {
	fname := resourcePath(tex, "textures", ".png")
	if c, ok := g.textures[fname]; ok {
		return c, nil
	}
	f, ok := g.files[fname]
	if !ok {
		return color.RGBA{}, fmt.Errorf("%w: %s not found", ErrNoTexture, fname)
	}
	r, err := f.Open()
	if err != nil {
		return color.RGBA{}, err
	}
	c, err := averageColor(r)
	r.Close()
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%s: %w", fname, err)
	}
	g.textures[fname] = c
	return c, nil
}

// averageColor weights pixels by alpha. Animated textures are strips
// of square frames, only the first frame counts.
func averageColor(r io.Reader) (color.RGBA, error) {
	img, err := png.Decode(r)
	if err != nil {
		return color.RGBA{}, err
	}
	b := img.Bounds()
	if b.Dy() > b.Dx() {
		b.Max.Y = b.Min.Y + b.Dx()
	}
	var rr, gg, bb, aa, count float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			pr, pg, pb, pa := img.At(x, y).RGBA()
			// RGBA is premultiplied already
			rr += float64(pr)
			gg += float64(pg)
			bb += float64(pb)
			aa += float64(pa)
			count++
		}
	}
	if aa == 0 {
		return color.RGBA{}, nil
	}
	return color.RGBA{
		R: uint8(math.Round(rr / aa * 0xff)),
		G: uint8(math.Round(gg / aa * 0xff)),
		B: uint8(math.Round(bb / aa * 0xff)),
		A: uint8(math.Round(aa / count / 0x101)),
	}, nil
}
