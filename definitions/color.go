package definitions

import (
	"errors"
	"fmt"
	"image/color"
	"strings"
)

var ErrBadColor = errors.New("bad color")

// ParseHexColor reads #RRGGBB or #RRGGBBAA, alpha defaults to opaque
func ParseHexColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 9:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		return c, fmt.Errorf("%w %q: expected #RRGGBB or #RRGGBBAA", ErrBadColor, s)
	}
	if err != nil {
		return c, fmt.Errorf("%w %q: %w", ErrBadColor, s, err)
	}
	return c, nil
}

// HexColor formats c as #RRGGBB, or #RRGGBBAA when not opaque
func HexColor(c color.Color) string {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	if rgba.A == 0xff {
		return fmt.Sprintf("#%.2x%.2x%.2x", rgba.R, rgba.G, rgba.B)
	}
	return fmt.Sprintf("#%.2x%.2x%.2x%.2x", rgba.R, rgba.G, rgba.B, rgba.A)
}

type hexRGBA color.RGBA

func (c hexRGBA) MarshalText() ([]byte, error) {
	return []byte(HexColor(color.RGBA(c))), nil
}

func (c *hexRGBA) UnmarshalText(b []byte) error {
	v, err := ParseHexColor(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*c = hexRGBA(v)
	return nil
}
