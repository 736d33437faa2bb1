package occupancy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// Fixed palette.
var (
	BrightYellow = Color{R: 0xff, G: 0xf8, B: 0x00} // #fff800
	DullYellow   = Color{R: 200, G: 180, B: 40}
	HaloBlue     = Color{R: 0x08, G: 0xd5, B: 0xeb} // #08d5eb

	// FadedPalette feeds the first halo ring.
	FadedPalette = []Color{
		MustParseHex("#8dff4d"),
		MustParseHex("#35ebae"),
		MustParseHex("#ccff66"),
		MustParseHex("#99ff99"),
		MustParseHex("#66ffcc"),
	}
)

// Blend mixes a over b: round(alpha*a + (1-alpha)*b) per channel, ties to even.
// alpha is not clamped; callers keep it in [0,1].
func Blend(a, b Color, alpha float64) Color {
	mix := func(x, y uint8) uint8 {
		return uint8(math.RoundToEven(alpha*float64(x) + (1-alpha)*float64(y)))
	}
	return Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B)}
}

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(s string) (Color, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MustParseHex is ParseHex for package-level palettes.
func MustParseHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats c as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Luma is the Rec. 601 brightness of c in [0,255].
func (c Color) Luma() float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}
