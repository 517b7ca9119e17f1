// Package theme derives a set of CSS custom properties from one accent color.
package theme

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidColor is returned for an accent that is not a hex color.
var ErrInvalidColor = errors.New("invalid color")

// Palette is a generated color scheme, every entry a "#rrggbb" string.
type Palette struct {
	Accent      string `json:"accent"`
	AccentHover string `json:"accent_hover"`
	AccentMuted string `json:"accent_muted"`
	Background  string `json:"background"`
	Surface     string `json:"surface"`
	Text        string `json:"text"`
}

const (
	lightText = "#f2f3f5"
	darkText  = "#1e1f22"
)

// Generate builds a palette around accentHex for a dark or light client.
func Generate(accentHex string, dark bool) (Palette, error) {
	accent, err := colorful.Hex(accentHex)
	if err != nil {
		return Palette{}, fmt.Errorf("%w %q: %w", ErrInvalidColor, accentHex, err)
	}

	h, c, l := accent.Hcl()

	var hover, background colorful.Color
	if dark {
		hover = colorful.Hcl(h, c, l+0.08).Clamped()
		background = colorful.Hcl(h, 0.03, 0.12).Clamped()
	} else {
		hover = colorful.Hcl(h, c, l-0.08).Clamped()
		background = colorful.Hcl(h, 0.02, 0.97).Clamped()
	}

	surface := background.BlendLab(accent, 0.08).Clamped()
	muted := accent.BlendLab(background, 0.6).Clamped()

	text := darkText
	if bgL, _, _ := background.Lab(); bgL < 0.5 {
		text = lightText
	}

	return Palette{
		Accent:      accent.Hex(),
		AccentHover: hover.Hex(),
		AccentMuted: muted.Hex(),
		Background:  background.Hex(),
		Surface:     surface.Hex(),
		Text:        text,
	}, nil
}

// CSS renders the palette as custom properties on selector.
func (p Palette) CSS(selector string) string {
	if selector == "" {
		selector = ":root"
	}

	vars := []struct{ name, value string }{
		{"accent", p.Accent},
		{"accent-hover", p.AccentHover},
		{"accent-muted", p.AccentMuted},
		{"background", p.Background},
		{"surface", p.Surface},
		{"text", p.Text},
	}

	var b strings.Builder
	b.WriteString(selector)
	b.WriteString(" {\n")
	for _, v := range vars {
		fmt.Fprintf(&b, "  --bm-%s: %s;\n", v.name, v.value)
	}
	b.WriteString("}\n")
	return b.String()
}
