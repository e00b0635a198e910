package tokens

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	hexPattern = regexp.MustCompile(`#(?:[0-9a-fA-F]{8}|[0-9a-fA-F]{6}|[0-9a-fA-F]{3})`)
	rgbPattern = regexp.MustCompile(`rgba?\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*(?:,\s*[\d.]+\s*)?\)`)
	hslPattern = regexp.MustCompile(`hsla?\(\s*([\d.]+)(?:deg)?\s*,\s*([\d.]+)%\s*,\s*([\d.]+)%\s*(?:,\s*[\d.]+\s*)?\)`)
)

// namedColors is the small fixed set of CSS keywords recognised in raw
// values. Anything else non-functional is ignored rather than guessed at.
var namedColors = map[string]string{
	"black":  "#000000",
	"white":  "#ffffff",
	"red":    "#ff0000",
	"green":  "#008000",
	"blue":   "#0000ff",
	"gray":   "#808080",
	"grey":   "#808080",
	"yellow": "#ffff00",
	"orange": "#ffa500",
	"purple": "#800080",
}

var namedColorPattern = func() *regexp.Regexp {
	names := make([]string, 0, len(namedColors))
	for n := range namedColors {
		names = append(names, n)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
}()

// Non-color values excluded from tallying.
var excludedValues = map[string]bool{
	"transparent": true,
	"inherit":     true,
	"initial":     true,
	"unset":       true,
	"none":        true,
}

// parseColors extracts every color occurrence from a raw property value and
// returns them normalized to lowercase hex. Shorthand and multi-color values
// (box-shadow, border shorthands) yield multiple entries.
func parseColors(value string) []string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" || excludedValues[trimmed] {
		return nil
	}

	var out []string

	for _, m := range rgbPattern.FindAllStringSubmatch(value, -1) {
		r, _ := strconv.Atoi(m[1])
		g, _ := strconv.Atoi(m[2])
		b, _ := strconv.Atoi(m[3])
		if r > 255 || g > 255 || b > 255 {
			continue
		}
		out = append(out, fmt.Sprintf("#%02x%02x%02x", r, g, b))
	}

	for _, m := range hslPattern.FindAllStringSubmatch(value, -1) {
		h, _ := strconv.ParseFloat(m[1], 64)
		s, _ := strconv.ParseFloat(m[2], 64)
		l, _ := strconv.ParseFloat(m[3], 64)
		r, g, b := hslToRGB(h, s/100, l/100)
		out = append(out, fmt.Sprintf("#%02x%02x%02x", r, g, b))
	}

	for _, m := range hexPattern.FindAllString(value, -1) {
		out = append(out, normalizeHex(m))
	}

	// Strip functional notations before keyword matching so that e.g.
	// "lightgray" inside an unrelated token does not count as "gray".
	stripped := rgbPattern.ReplaceAllString(value, "")
	stripped = hslPattern.ReplaceAllString(stripped, "")
	stripped = hexPattern.ReplaceAllString(stripped, "")
	for _, m := range namedColorPattern.FindAllString(stripped, -1) {
		out = append(out, namedColors[strings.ToLower(m)])
	}

	return out
}

// normalizeHex lowercases and expands 3-digit hex; 8-digit hex drops alpha.
func normalizeHex(h string) string {
	h = strings.ToLower(h)
	switch len(h) {
	case 4: // #abc
		return "#" + strings.Repeat(string(h[1]), 2) +
			strings.Repeat(string(h[2]), 2) +
			strings.Repeat(string(h[3]), 2)
	case 9: // #rrggbbaa
		return h[:7]
	}
	return h
}

// hslToRGB converts hue [0,360), saturation and lightness [0,1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (int, int, int) {
	h = math.Mod(math.Mod(h, 360)+360, 360)
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return int(math.Round((r + m) * 255)),
		int(math.Round((g + m) * 255)),
		int(math.Round((b + m) * 255))
}

// colorName assigns a heuristic keyword name where the value is visually
// unambiguous, else a positional fallback.
func colorName(hex string, index int) string {
	r, g, b, ok := hexChannels(hex)
	if ok {
		switch {
		case r == 0 && g == 0 && b == 0:
			return "black"
		case r == 255 && g == 255 && b == 255:
			return "white"
		case r == g && g == b:
			return "gray"
		case r > g+50 && r > b+50:
			return "red"
		case g > r+50 && g > b+50:
			return "green"
		case b > r+50 && b > g+50:
			return "blue"
		}
	}
	return fmt.Sprintf("color-%d", index+1)
}

// colorVariantsFor computes lighter/darker shades for 6-digit hex colors.
// Lighter moves each channel 30% toward 255; darker scales to 70%.
func colorVariantsFor(hex string) *ColorVariants {
	r, g, b, ok := hexChannels(hex)
	if !ok {
		return nil
	}
	lighten := func(c int) int { return int(math.Round(float64(c) + (255-float64(c))*0.3)) }
	darken := func(c int) int { return int(math.Round(float64(c) * 0.7)) }
	return &ColorVariants{
		Lighter: fmt.Sprintf("#%02x%02x%02x", lighten(r), lighten(g), lighten(b)),
		Darker:  fmt.Sprintf("#%02x%02x%02x", darken(r), darken(g), darken(b)),
	}
}

func hexChannels(hex string) (r, g, b int, ok bool) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0, false
	}
	rv, err1 := strconv.ParseInt(hex[1:3], 16, 0)
	gv, err2 := strconv.ParseInt(hex[3:5], 16, 0)
	bv, err3 := strconv.ParseInt(hex[5:7], 16, 0)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return int(rv), int(gv), int(bv), true
}
