// Package tokens derives a ranked design-token vocabulary (colors, spacing,
// typography) from captured computed-style dictionaries.
//
// Compilation is stateless: the full token set is re-derivable from the
// persisted style capture alone, with no dependency on classifier or asset
// output. Tokens are recomputed wholesale on each run.
package tokens

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ColorVariants holds derived lighter/darker shades of a color token.
type ColorVariants struct {
	Lighter string `json:"lighter"`
	Darker  string `json:"darker"`
}

// ColorToken is a ranked color value.
type ColorToken struct {
	Name     string         `json:"name"`
	Value    string         `json:"value"`
	Usage    int            `json:"usage"`
	Variants *ColorVariants `json:"variants,omitempty"`
}

// SpacingToken is a ranked pixel spacing value.
type SpacingToken struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Usage int    `json:"usage"`
}

// TypographyToken is a ranked (size, line-height, weight, family) combination.
type TypographyToken struct {
	Name       string `json:"name"`
	FontSize   string `json:"fontSize"`
	LineHeight string `json:"lineHeight"`
	FontWeight string `json:"fontWeight"`
	FontFamily string `json:"fontFamily"`
	Usage      int    `json:"usage"`
}

// Summary surfaces the headline values of a token set.
type Summary struct {
	PrimaryColors   []string `json:"primaryColors"`
	SecondaryColors []string `json:"secondaryColors"`
	SpacingScale    []string `json:"spacingScale"`
	FontFamilies    []string `json:"fontFamilies"`
}

// TokenSet is the full compiled vocabulary.
type TokenSet struct {
	Colors     []ColorToken      `json:"colors"`
	Spacing    []SpacingToken    `json:"spacing"`
	Typography []TypographyToken `json:"typography"`
	Summary    Summary           `json:"summary"`
}

// Retention limits per category, most-used first.
const (
	maxColors     = 20
	maxSpacing    = 15
	maxTypography = 10
)

// Properties scanned per category. Computed styles arrive with the
// camelCase names the capture scripts read off CSSStyleDeclaration.
var colorProperties = []string{
	"color", "backgroundColor",
	"borderColor", "borderTopColor", "borderRightColor", "borderBottomColor", "borderLeftColor",
	"outlineColor", "textDecorationColor", "caretColor",
	"boxShadow", "fill", "stroke",
}

var spacingProperties = []string{
	"margin", "marginTop", "marginRight", "marginBottom", "marginLeft",
	"padding", "paddingTop", "paddingRight", "paddingBottom", "paddingLeft",
	"gap", "rowGap", "columnGap",
}

// Compile tallies token usage across all style dictionaries and returns the
// ranked token set. Dictionaries from multi-breakpoint captures are passed
// in the same slice as base-viewport ones.
func Compile(dicts []map[string]string) *TokenSet {
	colorCounts := map[string]int{}
	spacingCounts := map[string]int{}
	typoCounts := map[typographyKey]int{}

	for _, styles := range dicts {
		for _, prop := range colorProperties {
			for _, hex := range parseColors(styles[prop]) {
				colorCounts[hex]++
			}
		}
		for _, prop := range spacingProperties {
			for _, px := range splitSpacing(styles[prop]) {
				spacingCounts[px]++
			}
		}
		if key, ok := typographyKeyFrom(styles); ok {
			typoCounts[key]++
		}
	}

	set := &TokenSet{
		Colors:     rankColors(colorCounts),
		Spacing:    rankSpacing(spacingCounts),
		Typography: rankTypography(typoCounts),
	}
	set.Summary = summarize(set)
	return set
}

// splitSpacing splits a (possibly shorthand) spacing value and keeps only
// pixel-suffixed, non-zero entries.
func splitSpacing(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, field := range strings.Fields(value) {
		if !strings.HasSuffix(field, "px") {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(field, "px"), 64)
		if err != nil || n == 0 {
			continue
		}
		out = append(out, field)
	}
	return out
}

type typographyKey struct {
	size       string
	lineHeight string
	weight     string
	family     string
}

func typographyKeyFrom(styles map[string]string) (typographyKey, bool) {
	size := styles["fontSize"]
	if size == "" {
		return typographyKey{}, false
	}
	key := typographyKey{
		size:       size,
		lineHeight: orDefault(styles["lineHeight"], "normal"),
		weight:     orDefault(styles["fontWeight"], "normal"),
		family:     primaryFontFamily(styles["fontFamily"]),
	}
	return key, true
}

// primaryFontFamily reduces a font-family list to its first, quote-stripped
// entry, or "inherit" when absent.
func primaryFontFamily(list string) string {
	if list == "" {
		return "inherit"
	}
	first := list
	if i := strings.IndexByte(list, ','); i >= 0 {
		first = list[:i]
	}
	first = strings.TrimSpace(first)
	first = strings.Trim(first, `"'`)
	if first == "" {
		return "inherit"
	}
	return first
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type counted struct {
	value string
	count int
}

// rankedValues sorts by descending count, then ascending value so that
// identical inputs always produce identical output order.
func rankedValues(counts map[string]int, limit int) []counted {
	out := make([]counted, 0, len(counts))
	for v, c := range counts {
		out = append(out, counted{v, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].value < out[j].value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func rankColors(counts map[string]int) []ColorToken {
	ranked := rankedValues(counts, maxColors)
	used := map[string]int{}
	tokens := make([]ColorToken, 0, len(ranked))
	for i, c := range ranked {
		name := uniqueName(used, colorName(c.value, i))
		tokens = append(tokens, ColorToken{
			Name:     name,
			Value:    c.value,
			Usage:    c.count,
			Variants: colorVariantsFor(c.value),
		})
	}
	return tokens
}

func rankSpacing(counts map[string]int) []SpacingToken {
	ranked := rankedValues(counts, maxSpacing)
	used := map[string]int{}
	tokens := make([]SpacingToken, 0, len(ranked))
	for i, c := range ranked {
		tokens = append(tokens, SpacingToken{
			Name:  uniqueName(used, spacingName(c.value, i)),
			Value: c.value,
			Usage: c.count,
		})
	}
	return tokens
}

func rankTypography(counts map[typographyKey]int) []TypographyToken {
	type rankedTypo struct {
		key   typographyKey
		count int
	}
	out := make([]rankedTypo, 0, len(counts))
	for k, c := range counts {
		out = append(out, rankedTypo{k, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		a, b := out[i].key, out[j].key
		if a.size != b.size {
			return a.size < b.size
		}
		if a.weight != b.weight {
			return a.weight < b.weight
		}
		if a.lineHeight != b.lineHeight {
			return a.lineHeight < b.lineHeight
		}
		return a.family < b.family
	})
	if len(out) > maxTypography {
		out = out[:maxTypography]
	}

	used := map[string]int{}
	tokens := make([]TypographyToken, 0, len(out))
	for i, r := range out {
		tokens = append(tokens, TypographyToken{
			Name:       uniqueName(used, typographyName(r.key.size, i)),
			FontSize:   r.key.size,
			LineHeight: r.key.lineHeight,
			FontWeight: r.key.weight,
			FontFamily: r.key.family,
			Usage:      r.count,
		})
	}
	return tokens
}

// uniqueName suffixes repeated heuristic names ("gray", "gray-2", ...).
func uniqueName(used map[string]int, name string) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	return fmt.Sprintf("%s-%d", name, used[name])
}

// spacingScale maps pixel values to the Tailwind spacing scale.
var spacingScale = map[int]string{
	0: "0", 4: "1", 8: "2", 12: "3", 16: "4", 20: "5", 24: "6",
	32: "8", 40: "10", 48: "12", 64: "16", 80: "20", 96: "24",
	128: "32", 160: "40", 192: "48", 256: "64",
}

func spacingName(value string, index int) string {
	n, err := strconv.ParseFloat(strings.TrimSuffix(value, "px"), 64)
	if err == nil && n == float64(int(n)) {
		if name, ok := spacingScale[int(n)]; ok {
			return name
		}
	}
	return fmt.Sprintf("spacing-%d", index+1)
}

// typographyName buckets by font-size pixels.
func typographyName(fontSize string, index int) string {
	n, err := strconv.ParseFloat(strings.TrimSuffix(fontSize, "px"), 64)
	if err != nil {
		return fmt.Sprintf("typography-%d", index+1)
	}
	switch {
	case n <= 12:
		return "xs"
	case n <= 14:
		return "sm"
	case n <= 16:
		return "base"
	case n <= 18:
		return "lg"
	case n <= 20:
		return "xl"
	case n <= 24:
		return "2xl"
	case n <= 30:
		return "3xl"
	case n <= 36:
		return "4xl"
	case n <= 48:
		return "5xl"
	}
	return fmt.Sprintf("typography-%d", index+1)
}

func summarize(set *TokenSet) Summary {
	s := Summary{
		PrimaryColors:   []string{},
		SecondaryColors: []string{},
		SpacingScale:    []string{},
		FontFamilies:    []string{},
	}
	for i, c := range set.Colors {
		switch {
		case i < 5:
			s.PrimaryColors = append(s.PrimaryColors, c.Value)
		case i < 10:
			s.SecondaryColors = append(s.SecondaryColors, c.Value)
		}
	}
	for i, sp := range set.Spacing {
		if i >= 10 {
			break
		}
		s.SpacingScale = append(s.SpacingScale, sp.Value)
	}
	seen := map[string]bool{}
	for _, ty := range set.Typography {
		if ty.FontFamily == "" || seen[ty.FontFamily] {
			continue
		}
		seen[ty.FontFamily] = true
		s.FontFamilies = append(s.FontFamilies, ty.FontFamily)
	}
	return s
}
