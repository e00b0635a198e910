package tokens

import (
	"reflect"
	"testing"
)

func TestCompile_ColorAndSpacing(t *testing.T) {
	dict := map[string]string{
		"backgroundColor": "rgb(255,0,0)",
		"padding":         "16px",
	}
	set := Compile([]map[string]string{dict, dict})

	if len(set.Colors) != 1 {
		t.Fatalf("expected 1 color token, got %d", len(set.Colors))
	}
	c := set.Colors[0]
	if c.Value != "#ff0000" || c.Usage != 2 {
		t.Fatalf("unexpected color token: %+v", c)
	}
	if c.Name != "red" {
		t.Fatalf("expected heuristic name red, got %q", c.Name)
	}

	if len(set.Spacing) != 1 {
		t.Fatalf("expected 1 spacing token, got %d", len(set.Spacing))
	}
	sp := set.Spacing[0]
	if sp.Value != "16px" || sp.Name != "4" || sp.Usage != 2 {
		t.Fatalf("unexpected spacing token: %+v", sp)
	}
}

func TestCompile_RankingIsCountMonotonic(t *testing.T) {
	var dicts []map[string]string
	for i := 0; i < 10; i++ {
		dicts = append(dicts, map[string]string{"color": "#112233"})
	}
	for i := 0; i < 3; i++ {
		dicts = append(dicts, map[string]string{"color": "#445566"})
	}
	set := Compile(dicts)

	if len(set.Colors) != 2 {
		t.Fatalf("expected 2 colors, got %d", len(set.Colors))
	}
	if set.Colors[0].Value != "#112233" || set.Colors[0].Usage != 10 {
		t.Fatalf("most frequent color should rank first: %+v", set.Colors)
	}
	if set.Colors[1].Usage != 3 {
		t.Fatalf("unexpected second color: %+v", set.Colors[1])
	}
}

func TestCompile_Deterministic(t *testing.T) {
	dicts := []map[string]string{
		{"color": "#aabbcc", "backgroundColor": "#ddeeff", "padding": "8px 16px", "fontSize": "14px", "fontFamily": `"Inter", sans-serif`},
		{"color": "#ddeeff", "margin": "24px", "fontSize": "14px", "fontFamily": `"Inter", sans-serif`},
	}
	a := Compile(dicts)
	b := Compile(dicts)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("compilation is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestParseColors_Forms(t *testing.T) {
	cases := []struct {
		value string
		want  []string
	}{
		{"rgb(255, 0, 0)", []string{"#ff0000"}},
		{"rgba(0, 128, 0, 0.5)", []string{"#008000"}},
		{"#FFF", []string{"#ffffff"}},
		{"#11223344", []string{"#112233"}},
		{"hsl(0, 100%, 50%)", []string{"#ff0000"}},
		{"hsl(120, 100%, 25%)", []string{"#008000"}},
		{"white", []string{"#ffffff"}},
		{"transparent", nil},
		{"inherit", nil},
		{"none", nil},
		{"", nil},
		// box-shadow carries multiple colors; all are counted.
		{"0 1px 2px rgb(0,0,0), 0 0 0 1px #ff0000", []string{"#000000", "#ff0000"}},
	}
	for _, tc := range cases {
		got := parseColors(tc.value)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseColors(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestSplitSpacing_ShorthandAndFilters(t *testing.T) {
	got := splitSpacing("10px 20px")
	if !reflect.DeepEqual(got, []string{"10px", "20px"}) {
		t.Fatalf("shorthand split: %v", got)
	}
	if splitSpacing("0px") != nil {
		t.Fatal("zero values must be excluded")
	}
	if splitSpacing("2em auto") != nil {
		t.Fatal("non-pixel values must be excluded")
	}
}

func TestTypographyTokens(t *testing.T) {
	dicts := []map[string]string{
		{"fontSize": "14px", "lineHeight": "20px", "fontWeight": "600", "fontFamily": `"Inter", Helvetica, sans-serif`},
		{"fontSize": "14px", "lineHeight": "20px", "fontWeight": "600", "fontFamily": `"Inter", Helvetica, sans-serif`},
		{"fontSize": "32px"},
	}
	set := Compile(dicts)

	if len(set.Typography) != 2 {
		t.Fatalf("expected 2 typography tokens, got %d", len(set.Typography))
	}
	top := set.Typography[0]
	if top.FontSize != "14px" || top.Usage != 2 {
		t.Fatalf("unexpected top typography token: %+v", top)
	}
	if top.Name != "sm" {
		t.Fatalf("expected bucket name sm, got %q", top.Name)
	}
	if top.FontFamily != "Inter" {
		t.Fatalf("font family should be first quote-stripped entry, got %q", top.FontFamily)
	}
	second := set.Typography[1]
	if second.Name != "4xl" || second.LineHeight != "normal" || second.FontWeight != "normal" || second.FontFamily != "inherit" {
		t.Fatalf("defaults not applied: %+v", second)
	}

	if !reflect.DeepEqual(set.Summary.FontFamilies, []string{"Inter", "inherit"}) {
		t.Fatalf("unexpected font families: %v", set.Summary.FontFamilies)
	}
}

func TestColorVariants(t *testing.T) {
	v := colorVariantsFor("#646464") // 100,100,100
	if v == nil {
		t.Fatal("expected variants for 6-digit hex")
	}
	// lighter: 100 + 155*0.3 = 146.5 -> 147 (0x93); darker: 70 (0x46)
	if v.Lighter != "#939393" {
		t.Fatalf("lighter = %s", v.Lighter)
	}
	if v.Darker != "#464646" {
		t.Fatalf("darker = %s", v.Darker)
	}
}

func TestSummary_Split(t *testing.T) {
	dicts := make([]map[string]string, 0, 12)
	colors := []string{
		"#010101", "#020202", "#030303", "#040404", "#050505",
		"#060606", "#070707", "#080808", "#090909", "#0a0a0a",
		"#0b0b0b", "#0c0c0c",
	}
	// Descending usage so ranking order matches slice order.
	for i, c := range colors {
		for j := 0; j < len(colors)-i; j++ {
			dicts = append(dicts, map[string]string{"color": c})
		}
	}
	set := Compile(dicts)
	if len(set.Summary.PrimaryColors) != 5 {
		t.Fatalf("primary = %v", set.Summary.PrimaryColors)
	}
	if len(set.Summary.SecondaryColors) != 5 {
		t.Fatalf("secondary = %v", set.Summary.SecondaryColors)
	}
	if set.Summary.PrimaryColors[0] != "#010101" || set.Summary.SecondaryColors[0] != "#060606" {
		t.Fatalf("unexpected summary split: %+v", set.Summary)
	}
}
