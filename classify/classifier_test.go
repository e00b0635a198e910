package classify

import (
	"reflect"
	"testing"
)

func el(tag string, attrs map[string]string, children ...*Node) *Node {
	n := &Node{NodeType: "element", TagName: tag, Children: children}
	for k, v := range attrs {
		n.Attributes = append(n.Attributes, Attribute{Name: k, Value: v})
	}
	return n
}

func TestClassify_ButtonWithVariant(t *testing.T) {
	root := el("body", nil,
		el("button", map[string]string{"class": "btn btn-primary"}),
	)
	res := ClassifyTree(root)

	if len(res.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(res.Matches), res.Matches)
	}
	m := res.Matches[0]
	if m.Component != "button" {
		t.Fatalf("expected button, got %s", m.Component)
	}
	if m.Variant != "primary" {
		t.Fatalf("expected primary variant, got %s", m.Variant)
	}
	if m.Confidence < 0.3 {
		t.Fatalf("confidence below floor: %f", m.Confidence)
	}
	if m.NodeID != "0.0" {
		t.Fatalf("unexpected node id %q", m.NodeID)
	}
	if len(m.Reasons) == 0 {
		t.Fatal("expected reasoning strings")
	}
}

func TestClassify_Deterministic(t *testing.T) {
	root := el("div", nil,
		el("nav", map[string]string{"class": "navbar"},
			el("ul", nil, el("li", nil), el("li", nil)),
		),
		el("div", map[string]string{"class": "card"},
			el("div", map[string]string{"class": "card-header"}),
			el("div", map[string]string{"class": "card-body"}),
			el("button", map[string]string{"class": "btn"}),
		),
		el("span", map[string]string{"class": "badge badge-success"}),
		el("table", nil, el("thead", nil), el("tbody", nil)),
	)
	a := ClassifyTree(root)
	b := ClassifyTree(root)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("classification is not deterministic:\n%+v\n%+v", a, b)
	}
	if len(a.Matches) == 0 {
		t.Fatal("expected matches")
	}
	// Matches must be ordered by descending confidence.
	for i := 1; i < len(a.Matches); i++ {
		if a.Matches[i].Confidence > a.Matches[i-1].Confidence {
			t.Fatalf("matches not sorted by confidence: %+v", a.Matches)
		}
	}
}

func TestClassify_PriorityFirstMatchWins(t *testing.T) {
	// An element that is both button-like and badge-like: the button
	// detector runs first and claims it.
	n := el("button", map[string]string{"class": "btn badge"})
	res := ClassifyTree(el("body", nil, n))
	if len(res.Matches) != 1 || res.Matches[0].Component != "button" {
		t.Fatalf("expected single button match, got %+v", res.Matches)
	}
}

func TestClassify_UnmatchedNodesOmitted(t *testing.T) {
	root := el("div", nil,
		el("p", nil),
		el("em", nil),
	)
	res := ClassifyTree(root)
	if len(res.Matches) != 0 {
		t.Fatalf("expected no matches, got %+v", res.Matches)
	}
	if len(res.Summary) != 0 {
		t.Fatalf("expected empty summary, got %+v", res.Summary)
	}
}

func TestClassify_MissingEverythingIsSafe(t *testing.T) {
	res := ClassifyTree(nil)
	if len(res.Matches) != 0 {
		t.Fatal("nil root should classify to empty result")
	}
	res = Classify(nil)
	if len(res.Matches) != 0 {
		t.Fatal("nil document should classify to empty result")
	}
	// Node with no attributes, no text, no children.
	res = ClassifyTree(&Node{TagName: "div"})
	if len(res.Matches) != 0 {
		t.Fatalf("bare div should not match: %+v", res.Matches)
	}
}

func TestClassify_SkipsNonElementNodes(t *testing.T) {
	root := &Node{
		NodeType: "element",
		TagName:  "body",
		Children: []*Node{
			{NodeType: "comment", TextContent: "button"},
			{NodeType: "text", TextContent: "hello"},
			{NodeType: "element", TagName: "div", Children: []*Node{
				el("button", map[string]string{"class": "btn"}),
			}},
		},
	}
	res := ClassifyTree(root)
	if len(res.Matches) != 1 || res.Matches[0].Component != "button" {
		t.Fatalf("expected only the nested button, got %+v", res.Matches)
	}
	if res.Matches[0].NodeID != "0.2.0" {
		t.Fatalf("path id should count all children: %q", res.Matches[0].NodeID)
	}
}

func TestClassify_HighConfidenceSubset(t *testing.T) {
	root := el("body", nil,
		// Tag + class signal: 0.5+0.3 = 0.8.
		el("button", map[string]string{"class": "btn"}),
		// Class signal only clears the floor: 0.2+0.3 = 0.5.
		el("a", map[string]string{"class": "button-ish"}, nil),
	)
	res := ClassifyTree(root)
	if len(res.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", res.Matches)
	}
	if len(res.HighConfidence) != 1 {
		t.Fatalf("expected 1 high-confidence match, got %+v", res.HighConfidence)
	}
	if res.HighConfidence[0].TagName != "button" {
		t.Fatalf("unexpected high-confidence match: %+v", res.HighConfidence[0])
	}
	if res.Summary["button"] != 2 {
		t.Fatalf("summary should tally both: %+v", res.Summary)
	}
}

func TestClassify_StructuralDetectors(t *testing.T) {
	cases := []struct {
		name      string
		node      *Node
		component string
		variant   string
	}{
		{"nav", el("nav", map[string]string{"class": "main-nav"}, el("ul", nil)), "navigation", "horizontal"},
		{"breadcrumb", el("nav", map[string]string{"class": "breadcrumb"}), "navigation", "breadcrumb"},
		{"form", el("form", nil, el("input", map[string]string{"type": "text"})), "form", "default"},
		{"search form", el("form", map[string]string{"class": "search-form"}), "form", "search"},
		{"input field", el("input", map[string]string{"type": "email"}), "form-field", "email"},
		{"modal", el("div", map[string]string{"role": "dialog", "class": "modal"}), "modal", "default"},
		{"table", el("table", nil, el("tbody", nil)), "table", "data"},
		{"tabs", el("div", map[string]string{"role": "tablist", "class": "tabs"}), "layout", "tabs"},
		{"accordion", el("div", map[string]string{"class": "accordion"}), "layout", "accordion"},
		{"avatar", el("img", map[string]string{"class": "avatar rounded", "width": "40", "height": "40"}), "avatar", "rounded"},
		{"badge", el("span", map[string]string{"class": "badge"}), "badge", "default"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ClassifyTree(el("body", nil, tc.node))
			if len(res.Matches) != 1 {
				t.Fatalf("expected 1 match, got %+v", res.Matches)
			}
			m := res.Matches[0]
			if m.Component != tc.component || m.Variant != tc.variant {
				t.Fatalf("got %s/%s, want %s/%s (reasons: %v)",
					m.Component, m.Variant, tc.component, tc.variant, m.Reasons)
			}
		})
	}
}
