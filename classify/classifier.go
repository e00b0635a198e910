package classify

import (
	"sort"
	"strconv"
)

// Confidence floors applied after detection. An element whose winning
// detector only just cleared its local threshold can still fall below the
// global floor and be dropped.
const (
	minConfidence  = 0.3
	highConfidence = 0.6
)

// Match associates a captured DOM node with a component label.
type Match struct {
	NodeID     string            `json:"nodeId"`
	TagName    string            `json:"tagName"`
	Classes    string            `json:"classes,omitempty"`
	Component  string            `json:"component"`
	Variant    string            `json:"variant"`
	Confidence float64           `json:"confidence"`
	Reasons    []string          `json:"reasons"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Result is the full classification output for one tree.
type Result struct {
	Matches        []Match        `json:"matches"`
	HighConfidence []Match        `json:"highConfidence"`
	Summary        map[string]int `json:"summary"`
}

// Classify runs the detector battery over a captured document.
// A nil root yields an empty result, not an error.
func Classify(doc *Document) *Result {
	if doc == nil {
		return emptyResult()
	}
	return ClassifyTree(doc.Root)
}

// ClassifyTree classifies every element node reachable from root.
func ClassifyTree(root *Node) *Result {
	var matches []Match
	walk(root, "0", func(n *Node, id string) {
		if m, ok := classifyNode(n, id); ok {
			matches = append(matches, m)
		}
	})

	result := &Result{
		Matches:        []Match{},
		HighConfidence: []Match{},
		Summary:        map[string]int{},
	}
	for _, m := range matches {
		if m.Confidence >= minConfidence {
			result.Matches = append(result.Matches, m)
		}
	}
	// Stable sort keeps traversal order for equal confidences, so repeated
	// runs over the same tree produce identical output.
	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].Confidence > result.Matches[j].Confidence
	})
	for _, m := range result.Matches {
		if m.Confidence >= highConfidence {
			result.HighConfidence = append(result.HighConfidence, m)
		}
		result.Summary[m.Component]++
	}
	return result
}

func emptyResult() *Result {
	return &Result{Matches: []Match{}, HighConfidence: []Match{}, Summary: map[string]int{}}
}

// walk traverses the tree depth-first, assigning dot-separated path ids.
// Non-element nodes are traversed for descendants but not visited.
func walk(n *Node, id string, visit func(*Node, string)) {
	if n == nil {
		return
	}
	if n.isElement() {
		visit(n, id)
	}
	for i, c := range n.Children {
		walk(c, id+"."+strconv.Itoa(i), visit)
	}
}

// classifyNode runs the battery in priority order; first clear wins.
func classifyNode(n *Node, id string) (Match, bool) {
	for _, d := range detectors {
		cand, ok := runDetector(d, n)
		if !ok {
			continue
		}
		return Match{
			NodeID:     id,
			TagName:    n.Tag(),
			Classes:    n.ClassString(),
			Component:  cand.component,
			Variant:    cand.variant,
			Confidence: cand.confidence,
			Reasons:    cand.reasons,
			Attributes: n.attrMap(),
		}, true
	}
	return Match{}, false
}

// runDetector evaluates a single detector. A panicking detector counts as
// no match for that detector only; classification of the node continues.
func runDetector(d detector, n *Node) (cand candidate, ok bool) {
	defer func() {
		if recover() != nil {
			cand, ok = candidate{}, false
		}
	}()
	cand = d.detect(n)
	ok = cand.confidence >= d.threshold
	return cand, ok
}
