// Package classify assigns best-effort UI component labels to elements of a
// captured DOM tree. Detection is purely heuristic: a fixed, ordered battery
// of detectors scores each element and the first detector to clear its own
// threshold wins. Output is deterministic for identical input trees.
package classify

import "strings"

// Node is one node of the captured DOM tree, as serialized by the capture
// scripts. Only element nodes are classified; other node kinds are traversed
// for their descendants.
type Node struct {
	NodeType    string      `json:"nodeType,omitempty"` // element, text, comment, doctype
	TagName     string      `json:"tagName,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
	TextContent string      `json:"textContent,omitempty"`
	Children    []*Node     `json:"children,omitempty"`
}

// Attribute is a single element attribute.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Document wraps the captured tree root as persisted in dom-snapshot.json.
type Document struct {
	URL        string `json:"url,omitempty"`
	Root       *Node  `json:"root"`
	CapturedAt string `json:"capturedAt,omitempty"`
}

// isElement reports whether the node participates in classification.
// Nodes without an explicit nodeType but with a tag name count as elements,
// since older capture scripts omit the discriminator.
func (n *Node) isElement() bool {
	if n == nil {
		return false
	}
	if n.NodeType != "" {
		return n.NodeType == "element"
	}
	return n.TagName != ""
}

// Tag returns the lowercased tag name, or "" when absent.
func (n *Node) Tag() string {
	return strings.ToLower(n.TagName)
}

// Attr returns the named attribute value, or "" when absent.
func (n *Node) Attr(name string) string {
	for _, a := range n.Attributes {
		if strings.EqualFold(a.Name, name) {
			return a.Value
		}
	}
	return ""
}

// ClassString returns the raw class attribute.
func (n *Node) ClassString() string {
	return n.Attr("class")
}

// classes returns the lowercased class list.
func (n *Node) classes() []string {
	return strings.Fields(strings.ToLower(n.ClassString()))
}

// hasClassSubstring reports whether any class contains any of the keywords.
func (n *Node) hasClassSubstring(keywords ...string) (string, bool) {
	for _, c := range n.classes() {
		for _, kw := range keywords {
			if strings.Contains(c, kw) {
				return kw, true
			}
		}
	}
	return "", false
}

// Role returns the lowercased ARIA role.
func (n *Node) Role() string {
	return strings.ToLower(n.Attr("role"))
}

// Text returns trimmed direct text content.
func (n *Node) Text() string {
	return strings.TrimSpace(n.TextContent)
}

// attrMap flattens attributes for reporting on matches.
func (n *Node) attrMap() map[string]string {
	if len(n.Attributes) == 0 {
		return nil
	}
	m := make(map[string]string, len(n.Attributes))
	for _, a := range n.Attributes {
		m[a.Name] = a.Value
	}
	return m
}

// childTags returns the lowercased tags of direct element children.
func (n *Node) childTags() []string {
	var tags []string
	for _, c := range n.Children {
		if c.isElement() {
			tags = append(tags, c.Tag())
		}
	}
	return tags
}

// hasChildTag reports whether any direct element child has one of the tags.
func (n *Node) hasChildTag(tags ...string) bool {
	for _, ct := range n.childTags() {
		for _, t := range tags {
			if ct == t {
				return true
			}
		}
	}
	return false
}

// hasChildClassSubstring reports whether any direct element child has a
// class containing any of the keywords.
func (n *Node) hasChildClassSubstring(keywords ...string) bool {
	for _, c := range n.Children {
		if !c.isElement() {
			continue
		}
		if _, ok := c.hasClassSubstring(keywords...); ok {
			return true
		}
	}
	return false
}
