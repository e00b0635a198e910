package classify

import (
	"fmt"
	"strings"
)

// candidate is a detector's proposal for one element.
type candidate struct {
	component  string
	variant    string
	confidence float64
	reasons    []string
}

// detector scores one element in isolation. Implementations are pure
// functions of the node's own tag/class/attributes/text and its direct
// children, so classification stays deterministic.
type detector struct {
	name      string
	threshold float64
	detect    func(n *Node) candidate
}

// detectors is the fixed priority battery. The first detector whose
// confidence clears its own threshold claims the element; later detectors
// are not consulted.
var detectors = []detector{
	{"button", 0.3, detectButton},
	{"card", 0.35, detectCard},
	{"navigation", 0.4, detectNavigation},
	{"form", 0.4, detectForm},
	{"form-field", 0.35, detectFormField},
	{"badge", 0.3, detectBadge},
	{"avatar", 0.3, detectAvatar},
	{"modal", 0.4, detectModal},
	{"table", 0.4, detectTable},
	{"layout", 0.35, detectLayout},
}

type scorer struct {
	confidence float64
	reasons    []string
}

func (s *scorer) add(weight float64, reason string) {
	s.confidence += weight
	s.reasons = append(s.reasons, reason)
}

func (s *scorer) done() (float64, []string) {
	if s.confidence > 1 {
		s.confidence = 1
	}
	return s.confidence, s.reasons
}

func detectButton(n *Node) candidate {
	var s scorer
	switch n.Tag() {
	case "button":
		s.add(0.5, "tag <button>")
	case "input":
		switch strings.ToLower(n.Attr("type")) {
		case "button", "submit", "reset":
			s.add(0.5, fmt.Sprintf("input type=%s", strings.ToLower(n.Attr("type"))))
		}
	case "a":
		s.add(0.2, "tag <a>")
	}
	if n.Role() == "button" {
		s.add(0.4, "role=button")
	}
	if kw, ok := n.hasClassSubstring("btn", "button"); ok {
		s.add(0.3, fmt.Sprintf("class contains %q", kw))
	}
	if _, ok := n.hasClassSubstring("cta"); ok {
		s.add(0.1, `class contains "cta"`)
	}

	variant := "default"
	for _, v := range []string{"primary", "secondary", "danger", "ghost", "outline", "link"} {
		if _, ok := n.hasClassSubstring(v); ok {
			variant = v
			break
		}
	}
	conf, reasons := s.done()
	return candidate{"button", variant, conf, reasons}
}

func detectCard(n *Node) candidate {
	var s scorer
	if kw, ok := n.hasClassSubstring("card", "panel", "tile", "teaser"); ok {
		s.add(0.4, fmt.Sprintf("class contains %q", kw))
	}
	switch n.Tag() {
	case "article", "section":
		s.add(0.2, "tag <"+n.Tag()+">")
	}
	if n.hasChildClassSubstring("header", "title") {
		s.add(0.15, "has header-like child")
	}
	if n.hasChildClassSubstring("body", "content") {
		s.add(0.15, "has body-like child")
	}
	if n.hasChildClassSubstring("footer", "actions") {
		s.add(0.1, "has footer-like child")
	}

	variant := "default"
	if _, ok := n.hasClassSubstring("horizontal"); ok {
		variant = "horizontal"
	}
	conf, reasons := s.done()
	return candidate{"card", variant, conf, reasons}
}

func detectNavigation(n *Node) candidate {
	var s scorer
	if n.Tag() == "nav" {
		s.add(0.5, "tag <nav>")
	}
	if n.Role() == "navigation" {
		s.add(0.4, "role=navigation")
	}
	if kw, ok := n.hasClassSubstring("nav", "menu", "breadcrumb"); ok {
		s.add(0.3, fmt.Sprintf("class contains %q", kw))
	}
	if n.hasChildTag("ul", "ol") {
		s.add(0.1, "has list child")
	}

	variant := "horizontal"
	if _, ok := n.hasClassSubstring("breadcrumb"); ok {
		variant = "breadcrumb"
	} else if _, ok := n.hasClassSubstring("side", "vertical"); ok {
		variant = "vertical"
	}
	conf, reasons := s.done()
	return candidate{"navigation", variant, conf, reasons}
}

func detectForm(n *Node) candidate {
	var s scorer
	if n.Tag() == "form" {
		s.add(0.6, "tag <form>")
	}
	if n.Role() == "form" {
		s.add(0.4, "role=form")
	}
	if n.Role() == "search" {
		s.add(0.3, "role=search")
	}
	if n.hasChildTag("input", "select", "textarea", "fieldset") {
		s.add(0.2, "has form control child")
	}

	variant := "default"
	if _, ok := n.hasClassSubstring("search"); ok {
		variant = "search"
	} else if _, ok := n.hasClassSubstring("login", "signin", "signup"); ok {
		variant = "auth"
	}
	conf, reasons := s.done()
	return candidate{"form", variant, conf, reasons}
}

func detectFormField(n *Node) candidate {
	var s scorer
	variant := "text"
	switch n.Tag() {
	case "input":
		t := strings.ToLower(n.Attr("type"))
		if t == "" {
			t = "text"
		}
		if t != "hidden" {
			s.add(0.5, "tag <input>")
			variant = t
		}
	case "select":
		s.add(0.5, "tag <select>")
		variant = "select"
	case "textarea":
		s.add(0.5, "tag <textarea>")
		variant = "textarea"
	case "label":
		s.add(0.2, "tag <label>")
		if n.hasChildTag("input", "select", "textarea") {
			s.add(0.3, "wraps form control")
		}
	}
	if kw, ok := n.hasClassSubstring("form-group", "form-control", "form-field", "field"); ok {
		s.add(0.2, fmt.Sprintf("class contains %q", kw))
	}
	conf, reasons := s.done()
	return candidate{"form-field", variant, conf, reasons}
}

func detectBadge(n *Node) candidate {
	var s scorer
	switch n.Tag() {
	case "span", "small", "sup":
		s.add(0.2, "tag <"+n.Tag()+">")
	}
	if kw, ok := n.hasClassSubstring("badge", "chip", "pill", "tag", "status"); ok {
		s.add(0.4, fmt.Sprintf("class contains %q", kw))
	}
	if text := n.Text(); text != "" && len(text) <= 20 {
		s.add(0.2, "short text content")
	}
	if len(n.childTags()) == 0 {
		s.add(0.1, "no element children")
	}

	variant := "default"
	for _, v := range []string{"success", "warning", "error", "danger", "info"} {
		if _, ok := n.hasClassSubstring(v); ok {
			variant = v
			break
		}
	}
	conf, reasons := s.done()
	return candidate{"badge", variant, conf, reasons}
}

func detectAvatar(n *Node) candidate {
	var s scorer
	if n.Tag() == "img" {
		s.add(0.3, "tag <img>")
	}
	if kw, ok := n.hasClassSubstring("avatar", "profile"); ok {
		s.add(0.4, fmt.Sprintf("class contains %q", kw))
	}
	if w, h := n.Attr("width"), n.Attr("height"); w != "" && w == h {
		s.add(0.3, "square aspect")
	}
	if _, ok := n.hasClassSubstring("round", "circle"); ok {
		s.add(0.1, "rounded styling")
	}

	variant := "default"
	if _, ok := n.hasClassSubstring("round", "circle"); ok {
		variant = "rounded"
	}
	conf, reasons := s.done()
	return candidate{"avatar", variant, conf, reasons}
}

func detectModal(n *Node) candidate {
	var s scorer
	switch n.Role() {
	case "dialog":
		s.add(0.5, "role=dialog")
	case "alertdialog":
		s.add(0.5, "role=alertdialog")
	}
	if n.Tag() == "dialog" {
		s.add(0.5, "tag <dialog>")
	}
	if strings.EqualFold(n.Attr("aria-modal"), "true") {
		s.add(0.3, "aria-modal=true")
	}
	if kw, ok := n.hasClassSubstring("modal", "dialog", "popup", "lightbox", "overlay"); ok {
		s.add(0.4, fmt.Sprintf("class contains %q", kw))
	}
	if n.hasChildClassSubstring("close") {
		s.add(0.1, "has close control")
	}

	variant := "default"
	if n.Role() == "alertdialog" {
		variant = "alert"
	}
	conf, reasons := s.done()
	return candidate{"modal", variant, conf, reasons}
}

func detectTable(n *Node) candidate {
	var s scorer
	if n.Tag() == "table" {
		s.add(0.6, "tag <table>")
	}
	switch n.Role() {
	case "table", "grid":
		s.add(0.4, "role="+n.Role())
	}
	if kw, ok := n.hasClassSubstring("table", "datagrid", "grid"); ok {
		s.add(0.2, fmt.Sprintf("class contains %q", kw))
	}
	if n.hasChildTag("thead", "tbody", "tr") {
		s.add(0.2, "has table structure children")
	}
	conf, reasons := s.done()
	return candidate{"table", "data", conf, reasons}
}

func detectLayout(n *Node) candidate {
	var s scorer
	variant := ""
	if kw, ok := n.hasClassSubstring("accordion"); ok {
		s.add(0.45, fmt.Sprintf("class contains %q", kw))
		variant = "accordion"
	}
	if n.Role() == "tablist" {
		s.add(0.45, "role=tablist")
		if variant == "" {
			variant = "tabs"
		}
	} else if kw, ok := n.hasClassSubstring("tabs", "tab-list", "tablist"); ok {
		s.add(0.4, fmt.Sprintf("class contains %q", kw))
		if variant == "" {
			variant = "tabs"
		}
	}
	if kw, ok := n.hasClassSubstring("drawer", "sidebar", "offcanvas"); ok {
		s.add(0.4, fmt.Sprintf("class contains %q", kw))
		if variant == "" {
			variant = "drawer"
		}
	}
	if _, ok := n.hasClassSubstring("collapse", "expand"); ok {
		s.add(0.15, "collapsible styling")
	}
	if variant == "" {
		variant = "default"
	}
	conf, reasons := s.done()
	return candidate{"layout", variant, conf, reasons}
}
