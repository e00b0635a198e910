package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// StylesheetEntry is one captured stylesheet, external or inline.
type StylesheetEntry struct {
	Href    string `json:"href,omitempty"`
	Type    string `json:"type,omitempty"` // link, style, adopted
	Media   string `json:"media,omitempty"`
	Content string `json:"content,omitempty"`
	SHA256  string `json:"sha256,omitempty"`
}

// ComputedStyleEntry carries the resolved property map for one node.
type ComputedStyleEntry struct {
	NodeID   string            `json:"nodeId,omitempty"`
	Selector string            `json:"selector,omitempty"`
	Styles   map[string]string `json:"styles"`
}

// BreakpointCapture is a computed-style sweep taken at one viewport width.
type BreakpointCapture struct {
	Width          int                  `json:"width"`
	ComputedStyles []ComputedStyleEntry `json:"computedStyles"`
}

// StylesPayload is the decoded styles capture as sent by the browser.
type StylesPayload struct {
	Stylesheets    []StylesheetEntry    `json:"stylesheets"`
	ComputedStyles []ComputedStyleEntry `json:"computedStyles"`
	Breakpoints    []BreakpointCapture  `json:"breakpoints,omitempty"`
}

// StylesResult is the normalized form persisted to styles.json.
type StylesResult struct {
	StylesPayload
	CapturedAt string `json:"capturedAt"`
}

// StyleDictionaries flattens every computed-style map in the result,
// base sweep first, then each breakpoint sweep in order.
func (r *StylesResult) StyleDictionaries() []map[string]string {
	var dicts []map[string]string
	for _, e := range r.ComputedStyles {
		if len(e.Styles) > 0 {
			dicts = append(dicts, e.Styles)
		}
	}
	for _, bp := range r.Breakpoints {
		for _, e := range bp.ComputedStyles {
			if len(e.Styles) > 0 {
				dicts = append(dicts, e.Styles)
			}
		}
	}
	return dicts
}

// finalizeStyles parses the assembled styles payload, deduplicates
// stylesheets, stamps content hashes, and wraps the result with a capture
// timestamp. A parse failure propagates so the assembler can fall back to
// persisting the raw bytes.
func finalizeStyles(_ context.Context, _ *Assembler, raw []byte) ([]byte, error) {
	var payload StylesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse styles payload: %w", err)
	}

	result := StylesResult{
		StylesPayload: payload,
		CapturedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	result.Stylesheets = dedupeStylesheets(payload.Stylesheets)

	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode styles result: %w", err)
	}
	return out, nil
}

// dedupeStylesheets drops entries whose content hash repeats under the same
// identity key. External sheets are keyed by href; inline sheets by declared
// type plus content hash, so distinct inline blocks survive.
func dedupeStylesheets(sheets []StylesheetEntry) []StylesheetEntry {
	out := make([]StylesheetEntry, 0, len(sheets))
	seen := make(map[string]map[string]bool)
	for _, s := range sheets {
		sum := sha256.Sum256([]byte(s.Content))
		hash := hex.EncodeToString(sum[:])

		key := s.Href
		if key == "" {
			key = s.Type + ":" + hash
		}
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		if seen[key][hash] {
			continue
		}
		seen[key][hash] = true

		s.SHA256 = hash
		out = append(out, s)
	}
	return out
}
