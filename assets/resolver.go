// Package assets turns discovered resource URLs into downloaded,
// content-addressed files plus a manifest. Every candidate resolves to
// exactly one manifest entry (downloaded, skipped, or failed); individual
// fetch failures never abort the batch.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Manifest entry statuses.
const (
	StatusDownloaded = "downloaded"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// Candidate is one asset reference discovered by the capture scripts.
type Candidate struct {
	URL        string `json:"url"`
	Type       string `json:"type,omitempty"`       // image, style, font, script, ...
	Descriptor string `json:"descriptor,omitempty"` // free-form: srcset entry, rel, ...
}

// Request is the decoded assets payload for one session.
type Request struct {
	DocumentURL string      `json:"documentUrl"`
	BaseHref    string      `json:"baseHref,omitempty"`
	Assets      []Candidate `json:"assets"`
}

// ManifestEntry records the outcome for one resolved URL.
type ManifestEntry struct {
	URL         string `json:"url"`
	Status      string `json:"status"`
	LocalPath   string `json:"localPath,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	SHA256      string `json:"sha256,omitempty"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Manifest is the persisted result of one resolution batch.
type Manifest struct {
	DocumentURL string          `json:"documentUrl"`
	Entries     []ManifestEntry `json:"entries"`
	ResolvedAt  string          `json:"resolvedAt"`
}

// Counts tallies entry statuses.
func (m *Manifest) Counts() (downloaded, skipped, failed int) {
	for _, e := range m.Entries {
		switch e.Status {
		case StatusDownloaded:
			downloaded++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return
}

// Resolver downloads assets into a workspace directory.
type Resolver struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient overrides the default client (5s timeout).
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) { r.client = c }
}

// WithMaxBytes caps the size of a single downloaded asset. Zero means the
// default of 25 MiB.
func WithMaxBytes(n int64) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver with bounded fetch timeouts.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:   &http.Client{Timeout: 5 * time.Second},
		maxBytes: 25 << 20,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve processes every candidate in req and writes downloaded bodies
// under assetDir, named by content hash. It always returns a manifest; it
// returns an error only when assetDir itself cannot be created.
func (r *Resolver) Resolve(ctx context.Context, req *Request, assetDir string) (*Manifest, error) {
	if err := os.MkdirAll(assetDir, 0755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}

	base := req.BaseHref
	if base == "" {
		base = req.DocumentURL
	}
	baseURL, baseErr := url.Parse(base)

	manifest := &Manifest{
		DocumentURL: req.DocumentURL,
		Entries:     make([]ManifestEntry, 0, len(req.Assets)),
		ResolvedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	seen := make(map[string]bool, len(req.Assets))
	for _, cand := range req.Assets {
		manifest.Entries = append(manifest.Entries, r.resolveOne(ctx, cand, baseURL, baseErr, assetDir, seen))
	}
	return manifest, nil
}

func (r *Resolver) resolveOne(ctx context.Context, cand Candidate, baseURL *url.URL, baseErr error, assetDir string, seen map[string]bool) ManifestEntry {
	raw := strings.TrimSpace(cand.URL)
	if raw == "" {
		return ManifestEntry{URL: cand.URL, Status: StatusFailed, Error: "invalid URL: empty"}
	}
	if strings.HasPrefix(raw, "data:") {
		return ManifestEntry{URL: raw, Status: StatusSkipped, Error: "data URL"}
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ManifestEntry{URL: raw, Status: StatusFailed, Error: "invalid URL: " + err.Error()}
	}
	if baseErr == nil && baseURL != nil {
		ref = baseURL.ResolveReference(ref)
	}
	if !ref.IsAbs() || (ref.Scheme != "http" && ref.Scheme != "https") {
		return ManifestEntry{URL: ref.String(), Status: StatusFailed, Error: "invalid URL: not absolute http(s)"}
	}

	resolved := ref.String()
	if seen[resolved] {
		return ManifestEntry{URL: resolved, Status: StatusSkipped, Error: "duplicate"}
	}
	seen[resolved] = true

	entry, err := r.download(ctx, resolved, assetDir)
	if err != nil {
		r.logger.Warn("asset download failed", "url", resolved, "error", err)
		return ManifestEntry{URL: resolved, Status: StatusFailed, Error: err.Error()}
	}
	return entry
}

func (r *Resolver) download(ctx context.Context, resolved, assetDir string) (ManifestEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ManifestEntry{}, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return ManifestEntry{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > r.maxBytes {
		return ManifestEntry{}, fmt.Errorf("asset exceeds %d bytes", r.maxBytes)
	}

	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	contentType := resp.Header.Get("Content-Type")
	name := hash + inferExtension(resolved, contentType)

	if err := os.WriteFile(filepath.Join(assetDir, name), body, 0644); err != nil {
		return ManifestEntry{}, fmt.Errorf("write asset: %w", err)
	}

	return ManifestEntry{
		URL:         resolved,
		Status:      StatusDownloaded,
		LocalPath:   path.Join("assets", name),
		ContentType: contentType,
		SHA256:      hash,
		SizeBytes:   int64(len(body)),
	}, nil
}

// extensionByType maps common capture content types; mime.ExtensionsByType
// is not used because its answers vary by platform mime databases.
var extensionByType = map[string]string{
	"image/png":                ".png",
	"image/jpeg":               ".jpg",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/avif":               ".avif",
	"image/svg+xml":            ".svg",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
	"text/css":                 ".css",
	"text/javascript":          ".js",
	"application/javascript":   ".js",
	"font/woff":                ".woff",
	"font/woff2":               ".woff2",
	"font/ttf":                 ".ttf",
	"font/otf":                 ".otf",
	"application/font-woff":    ".woff",
	"video/mp4":                ".mp4",
	"video/webm":               ".webm",
}

// inferExtension prefers the URL path's extension, then the content type,
// then a generic fallback.
func inferExtension(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); validExtension(ext) {
			return ext
		}
	}
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if ext, ok := extensionByType[mt]; ok {
				return ext
			}
		}
	}
	return ".bin"
}

// validExtension accepts short, alphanumeric extensions only; anything odd
// (query fragments, traversal attempts) falls through to content-type.
func validExtension(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 {
		return false
	}
	for _, c := range ext[1:] {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
