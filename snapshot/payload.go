// Package snapshot reassembles chunked capture payloads into per-session
// workspace files. Each (session, payload type) stream is delivered in
// strict sequence order; payload types are transported and finalized
// independently, so a failure in one never corrupts another.
package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// PayloadType identifies one logical capture artifact.
type PayloadType string

const (
	PayloadDOM          PayloadType = "dom"
	PayloadStyles       PayloadType = "styles"
	PayloadAssets       PayloadType = "assets"
	PayloadInteractions PayloadType = "interactions"
	PayloadAnimations   PayloadType = "animations"
	PayloadResponsive   PayloadType = "responsive"
)

// Encoding is the declared chunk payload encoding.
type Encoding string

const (
	EncodingPlain  Encoding = "plain"
	EncodingBase64 Encoding = "base64"
	// EncodingGzip is a base64-wrapped gzip stream, used by the capture
	// scripts for large DOM chunks.
	EncodingGzip Encoding = "gzip"
)

// Chunk is one ordered fragment of a payload type's serialized data.
type Chunk struct {
	SessionID     string      `json:"sessionId"`
	ChunkID       string      `json:"chunkId,omitempty"`
	Sequence      int         `json:"sequence"`
	TotalChunks   int         `json:"totalChunks"`
	PayloadType   PayloadType `json:"payloadType"`
	PayloadFormat Encoding    `json:"payloadFormat,omitempty"`
	Payload       string      `json:"payload"`
}

// Sentinel errors. The HTTP layer maps these to status codes.
var (
	// ErrBadChunk covers malformed chunk shape: unknown payload type or
	// encoding, negative sequence, non-positive total, undecodable payload.
	ErrBadChunk = errors.New("snapshot: malformed chunk")
	// ErrSequence is returned when a chunk arrives out of order. The
	// payload's assembly state is left untouched.
	ErrSequence = errors.New("snapshot: chunk sequence violation")
	// ErrCountMismatch is returned when a later chunk declares a different
	// total than the first chunk for its payload type. The first
	// declaration is authoritative.
	ErrCountMismatch = errors.New("snapshot: total chunk count mismatch")
)

// payloadSpec is the per-type assembly policy. Streaming types write to
// their target file as chunks arrive; buffered types are held in memory and
// post-processed once complete.
type payloadSpec struct {
	fileName  string
	streaming bool
	// finalize post-processes the assembled raw bytes into the content to
	// persist. nil means persist as-received. A finalize error triggers the
	// raw-persistence fallback rather than losing the capture.
	finalize func(ctx context.Context, a *Assembler, raw []byte) ([]byte, error)
}

var payloadSpecs = map[PayloadType]payloadSpec{
	PayloadDOM:          {fileName: "dom-snapshot.json", streaming: true},
	PayloadStyles:       {fileName: "styles.json", finalize: finalizeStyles},
	PayloadAssets:       {fileName: "assets.json", finalize: finalizeAssets},
	PayloadInteractions: {fileName: "interactions.json"},
	PayloadAnimations:   {fileName: "animations.json"},
	PayloadResponsive:   {fileName: "responsive.json"},
}

// KnownPayloadType reports whether t is a transportable payload type.
func KnownPayloadType(t PayloadType) bool {
	_, ok := payloadSpecs[t]
	return ok
}

// FileName returns the canonical workspace file for a payload type, or ""
// for unknown types.
func FileName(t PayloadType) string {
	return payloadSpecs[t].fileName
}

// Validate checks chunk shape without touching assembly state.
func (c *Chunk) Validate() error {
	if !KnownPayloadType(c.PayloadType) {
		return fmt.Errorf("%w: unknown payload type %q", ErrBadChunk, c.PayloadType)
	}
	if c.Sequence < 0 {
		return fmt.Errorf("%w: negative sequence %d", ErrBadChunk, c.Sequence)
	}
	if c.TotalChunks < 1 {
		return fmt.Errorf("%w: totalChunks must be >= 1, got %d", ErrBadChunk, c.TotalChunks)
	}
	if c.Sequence >= c.TotalChunks {
		return fmt.Errorf("%w: sequence %d out of range for %d chunks", ErrBadChunk, c.Sequence, c.TotalChunks)
	}
	switch c.PayloadFormat {
	case "", EncodingPlain, EncodingBase64, EncodingGzip:
	default:
		return fmt.Errorf("%w: unknown encoding %q", ErrBadChunk, c.PayloadFormat)
	}
	return nil
}

// decodePayload decodes the chunk body per its declared encoding.
func decodePayload(format Encoding, payload string) ([]byte, error) {
	switch format {
	case "", EncodingPlain:
		return []byte(payload), nil
	case EncodingBase64:
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: base64 decode: %v", ErrBadChunk, err)
		}
		return data, nil
	case EncodingGzip:
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: base64 decode: %v", ErrBadChunk, err)
		}
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip open: %v", ErrBadChunk, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip read: %v", ErrBadChunk, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrBadChunk, format)
	}
}
