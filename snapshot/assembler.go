package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"pageforge/assets"
)

// Progress reports assembly state for one payload type after an ingest.
type Progress struct {
	PayloadType PayloadType `json:"payloadType"`
	Received    int         `json:"received"`
	Expected    int         `json:"expected"`
	Complete    bool        `json:"complete"`
}

// payloadState tracks one in-flight payload type within a session.
type payloadState struct {
	spec     payloadSpec
	sink     sink
	expected int
	received int
}

// Assembler reassembles all payload streams for a single session into its
// workspace directory. It is safe for concurrent use; chunk ingestion is
// serialized internally.
type Assembler struct {
	workspace string
	resolver  *assets.Resolver
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[PayloadType]*payloadState
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithResolver overrides the asset resolver used by the assets finalizer.
func WithResolver(r *assets.Resolver) AssemblerOption {
	return func(a *Assembler) { a.resolver = r }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// NewAssembler creates an assembler writing into the given workspace
// directory, which must already exist.
func NewAssembler(workspace string, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		workspace: workspace,
		resolver:  assets.NewResolver(),
		logger:    slog.Default(),
		inflight:  make(map[PayloadType]*payloadState),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Workspace returns the session workspace directory.
func (a *Assembler) Workspace() string { return a.workspace }

// Ingest validates, decodes, and appends one chunk. Chunks for a payload
// type must arrive in strict sequence order starting at zero; an
// out-of-order or count-mismatched chunk is rejected without disturbing the
// bytes already accepted. When the final chunk lands the payload is
// finalized and its workspace file written.
func (a *Assembler) Ingest(ctx context.Context, c *Chunk) (Progress, error) {
	if err := c.Validate(); err != nil {
		return Progress{}, err
	}
	data, err := decodePayload(c.PayloadFormat, c.Payload)
	if err != nil {
		return Progress{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	spec := payloadSpecs[c.PayloadType]
	ps := a.inflight[c.PayloadType]
	if ps == nil {
		// First chunk for this type fixes the expected total.
		ps = &payloadState{spec: spec, expected: c.TotalChunks}
		if spec.streaming {
			fs, err := newFileSink(filepath.Join(a.workspace, spec.fileName))
			if err != nil {
				return Progress{}, err
			}
			ps.sink = fs
		} else {
			ps.sink = &bufferSink{}
		}
		a.inflight[c.PayloadType] = ps
	}

	if c.TotalChunks != ps.expected {
		return a.progress(ps, c.PayloadType), fmt.Errorf(
			"%w: payload %s declared %d chunks, got %d",
			ErrCountMismatch, c.PayloadType, ps.expected, c.TotalChunks)
	}
	if c.Sequence != ps.received {
		return a.progress(ps, c.PayloadType), fmt.Errorf(
			"%w: payload %s expected sequence %d, got %d",
			ErrSequence, c.PayloadType, ps.received, c.Sequence)
	}

	if err := ps.sink.write(data); err != nil {
		return a.progress(ps, c.PayloadType), fmt.Errorf("write chunk: %w", err)
	}
	ps.received++

	if ps.received == ps.expected {
		if err := a.finalizeLocked(ctx, c.PayloadType, ps); err != nil {
			return a.progress(ps, c.PayloadType), err
		}
	}
	return a.progress(ps, c.PayloadType), nil
}

func (a *Assembler) progress(ps *payloadState, t PayloadType) Progress {
	return Progress{
		PayloadType: t,
		Received:    ps.received,
		Expected:    ps.expected,
		Complete:    ps.received >= ps.expected,
	}
}

// finalizeLocked completes one payload: the sink is drained, the type's
// finalizer runs, and the result lands in the workspace file. If the
// finalizer rejects the payload the raw bytes are persisted instead so a
// capture is never lost to a post-processing bug.
func (a *Assembler) finalizeLocked(ctx context.Context, t PayloadType, ps *payloadState) error {
	delete(a.inflight, t)

	raw, err := ps.sink.finalize()
	if err != nil {
		return err
	}
	if ps.spec.streaming {
		// Already on disk.
		return nil
	}

	out := raw
	if ps.spec.finalize != nil {
		processed, ferr := ps.spec.finalize(ctx, a, raw)
		if ferr != nil {
			a.logger.Warn("payload finalize failed, persisting raw",
				"payloadType", t, "error", ferr)
		} else {
			out = processed
		}
	}

	path := filepath.Join(a.workspace, ps.spec.fileName)
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("persist %s: %w", ps.spec.fileName, err)
	}
	return nil
}

// InFlight lists payload types with incomplete assemblies.
func (a *Assembler) InFlight() []PayloadType {
	a.mu.Lock()
	defer a.mu.Unlock()
	types := make([]PayloadType, 0, len(a.inflight))
	for t := range a.inflight {
		types = append(types, t)
	}
	return types
}

// FlushAll force-finalizes every incomplete payload. Partial data is
// persisted rather than discarded; finalizer parse failures fall back to
// raw persistence as usual. Called when a session finishes or shuts down.
func (a *Assembler) FlushAll(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for t, ps := range a.inflight {
		if ps.received < ps.expected {
			a.logger.Warn("flushing incomplete payload",
				"payloadType", t, "received", ps.received, "expected", ps.expected)
		}
		if err := a.finalizeLocked(ctx, t, ps); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

// ReadStyles loads and decodes the persisted styles.json, if present.
func (a *Assembler) ReadStyles() (*StylesResult, error) {
	raw, err := os.ReadFile(filepath.Join(a.workspace, FileName(PayloadStyles)))
	if err != nil {
		return nil, err
	}
	var res StylesResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode styles.json: %w", err)
	}
	return &res, nil
}

// finalizeAssets decodes the assembled assets payload and hands it to the
// resolver, which downloads into the workspace's assets/ directory. The
// returned bytes are the resolution manifest, persisted as assets.json.
func finalizeAssets(ctx context.Context, a *Assembler, raw []byte) ([]byte, error) {
	var req assets.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("parse assets payload: %w", err)
	}

	manifest, err := a.resolver.Resolve(ctx, &req, filepath.Join(a.workspace, "assets"))
	if err != nil {
		return nil, err
	}
	downloaded, skipped, failed := manifest.Counts()
	a.logger.Info("assets resolved",
		"downloaded", downloaded, "skipped", skipped, "failed", failed)

	out, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encode asset manifest: %w", err)
	}
	return out, nil
}
