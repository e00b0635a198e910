package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"pageforge/assets"
	"pageforge/classify"
	"pageforge/idgen"
	"pageforge/observability"
	"pageforge/snapshot"
	"pageforge/tokens"
)

const (
	// EventSessionProgress is the single event type carried over the
	// progress stream; terminal states ride the same type with a terminal
	// status on the embedded session.
	EventSessionProgress = "session.progress"

	serviceName = "pageforge"

	defaultClosedCacheSize = 256
)

// activeSession pairs mutable session state with its chunk assembler.
type activeSession struct {
	session *Session
	asm     *snapshot.Assembler
}

// Orchestrator coordinates session lifecycle end to end: create, ingest,
// finish with analysis, and progress fan-out. All public methods are safe
// for concurrent use.
type Orchestrator struct {
	dataDir  string
	registry *Registry
	hub      *Hub
	events   *observability.EventLogger
	metrics  *observability.MetricsRecorder
	resolver *assets.Resolver
	newID    idgen.Generator
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*activeSession
	// closed keeps recently finished sessions hot for idempotent finish and
	// cheap lookups. Evicted sessions survive in the registry and on disk.
	closed *lru.Cache[string, *Session]
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithEventLogger records business events to the observability store.
func WithEventLogger(l *observability.EventLogger) OrchestratorOption {
	return func(o *Orchestrator) { o.events = l }
}

// WithMetrics records timing and counter samples.
func WithMetrics(m *observability.MetricsRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAssetResolver overrides the asset resolver passed to assemblers.
func WithAssetResolver(r *assets.Resolver) OrchestratorOption {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen idgen.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.newID = gen }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClosedCacheSize bounds the in-memory cache of finished sessions.
func WithClosedCacheSize(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			cache, _ := lru.New[string, *Session](n)
			o.closed = cache
		}
	}
}

// NewOrchestrator creates an orchestrator writing session workspaces under
// dataDir and persisting state through registry.
func NewOrchestrator(dataDir string, registry *Registry, hub *Hub, opts ...OrchestratorOption) (*Orchestrator, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "sessions"), 0755); err != nil {
		return nil, fmt.Errorf("create session data dir: %w", err)
	}
	closed, _ := lru.New[string, *Session](defaultClosedCacheSize)
	o := &Orchestrator{
		dataDir:  dataDir,
		registry: registry,
		hub:      hub,
		resolver: assets.NewResolver(),
		newID:    idgen.Prefixed("sess_", idgen.Default),
		logger:   slog.Default(),
		active:   make(map[string]*activeSession),
		closed:   closed,
	}
	for _, op := range opts {
		op(o)
	}
	return o, nil
}

func (o *Orchestrator) lock()   { o.mu.Lock() }
func (o *Orchestrator) unlock() { o.mu.Unlock() }

// Create validates the request, allocates a workspace, and registers the
// session in the initializing phase.
func (o *Orchestrator) Create(ctx context.Context, req *CreateRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s := &Session{
		ID:                      o.newID(),
		URL:                     req.URL,
		Scope:                   req.Scope,
		TargetSelector:          req.TargetSelector,
		IncludeInteractions:     req.IncludeInteractions,
		IncludeResponsiveStates: req.IncludeResponsiveStates,
		Status:                  StatusInitializing,
		Phase:                   PhaseInitializing,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	s.Workspace = filepath.Join(o.dataDir, "sessions", s.ID)
	if err := os.MkdirAll(s.Workspace, 0755); err != nil {
		return nil, fmt.Errorf("create session workspace: %w", err)
	}

	asm := snapshot.NewAssembler(s.Workspace,
		snapshot.WithResolver(o.resolver),
		snapshot.WithLogger(o.logger))

	o.lock()
	o.active[s.ID] = &activeSession{session: s, asm: asm}
	o.unlock()

	if err := o.registry.Save(ctx, s); err != nil {
		o.logger.Error("session save failed", "sessionId", s.ID, "error", err)
	}
	o.logger.Info("session started", "sessionId", s.ID, "url", s.URL, "scope", s.Scope)
	o.logBusinessEvent(ctx, s, "create", true)
	o.publish(s)
	return s.clone(), nil
}

// IngestChunk routes one chunk to the session's assembler and advances
// phase and progress from the chunk traffic.
func (o *Orchestrator) IngestChunk(ctx context.Context, c *snapshot.Chunk) (snapshot.Progress, error) {
	started := time.Now()

	o.lock()
	as, ok := o.active[c.SessionID]
	o.unlock()
	if !ok {
		return snapshot.Progress{}, fmt.Errorf("%w: %s", ErrUnknownSession, c.SessionID)
	}

	prog, err := as.asm.Ingest(ctx, c)
	if err != nil {
		return prog, err
	}

	o.lock()
	s := as.session
	s.ChunksReceived++
	s.Status = StatusCapturing
	if phase, ok := phaseByPayload[c.PayloadType]; ok {
		s.Phase = phase
	}
	if prog.Expected > 0 {
		s.Progress = min(float64(prog.Received)/float64(prog.Expected), 1)
	}
	s.UpdatedAt = time.Now().UTC()
	snap := s.clone()
	o.unlock()

	if err := o.registry.Save(ctx, snap); err != nil {
		o.logger.Error("session save failed", "sessionId", snap.ID, "error", err)
	}
	o.publish(snap)
	if o.metrics != nil {
		// The chunk that completes a payload pays for its finalizer too;
		// track that cost under its own metric.
		metric := observability.MetricChunkIngestMs
		if prog.Complete {
			metric = observability.MetricPayloadFinalizeMs
		}
		o.metrics.RecordSimple(ctx, metric,
			float64(time.Since(started).Milliseconds()), "ms")
	}
	return prog, nil
}

// Finish flushes outstanding payloads, runs post-capture analysis, and
// moves the session to its terminal status. Finishing an already finished
// session is idempotent: the stored terminal state is re-announced.
func (o *Orchestrator) Finish(ctx context.Context, req *FinishRequest) (*Session, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	}
	switch req.Status {
	case "", StatusCompleted, StatusFailed:
	default:
		return nil, fmt.Errorf("%w: finish status must be completed or failed, got %q", ErrInvalidRequest, req.Status)
	}

	o.lock()
	as, ok := o.active[req.SessionID]
	if !ok {
		if s, hit := o.closed.Get(req.SessionID); hit {
			o.unlock()
			o.publish(s)
			return s.clone(), nil
		}
		o.unlock()
		// Fall back to the registry: a finished session may have been
		// evicted from the cache or predate a restart.
		s, err := o.registry.Get(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		if s.terminal() {
			o.publish(s)
			return s, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, req.SessionID)
	}
	delete(o.active, req.SessionID)
	s := as.session
	o.unlock()

	if err := as.asm.FlushAll(ctx); err != nil {
		o.logger.Warn("payload flush failed", "sessionId", s.ID, "error", err)
	}

	status := req.Status
	if status == "" {
		status = StatusCompleted
	}

	if status == StatusCompleted {
		o.runAnalysis(ctx, s, as.asm)
	}

	o.lock()
	s.Status = status
	s.Notes = req.Notes
	s.Error = req.Error
	if status == StatusCompleted {
		s.Phase = PhaseCompleted
	} else {
		s.Phase = PhaseFailed
	}
	// Terminal events always land at progress 1, whichever way they ended.
	s.Progress = 1
	now := time.Now().UTC()
	s.UpdatedAt = now
	s.FinishedAt = now
	o.closed.Add(s.ID, s)
	snap := s.clone()
	o.unlock()

	if err := o.registry.Save(ctx, snap); err != nil {
		o.logger.Error("session save failed", "sessionId", snap.ID, "error", err)
	}
	o.logger.Info("session finished", "sessionId", snap.ID,
		"status", snap.Status, "chunks", snap.ChunksReceived)
	o.logBusinessEvent(ctx, snap, "finish", status == StatusCompleted)
	if o.metrics != nil {
		o.metrics.RecordSimple(ctx, observability.MetricSessionDurationMs,
			float64(snap.FinishedAt.Sub(snap.CreatedAt).Milliseconds()), "ms")
	}
	o.publish(snap)
	return snap, nil
}

// runAnalysis derives style tokens and component matches from the captured
// workspace. Analysis is best-effort: a session with no usable captures
// still completes, just without derived artifacts.
func (o *Orchestrator) runAnalysis(ctx context.Context, s *Session, asm *snapshot.Assembler) {
	o.setPhase(ctx, s, PhaseProcessing)

	var derived int
	if styles, err := asm.ReadStyles(); err == nil {
		set := tokens.Compile(styles.StyleDictionaries())
		if o.writeArtifact(s, "tokens.json", set) {
			derived++
		}
	} else if !os.IsNotExist(err) {
		o.logger.Warn("styles unreadable, skipping token inference",
			"sessionId", s.ID, "error", err)
	}

	o.setPhase(ctx, s, PhaseGenerating)

	domPath := filepath.Join(asm.Workspace(), snapshot.FileName(snapshot.PayloadDOM))
	if raw, err := os.ReadFile(domPath); err == nil {
		var doc classify.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			o.logger.Warn("dom snapshot unparseable, skipping classification",
				"sessionId", s.ID, "error", err)
		} else {
			root := doc.Root
			if root == nil {
				// Capture scripts may send the root node bare.
				var node classify.Node
				if json.Unmarshal(raw, &node) == nil {
					root = &node
				}
			}
			if o.writeArtifact(s, "components.json", classify.ClassifyTree(root)) {
				derived++
			}
		}
	}

	o.logger.Info("analysis complete", "sessionId", s.ID, "artifacts", derived)
}

// setPhase publishes an intermediate analysis phase.
func (o *Orchestrator) setPhase(ctx context.Context, s *Session, phase string) {
	o.lock()
	s.Status = StatusProcessing
	s.Phase = phase
	s.UpdatedAt = time.Now().UTC()
	snap := s.clone()
	o.unlock()
	if err := o.registry.Save(ctx, snap); err != nil {
		o.logger.Error("session save failed", "sessionId", snap.ID, "error", err)
	}
	o.publish(snap)
}

// writeArtifact persists a derived analysis artifact into the workspace.
func (o *Orchestrator) writeArtifact(s *Session, name string, v any) bool {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		o.logger.Error("artifact encode failed", "sessionId", s.ID, "artifact", name, "error", err)
		return false
	}
	if err := os.WriteFile(filepath.Join(s.Workspace, name), data, 0644); err != nil {
		o.logger.Error("artifact write failed", "sessionId", s.ID, "artifact", name, "error", err)
		return false
	}
	return true
}

// Get returns the session by id, checking live state before the registry.
func (o *Orchestrator) Get(ctx context.Context, id string) (*Session, error) {
	o.lock()
	if as, ok := o.active[id]; ok {
		s := as.session.clone()
		o.unlock()
		return s, nil
	}
	if s, ok := o.closed.Get(id); ok {
		o.unlock()
		return s.clone(), nil
	}
	o.unlock()
	return o.registry.Get(ctx, id)
}

// List returns sessions newest-first from the registry, which holds both
// live and historical rows.
func (o *Orchestrator) List(ctx context.Context, limit int) ([]*Session, error) {
	sessions, err := o.registry.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	// Prefer in-memory state for live sessions; registry rows trail by one
	// save on the ingest path.
	o.lock()
	for i, s := range sessions {
		if as, ok := o.active[s.ID]; ok {
			sessions[i] = as.session.clone()
		}
	}
	o.unlock()
	return sessions, nil
}

// Subscribe attaches a progress listener and returns the current session
// list so the listener starts from a consistent snapshot. The snapshot is
// uncapped; a listener that misses a session here never hears about it again.
func (o *Orchestrator) Subscribe(ctx context.Context) ([]*Session, <-chan Event, func(), error) {
	sessions, err := o.List(ctx, ListAll)
	if err != nil {
		return nil, nil, nil, err
	}
	ch, cancel := o.hub.Subscribe()
	return sessions, ch, cancel, nil
}

// Shutdown flushes every active assembler, persists final state, and
// closes the hub. Active sessions stay active; they can resume against a
// restarted process because their registry rows and workspaces survive.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.lock()
	actives := make([]*activeSession, 0, len(o.active))
	for _, as := range o.active {
		actives = append(actives, as)
	}
	o.unlock()

	for _, as := range actives {
		if err := as.asm.FlushAll(ctx); err != nil {
			o.logger.Warn("shutdown flush failed", "sessionId", as.session.ID, "error", err)
		}
		if err := o.registry.Save(ctx, as.session); err != nil {
			o.logger.Error("shutdown save failed", "sessionId", as.session.ID, "error", err)
		}
	}
	o.hub.Close()
	return nil
}

func (o *Orchestrator) publish(s *Session) {
	o.hub.Publish(Event{Type: EventSessionProgress, Session: s.clone()})
}

func (o *Orchestrator) logBusinessEvent(ctx context.Context, s *Session, action string, success bool) {
	if o.events == nil {
		return
	}
	o.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   "session." + action,
		ServiceName: serviceName,
		EntityType:  "session",
		EntityID:    s.ID,
		Action:      action,
		Success:     success,
	})
}
