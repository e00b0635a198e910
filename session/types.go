// Package session owns capture session lifecycle: creation, chunk routing,
// progress fan-out, finish-time analysis, and durable state.
package session

import (
	"errors"
	"fmt"
	"time"

	"pageforge/snapshot"
)

// Scope controls how much of the page a session captures.
type Scope string

const (
	ScopePage      Scope = "page"
	ScopeSelection Scope = "selection"
)

// Session statuses, in lifecycle order. A session is created initializing,
// moves to capturing on its first accepted chunk, to processing while
// finish-time analysis runs, and ends completed or failed.
const (
	StatusInitializing = "initializing"
	StatusCapturing    = "capturing"
	StatusProcessing   = "processing"
	StatusCompleted    = "completed"
	StatusFailed       = "failed"
)

// Capture phases, ordered roughly by pipeline position. Phases derived from
// chunk traffic move with whatever payload type arrived last.
const (
	PhaseInitializing         = "initializing"
	PhaseCapturingDOM         = "capturingDom"
	PhaseCapturingStyles      = "capturingStyles"
	PhaseCapturingAssets      = "capturingAssets"
	PhaseCapturingInteraction = "capturingInteractions"
	PhaseCapturingAnimations  = "capturingAnimations"
	PhaseCapturingResponsive  = "capturingResponsive"
	PhaseProcessing           = "processing"
	PhaseGenerating           = "generating"
	PhaseCompleted            = "completed"
	PhaseFailed               = "failed"
)

var (
	ErrInvalidRequest = errors.New("session: invalid request")
	// ErrInvalidScope marks an unknown scope or a selection scope without a
	// target selector.
	ErrInvalidScope   = errors.New("session: invalid scope")
	ErrUnknownSession = errors.New("session: unknown session")
)

// phaseByPayload maps chunk traffic to the phase it implies.
var phaseByPayload = map[snapshot.PayloadType]string{
	snapshot.PayloadDOM:          PhaseCapturingDOM,
	snapshot.PayloadStyles:       PhaseCapturingStyles,
	snapshot.PayloadAssets:       PhaseCapturingAssets,
	snapshot.PayloadInteractions: PhaseCapturingInteraction,
	snapshot.PayloadAnimations:   PhaseCapturingAnimations,
	snapshot.PayloadResponsive:   PhaseCapturingResponsive,
}

// Session is the public state of one capture-to-codegen run.
type Session struct {
	ID                      string    `json:"sessionId"`
	URL                     string    `json:"url,omitempty"`
	Scope                   Scope     `json:"scope"`
	TargetSelector          string    `json:"targetSelector,omitempty"`
	IncludeInteractions     bool      `json:"includeInteractions,omitempty"`
	IncludeResponsiveStates bool      `json:"includeResponsiveStates,omitempty"`
	Status                  string    `json:"status"`
	Phase                   string    `json:"phase"`
	Progress                float64   `json:"progress"`
	ChunksReceived          int       `json:"chunksReceived"`
	Notes                   string    `json:"notes,omitempty"`
	Error                   string    `json:"error,omitempty"`
	Workspace               string    `json:"-"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
	FinishedAt              time.Time `json:"finishedAt,omitzero"`
}

// clone returns a copy safe to hand outside the orchestrator's lock.
func (s *Session) clone() *Session {
	c := *s
	return &c
}

// terminal reports whether the session has reached a final status.
func (s *Session) terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// CreateRequest starts a new session. Only scope is required; the extension
// sends url when it has one and the capture toggles to record what it will
// stream.
type CreateRequest struct {
	URL                     string `json:"url,omitempty"`
	Scope                   Scope  `json:"scope"`
	TargetSelector          string `json:"targetSelector,omitempty"`
	IncludeInteractions     bool   `json:"includeInteractions,omitempty"`
	IncludeResponsiveStates bool   `json:"includeResponsiveStates,omitempty"`
}

// Validate checks request shape before any state is allocated.
func (r *CreateRequest) Validate() error {
	switch r.Scope {
	case ScopePage:
	case ScopeSelection:
		if r.TargetSelector == "" {
			return fmt.Errorf("%w: selection scope requires targetSelector", ErrInvalidScope)
		}
	default:
		return fmt.Errorf("%w: scope must be page or selection, got %q", ErrInvalidScope, r.Scope)
	}
	return nil
}

// FinishRequest ends a session. Status defaults to completed.
type FinishRequest struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Notes     string `json:"notes,omitempty"`
}
