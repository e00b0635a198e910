package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"pageforge/dbopen"
	"pageforge/snapshot"
)

func setupOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	reg, err := NewRegistry(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	o, err := NewOrchestrator(t.TempDir(), reg, NewHub(nil))
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func startSession(t *testing.T, o *Orchestrator) *Session {
	t.Helper()
	s, err := o.Create(context.Background(), &CreateRequest{
		URL:   "https://example.com",
		Scope: ScopePage,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCreate_Validation(t *testing.T) {
	o := setupOrchestrator(t)
	ctx := context.Background()

	// The extension only ever guarantees a scope; everything else is optional.
	s, err := o.Create(ctx, &CreateRequest{Scope: ScopePage})
	if err != nil {
		t.Fatalf("scope-only request rejected: %v", err)
	}
	if s.URL != "" {
		t.Fatalf("url should stay empty when not sent: %+v", s)
	}
	_, err = o.Create(ctx, &CreateRequest{Scope: ""})
	if !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("missing scope should be rejected, got %v", err)
	}
	_, err = o.Create(ctx, &CreateRequest{URL: "https://example.com", Scope: "viewport"})
	if !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("unknown scope should be rejected, got %v", err)
	}
	_, err = o.Create(ctx, &CreateRequest{URL: "https://example.com", Scope: ScopeSelection})
	if !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("selection without selector should be rejected, got %v", err)
	}
	_, err = o.Create(ctx, &CreateRequest{
		URL: "https://example.com", Scope: ScopeSelection, TargetSelector: "#hero",
	})
	if err != nil {
		t.Fatalf("valid selection scope rejected: %v", err)
	}
}

func TestCreate_InitialState(t *testing.T) {
	o := setupOrchestrator(t)
	s := startSession(t, o)

	if s.Status != StatusInitializing || s.Phase != PhaseInitializing {
		t.Fatalf("unexpected initial state: %+v", s)
	}
	if s.Progress != 0 {
		t.Fatalf("progress should start at 0: %+v", s)
	}
	loaded, err := o.Get(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ID != s.ID || loaded.URL != s.URL {
		t.Fatalf("get mismatch: %+v", loaded)
	}
	// Workspace must exist before chunks arrive.
	info, err := os.Stat(filepath.Join(o.dataDir, "sessions", s.ID))
	if err != nil || !info.IsDir() {
		t.Fatalf("workspace not created: %v", err)
	}
}

func TestIngestChunk_UnknownSession(t *testing.T) {
	o := setupOrchestrator(t)
	_, err := o.IngestChunk(context.Background(), &snapshot.Chunk{
		SessionID: "sess_missing", TotalChunks: 1, PayloadType: snapshot.PayloadDOM, Payload: "{}",
	})
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestIngestChunk_AdvancesPhaseAndProgress(t *testing.T) {
	o := setupOrchestrator(t)
	s := startSession(t, o)
	ctx := context.Background()

	prog, err := o.IngestChunk(ctx, &snapshot.Chunk{
		SessionID: s.ID, Sequence: 0, TotalChunks: 2,
		PayloadType: snapshot.PayloadDOM, Payload: `{"half":`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if prog.Complete {
		t.Fatalf("first of two chunks cannot complete: %+v", prog)
	}
	cur, _ := o.Get(ctx, s.ID)
	if cur.Status != StatusCapturing {
		t.Fatalf("first chunk should move status to capturing: %s", cur.Status)
	}
	if cur.Phase != PhaseCapturingDOM {
		t.Fatalf("phase should follow payload type: %s", cur.Phase)
	}
	if cur.Progress != 0.5 {
		t.Fatalf("progress should be 0.5, got %f", cur.Progress)
	}
	if cur.ChunksReceived != 1 {
		t.Fatalf("chunk counter off: %d", cur.ChunksReceived)
	}

	if _, err := o.IngestChunk(ctx, &snapshot.Chunk{
		SessionID: s.ID, Sequence: 1, TotalChunks: 2,
		PayloadType: snapshot.PayloadDOM, Payload: `1}`,
	}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(o.dataDir, "sessions", s.ID, "dom-snapshot.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"half":1}` {
		t.Fatalf("dom snapshot mismatch: %q", data)
	}
}

func TestFinish_RunsAnalysisAndCompletes(t *testing.T) {
	o := setupOrchestrator(t)
	s := startSession(t, o)
	ctx := context.Background()

	dom := map[string]any{
		"nodeType": "element", "tagName": "body",
		"children": []map[string]any{{
			"nodeType": "element", "tagName": "button",
			"attributes": []map[string]string{{"name": "class", "value": "btn btn-primary"}},
		}},
	}
	domRaw, _ := json.Marshal(map[string]any{"url": s.URL, "root": dom})
	styles := map[string]any{
		"stylesheets": []map[string]string{{"href": "https://example.com/a.css", "content": "body{}"}},
		"computedStyles": []map[string]any{{
			"selector": "button",
			"styles":   map[string]string{"color": "rgb(255, 0, 0)", "padding": "16px"},
		}},
	}
	stylesRaw, _ := json.Marshal(styles)

	for _, c := range []*snapshot.Chunk{
		{SessionID: s.ID, TotalChunks: 1, PayloadType: snapshot.PayloadDOM, Payload: string(domRaw)},
		{SessionID: s.ID, TotalChunks: 1, PayloadType: snapshot.PayloadStyles, Payload: string(stylesRaw)},
	} {
		if _, err := o.IngestChunk(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	_, events, cancel, err := o.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	done, err := o.Finish(ctx, &FinishRequest{SessionID: s.ID, Notes: "hero section only"})
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusCompleted || done.Phase != PhaseCompleted {
		t.Fatalf("unexpected terminal state: %+v", done)
	}
	if done.Progress != 1 || done.FinishedAt.IsZero() {
		t.Fatalf("terminal progress/timestamps off: %+v", done)
	}
	if done.Notes != "hero section only" {
		t.Fatalf("notes lost: %+v", done)
	}

	// Derived artifacts.
	ws := filepath.Join(o.dataDir, "sessions", s.ID)
	var set struct {
		Colors []struct {
			Value string `json:"value"`
		} `json:"colors"`
	}
	raw, err := os.ReadFile(filepath.Join(ws, "tokens.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &set); err != nil {
		t.Fatal(err)
	}
	if len(set.Colors) == 0 || set.Colors[0].Value != "#ff0000" {
		t.Fatalf("token inference missing red: %+v", set)
	}
	var comps struct {
		Matches []struct {
			Component string `json:"component"`
		} `json:"matches"`
	}
	raw, err = os.ReadFile(filepath.Join(ws, "components.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, &comps); err != nil {
		t.Fatal(err)
	}
	if len(comps.Matches) != 1 || comps.Matches[0].Component != "button" {
		t.Fatalf("classification missing button: %+v", comps)
	}

	// The analysis phases must have been announced before the terminal one.
	phases := drainPhases(events)
	if !containsInOrder(phases, PhaseProcessing, PhaseGenerating, PhaseCompleted) {
		t.Fatalf("missing analysis phases: %v", phases)
	}
}

func drainPhases(events <-chan Event) []string {
	var phases []string
	for {
		select {
		case ev := <-events:
			phases = append(phases, ev.Session.Phase)
		case <-time.After(50 * time.Millisecond):
			return phases
		}
	}
}

func containsInOrder(haystack []string, needles ...string) bool {
	i := 0
	for _, h := range haystack {
		if i < len(needles) && h == needles[i] {
			i++
		}
	}
	return i == len(needles)
}

func TestFinish_NoChunksStillCompletes(t *testing.T) {
	o := setupOrchestrator(t)
	s := startSession(t, o)

	done, err := o.Finish(context.Background(), &FinishRequest{SessionID: s.ID})
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusCompleted || done.ChunksReceived != 0 {
		t.Fatalf("empty session should complete cleanly: %+v", done)
	}
}

func TestFinish_Idempotent(t *testing.T) {
	o := setupOrchestrator(t)
	s := startSession(t, o)
	ctx := context.Background()

	first, err := o.Finish(ctx, &FinishRequest{SessionID: s.ID})
	if err != nil {
		t.Fatal(err)
	}
	second, err := o.Finish(ctx, &FinishRequest{SessionID: s.ID})
	if err != nil {
		t.Fatalf("repeated finish must be idempotent: %v", err)
	}
	if second.Status != first.Status || !second.FinishedAt.Equal(first.FinishedAt) {
		t.Fatalf("terminal state changed on repeat finish: %+v vs %+v", first, second)
	}
}

func TestFinish_FailedStatusSkipsAnalysis(t *testing.T) {
	o := setupOrchestrator(t)
	s := startSession(t, o)

	done, err := o.Finish(context.Background(), &FinishRequest{
		SessionID: s.ID, Status: StatusFailed, Error: "tab closed",
	})
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != StatusFailed || done.Phase != PhaseFailed || done.Error != "tab closed" {
		t.Fatalf("unexpected failed state: %+v", done)
	}
	if done.Progress != 1 {
		t.Fatalf("failed finish must still land at progress 1: %+v", done)
	}
	if _, err := os.Stat(filepath.Join(o.dataDir, "sessions", s.ID, "tokens.json")); !os.IsNotExist(err) {
		t.Fatal("failed session should not run analysis")
	}
}

func TestFinish_UnknownSession(t *testing.T) {
	o := setupOrchestrator(t)
	_, err := o.Finish(context.Background(), &FinishRequest{SessionID: "sess_missing"})
	if !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	o := setupOrchestrator(t)
	ctx := context.Background()

	a := startSession(t, o)
	time.Sleep(2 * time.Millisecond)
	b := startSession(t, o)

	sessions, err := o.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != b.ID || sessions[1].ID != a.ID {
		t.Fatalf("sessions not newest-first: %s, %s", sessions[0].ID, sessions[1].ID)
	}
}

func TestGet_SurvivesClosedCacheEviction(t *testing.T) {
	o := setupOrchestrator(t)
	WithClosedCacheSize(1)(o)
	ctx := context.Background()

	a := startSession(t, o)
	if _, err := o.Finish(ctx, &FinishRequest{SessionID: a.ID}); err != nil {
		t.Fatal(err)
	}
	b := startSession(t, o)
	if _, err := o.Finish(ctx, &FinishRequest{SessionID: b.ID}); err != nil {
		t.Fatal(err)
	}

	// a was evicted from the cache but its registry row remains.
	got, err := o.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("evicted session lost terminal state: %+v", got)
	}
	// Finishing it again resolves through the registry.
	if _, err := o.Finish(ctx, &FinishRequest{SessionID: a.ID}); err != nil {
		t.Fatalf("finish after eviction should be idempotent: %v", err)
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	_, cancel := h.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish(Event{Type: EventSessionProgress, Session: &Session{ID: "sess_x"}})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe()
	cancel()
	cancel()
	h.Publish(Event{Type: EventSessionProgress})
	if _, ok := <-ch; ok {
		t.Fatal("cancelled subscriber should see a closed channel")
	}
	h.Close()
}
