package session

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"pageforge/dbopen"
)

func TestRegistry_RoundTrip(t *testing.T) {
	reg, err := NewRegistry(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	s := &Session{
		ID:                  "sess_rt",
		URL:                 "https://example.com/pricing",
		Scope:               ScopeSelection,
		TargetSelector:      "#pricing-table",
		IncludeInteractions: true,
		Status:              StatusCapturing,
		Phase:               PhaseCapturingStyles,
		Progress:            0.25,
		ChunksReceived:      3,
		Workspace:           "/tmp/sess_rt",
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := reg.Save(ctx, s); err != nil {
		t.Fatal(err)
	}

	got, err := reg.Get(ctx, "sess_rt")
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != s.URL || got.Scope != s.Scope || got.TargetSelector != s.TargetSelector {
		t.Fatalf("identity fields mismatch: %+v", got)
	}
	if !got.IncludeInteractions || got.IncludeResponsiveStates {
		t.Fatalf("capture toggles mismatch: %+v", got)
	}
	if got.Phase != s.Phase || got.Progress != s.Progress || got.ChunksReceived != 3 {
		t.Fatalf("progress fields mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(now) || !got.FinishedAt.IsZero() {
		t.Fatalf("timestamps mismatch: %+v", got)
	}

	// Upsert updates the mutable fields in place.
	s.Status = StatusCompleted
	s.Phase = PhaseCompleted
	s.Progress = 1
	s.FinishedAt = now.Add(time.Minute)
	if err := reg.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	got, err = reg.Get(ctx, "sess_rt")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || !got.FinishedAt.Equal(s.FinishedAt) {
		t.Fatalf("upsert did not stick: %+v", got)
	}
}

func TestRegistry_ListAllBypassesCap(t *testing.T) {
	reg, err := NewRegistry(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 120; i++ {
		s := &Session{
			ID:        "sess_" + string(rune('a'+i/26)) + string(rune('a'+i%26)),
			Scope:     ScopePage,
			Status:    StatusCompleted,
			Phase:     PhaseCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
			UpdatedAt: base,
		}
		if err := reg.Save(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	capped, err := reg.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(capped) != 100 {
		t.Fatalf("default listing should cap at 100, got %d", len(capped))
	}
	all, err := reg.List(ctx, ListAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 120 {
		t.Fatalf("ListAll should return every row, got %d", len(all))
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg, err := NewRegistry(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get(context.Background(), "sess_nope"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected ErrUnknownSession, got %v", err)
	}
}
