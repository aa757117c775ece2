package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"kefctl/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "kefctl.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAuditRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute)

	events := []storage.AuditEvent{
		{Source: "web", Command: "set_volume", Value: "0.5", Status: "ok", RequestID: "r1", TS: base},
		{Source: "cli", Command: "mute", Status: "error", Error: "speaker is offline", TS: base.Add(time.Second)},
		{Source: "web", Command: "turn_on", Status: "ok", TS: base.Add(2 * time.Second)},
	}
	for _, ev := range events {
		if err := st.Write(ctx, ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := st.QueryAudit(ctx, storage.AuditQuery{Source: "web"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 web events, got %d", len(got))
	}
	if got[0].Command != "turn_on" || got[1].Value != "0.5" || got[1].RequestID != "r1" {
		t.Fatalf("unexpected events: %#v", got)
	}

	all, err := st.QueryAudit(ctx, storage.AuditQuery{Limit: 1})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("limit not applied: %d", len(all))
	}
}

func TestLatestSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.LatestSnapshot(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	payload, err := MarshalPayload(map[string]float64{"volume": 0.4})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	now := time.Now().UTC()
	if err := st.SaveSnapshot(ctx, storage.StatusSnapshot{Online: false, TS: now.Add(-time.Minute)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveSnapshot(ctx, storage.StatusSnapshot{Online: true, Payload: payload, TS: now}); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := st.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !snap.Online || string(snap.Payload) != `{"volume":0.4}` {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}
