package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ashare-trader/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func makeSession(id, state string, createdAt time.Time) *SessionRecord {
	return &SessionRecord{
		ID:        id,
		State:     state,
		Mode:      "paper",
		Config:    `{"scan_interval":"5s"}`,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestSQLiteStore_SessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	if err := store.CreateSession(ctx, makeSession("sess-1", "CREATED", now)); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec, err := store.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.State != "CREATED" || rec.Mode != "paper" {
		t.Errorf("record = %+v, want CREATED/paper", rec)
	}
	if rec.Config == "" {
		t.Error("config should round-trip")
	}

	if err := store.UpdateSessionState(ctx, "sess-1", "RUNNING", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _ = store.GetSession(ctx, "sess-1")
	if rec.State != "RUNNING" {
		t.Errorf("state = %s, want RUNNING", rec.State)
	}

	if err := store.UpdateSessionState(ctx, "sess-1", "FAILED", "feed disconnected"); err != nil {
		t.Fatalf("update to failed: %v", err)
	}
	rec, _ = store.GetSession(ctx, "sess-1")
	if rec.ErrorMessage != "feed disconnected" {
		t.Errorf("error message = %q, want the failure reason", rec.ErrorMessage)
	}
}

func TestSQLiteStore_SessionNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("get error = %v, want ErrSessionNotFound", err)
	}
	if err := store.UpdateSessionState(ctx, "missing", "RUNNING", ""); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Errorf("update error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteStore_GetSessionsFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	seed := []struct {
		id    string
		state string
	}{
		{"sess-a", "RUNNING"},
		{"sess-b", "PAUSED"},
		{"sess-c", "STOPPED"},
		{"sess-d", "STARTING"},
	}
	for i, s := range seed {
		if err := store.CreateSession(ctx, makeSession(s.id, s.state, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("seed %s: %v", s.id, err)
		}
	}

	active, err := store.GetSessions(ctx, SessionFilter{States: []string{"RUNNING", "PAUSED", "STARTING"}})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 3 {
		t.Errorf("active sessions = %d, want 3", len(active))
	}
	// Most recent first.
	if active[0].ID != "sess-d" {
		t.Errorf("first = %s, want sess-d", active[0].ID)
	}

	limited, err := store.GetSessions(ctx, SessionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited sessions = %d, want 2", len(limited))
	}
}

func TestSQLiteStore_DeleteSessionsBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -40)
	recent := time.Now().UTC()
	if err := store.CreateSession(ctx, makeSession("sess-old", "STOPPED", old)); err != nil {
		t.Fatalf("seed old: %v", err)
	}
	if err := store.CreateSession(ctx, makeSession("sess-new", "STOPPED", recent)); err != nil {
		t.Fatalf("seed new: %v", err)
	}
	if err := store.CreatePosition(ctx, &PositionRecord{
		ID:         "pos-old",
		SessionID:  "sess-old",
		Symbol:     "600036.SH",
		Quantity:   400,
		EntryPrice: 10.0,
		EntryTime:  old,
		EntryDate:  old.Format("2006-01-02"),
		Status:     "CLOSED",
	}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	deleted, err := store.DeleteSessionsBefore(ctx, time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := store.GetSession(ctx, "sess-old"); !errors.Is(err, errors.ErrSessionNotFound) {
		t.Error("old session should be gone")
	}
	if _, err := store.GetSession(ctx, "sess-new"); err != nil {
		t.Errorf("recent session should survive: %v", err)
	}
}

func TestSQLiteStore_PositionUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	if err := store.CreateSession(ctx, makeSession("sess-1", "RUNNING", now)); err != nil {
		t.Fatalf("session: %v", err)
	}
	rec := &PositionRecord{
		ID:           "pos-1",
		SessionID:    "sess-1",
		Symbol:       "600036.SH",
		Quantity:     400,
		EntryPrice:   10.0,
		CurrentPrice: 10.0,
		StopLoss:     9.5,
		TakeProfit:   11.0,
		EntryTime:    now,
		EntryDate:    now.Format("2006-01-02"),
		Status:       "OPEN",
	}
	if err := store.CreatePosition(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.UpdatePositionPrice(ctx, "pos-1", 10.6); err != nil {
		t.Fatalf("update price: %v", err)
	}
	open, err := store.GetOpenPositions(ctx, "sess-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 || open[0].CurrentPrice != 10.6 {
		t.Errorf("open = %+v, want current price 10.6", open)
	}

	exit := now.AddDate(0, 0, 1)
	if err := store.ClosePosition(ctx, "pos-1", exit, 240.0); err != nil {
		t.Fatalf("close: %v", err)
	}
	open, _ = store.GetOpenPositions(ctx, "sess-1")
	if len(open) != 0 {
		t.Errorf("open after close = %d, want 0", len(open))
	}

	if err := store.UpdatePositionPrice(ctx, "pos-missing", 1.0); !errors.Is(err, errors.ErrPositionNotFound) {
		t.Errorf("update missing = %v, want ErrPositionNotFound", err)
	}
}

func TestSQLiteStore_Signals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := &SignalRecord{
			ID:         string(rune('a' + i)),
			Symbol:     "600036.SH",
			Direction:  "LONG",
			Strength:   "STRONG",
			EntryPrice: 10.0,
			StopLoss:   9.5,
			TakeProfit: 11.0,
			Notes:      "structure D1",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveSignal(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	signals, err := store.GetRecentSignals(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("signals = %d, want 2", len(signals))
	}
	// Most recent first.
	if signals[0].ID != "c" {
		t.Errorf("first = %s, want c", signals[0].ID)
	}
	if signals[0].Notes != "structure D1" {
		t.Errorf("notes = %q, want round-trip", signals[0].Notes)
	}
}
