package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ashare-trader/internal/execution"
	"ashare-trader/internal/marketdata"
	"ashare-trader/internal/store"
)

func newTestEngine() *execution.Engine {
	src := marketdata.NewMemorySource()
	src.SetPrice("600036.SH", 10.0)
	executor := execution.NewPaperExecutor(src, 100000)
	return execution.NewEngine(
		execution.DefaultEngineConfig(),
		execution.NewRiskManager(execution.DefaultT1RiskConfig()),
		executor,
		execution.NewMarketCalendar(),
		100000,
		zerolog.Nop(),
	)
}

func seedSession(t *testing.T, st store.SessionStore, id, state string) {
	t.Helper()
	now := time.Now()
	if err := st.CreateSession(context.Background(), &store.SessionRecord{
		ID:        id,
		State:     state,
		Mode:      "paper",
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed session %s: %v", id, err)
	}
}

func TestRecoverer_ResumesInterruptedSessions(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "recovery.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()

	// Simulate a process that died mid-flight.
	seedSession(t, st, "sess-running", string(StateRunning))
	seedSession(t, st, "sess-starting", string(StateStarting))
	seedSession(t, st, "sess-paused", string(StatePaused))
	seedSession(t, st, "sess-stopped", string(StateStopped))

	entryTime := time.Now().AddDate(0, 0, -1)
	if err := st.CreatePosition(context.Background(), &store.PositionRecord{
		ID:           "pos-1",
		SessionID:    "sess-running",
		Symbol:       "600036.SH",
		Quantity:     400,
		EntryPrice:   10.0,
		CurrentPrice: 10.2,
		StopLoss:     9.5,
		TakeProfit:   11.0,
		EntryTime:    entryTime,
		EntryDate:    entryTime.Format("2006-01-02"),
		Status:       "OPEN",
	}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	runners := make(map[string]*fakeRunner)
	factory := func(sessionID string) Runner {
		r := newFakeRunner()
		runners[sessionID] = r
		return r
	}
	manager := NewManager(st, factory, zerolog.Nop())
	engine := newTestEngine()
	recoverer := NewRecoverer(st, manager, engine, zerolog.Nop())

	report, err := recoverer.Recover(context.Background())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}

	if len(report.Resumed) != 2 {
		t.Errorf("resumed = %v, want the running and starting sessions", report.Resumed)
	}
	if len(report.StillPaused) != 1 || report.StillPaused[0] != "sess-paused" {
		t.Errorf("still paused = %v, want the paused session", report.StillPaused)
	}
	if len(report.Failed) != 0 {
		t.Errorf("failed = %v, want none", report.Failed)
	}
	if report.ReattachedPositions != 1 {
		t.Errorf("reattached = %d, want 1", report.ReattachedPositions)
	}

	// Both interrupted sessions are Running again with live loops.
	for _, id := range []string{"sess-running", "sess-starting"} {
		status, err := manager.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status %s: %v", id, err)
		}
		if status.State != StateRunning {
			t.Errorf("%s state = %s, want RUNNING", id, status.State)
		}
		if runners[id] == nil {
			t.Errorf("%s should have a relaunched loop", id)
		}
	}

	// The paused session stays paused with no loop.
	if runners["sess-paused"] != nil {
		t.Error("paused session must not get a loop until resumed")
	}
	status, _ := manager.Status(context.Background(), "sess-paused")
	if status.State != StatePaused {
		t.Errorf("paused state = %s, want PAUSED", status.State)
	}

	// The stopped session is untouched.
	status, _ = manager.Status(context.Background(), "sess-stopped")
	if status.State != StateStopped {
		t.Errorf("stopped state = %s, want STOPPED", status.State)
	}

	// The position carries its original entry date and capital weight.
	pos := engine.Position("600036.SH")
	if pos == nil {
		t.Fatal("position should be re-attached to the engine")
	}
	if !pos.CanSellAt(time.Now(), engine.Calendar()) {
		t.Error("yesterday's position should be sellable today")
	}
	if pos.CurrentPrice != 10.2 {
		t.Errorf("current price = %.2f, want the persisted 10.2", pos.CurrentPrice)
	}

	for _, id := range report.Resumed {
		if err := manager.Stop(context.Background(), id); err != nil {
			t.Fatalf("stop %s: %v", id, err)
		}
	}
}

func TestRecoverer_NothingToRecover(t *testing.T) {
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "recovery.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()

	seedSession(t, st, "sess-done", string(StateStopped))

	manager := NewManager(st, func(string) Runner { return newFakeRunner() }, zerolog.Nop())
	recoverer := NewRecoverer(st, manager, newTestEngine(), zerolog.Nop())

	report, err := recoverer.Recover(context.Background())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(report.Resumed)+len(report.StillPaused)+len(report.Failed) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}
