package monitor

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ashare-trader/internal/analysis/patterns"
	"ashare-trader/internal/errors"
	"ashare-trader/internal/execution"
	"ashare-trader/internal/marketdata"
	"ashare-trader/internal/models"
	"ashare-trader/internal/signal"
	"ashare-trader/internal/store"
)

type loopFixture struct {
	loop   *TradingLoop
	engine *execution.Engine
	src    *marketdata.MemorySource
	store  *store.SQLiteStore
}

func newLoopFixture(t *testing.T, cfg LoopConfig) *loopFixture {
	t.Helper()

	src := marketdata.NewMemorySource()
	executor := execution.NewPaperExecutor(src, 100000)
	execCfg := execution.DefaultEngineConfig()
	execCfg.MaxPositionPercent = 50.0
	// The sizing example (2% risk on a 5% stop) deploys 40% of capital, so
	// the risk manager's per-position cap has to move with the engine's.
	riskCfg := execution.DefaultT1RiskConfig()
	riskCfg.MaxPositionPercent = 50.0
	engine := execution.NewEngine(
		execCfg,
		execution.NewRiskManager(riskCfg),
		executor,
		execution.NewMarketCalendar(),
		100000,
		zerolog.Nop(),
	)

	scanCfg := signal.DefaultEngineConfig()
	scanCfg.RequireAlignment = false
	scanner := signal.NewEngine(
		scanCfg,
		patterns.NewStructureDetector(patterns.DefaultStructureConfig()),
		patterns.NewDivergenceDetector(patterns.DefaultDivergenceConfig()),
		src,
		zerolog.Nop(),
	)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "loop.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.CreateSession(context.Background(), &store.SessionRecord{
		ID:        "sess-1",
		State:     "RUNNING",
		Mode:      "paper",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	loop := NewTradingLoop(
		"sess-1",
		cfg,
		scanner,
		signal.NewValidator(signal.DefaultValidatorConfig()),
		signal.NewFilter(signal.DefaultFilterConfig()),
		engine,
		NewPriceMonitor(DefaultPriceMonitorConfig(), src, engine, zerolog.Nop()),
		st,
		zerolog.Nop(),
	)
	return &loopFixture{loop: loop, engine: engine, src: src, store: st}
}

func freshLongSignal(symbol string) *models.TradingSignal {
	return &models.TradingSignal{
		ID:         "sig-1",
		Symbol:     symbol,
		Direction:  models.DirectionLong,
		Strength:   models.StrengthStrong,
		EntryPrice: 10.0,
		StopLoss:   9.5,
		TakeProfit: 11.0,
		Timestamp:  time.Now(),
		TimeframeAlignment: []models.Timeframe{
			models.TimeframeD1, models.TimeframeH4,
		},
		Structure: &models.StructureResult{
			Symbol:    symbol,
			Direction: models.DirectionLong,
		},
	}
}

func TestTradingLoop_HandleSignalPersistsAndExecutes(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.AutoExecute = true
	cfg.IgnoreMarketHours = true
	fx := newLoopFixture(t, cfg)
	ctx := context.Background()

	fx.src.SetPrice("600036.SH", 10.0)
	fx.loop.handleSignal(ctx, freshLongSignal("600036.SH"))

	// The signal is persisted.
	signals, err := fx.store.GetRecentSignals(ctx, 10)
	if err != nil {
		t.Fatalf("signals: %v", err)
	}
	if len(signals) != 1 || signals[0].ID != "sig-1" {
		t.Fatalf("persisted signals = %+v, want sig-1", signals)
	}

	// The position is opened and persisted.
	pos := fx.engine.Position("600036.SH")
	if pos == nil {
		t.Fatal("position should be open")
	}
	if pos.Quantity != 4000 {
		t.Errorf("quantity = %d, want 4000", pos.Quantity)
	}
	stored, err := fx.store.GetOpenPositions(ctx, "sess-1")
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != pos.ID {
		t.Errorf("stored positions = %+v, want the opened one", stored)
	}

	// Events surfaced in order: signal, then position opened.
	var types []EventType
	for len(fx.loop.Events()) > 0 {
		types = append(types, (<-fx.loop.Events()).Type)
	}
	if len(types) != 2 || types[0] != EventSignal || types[1] != EventPositionOpened {
		t.Errorf("events = %v, want [SIGNAL POSITION_OPENED]", types)
	}
}

func TestTradingLoop_ShortSignalsAreNotExecuted(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.AutoExecute = true
	cfg.IgnoreMarketHours = true
	fx := newLoopFixture(t, cfg)
	ctx := context.Background()

	// Allow shorts through the filter to exercise the execution gate.
	filterCfg := signal.DefaultFilterConfig()
	filterCfg.LongOnly = false
	fx.loop.filter = signal.NewFilter(filterCfg)

	sig := freshLongSignal("600036.SH")
	sig.Direction = models.DirectionShort
	sig.StopLoss = 10.5
	sig.TakeProfit = 9.0
	fx.src.SetPrice("600036.SH", 10.0)

	fx.loop.handleSignal(ctx, sig)

	if fx.engine.Position("600036.SH") != nil {
		t.Error("spot trading must not open short positions")
	}
	// The signal itself is still recorded for review.
	signals, _ := fx.store.GetRecentSignals(ctx, 10)
	if len(signals) != 1 {
		t.Errorf("signals = %d, want 1", len(signals))
	}
}

func TestTradingLoop_InvalidSignalRejected(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.AutoExecute = true
	cfg.IgnoreMarketHours = true
	fx := newLoopFixture(t, cfg)
	ctx := context.Background()

	// 1:1 reward-to-risk fails validation.
	sig := freshLongSignal("600036.SH")
	sig.TakeProfit = 10.5
	fx.loop.handleSignal(ctx, sig)

	signals, _ := fx.store.GetRecentSignals(ctx, 10)
	if len(signals) != 0 {
		t.Errorf("rejected signal must not be persisted, got %d", len(signals))
	}
	event := <-fx.loop.Events()
	if event.Type != EventSignalRejected {
		t.Errorf("event = %s, want SIGNAL_REJECTED", event.Type)
	}

	snapshot := fx.loop.Metrics().Snapshot()
	if snapshot.Validated != 1 || snapshot.Rejected != 1 {
		t.Errorf("metrics = %+v, want one rejected validation", snapshot)
	}
	if snapshot.FailuresByCheck["Risk/Reward"] != 1 {
		t.Errorf("failures = %+v, want the risk/reward check", snapshot.FailuresByCheck)
	}
}

func TestTradingLoop_PriceTickClosesTriggeredPositions(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.IgnoreMarketHours = true
	fx := newLoopFixture(t, cfg)
	ctx := context.Background()

	// A position from yesterday, so settlement allows the exit.
	cal := fx.engine.Calendar()
	pos := execution.NewPosition("sess-1", "600036.SH", 400, 10.0, 9.5, 11.0, cal)
	yesterday := time.Now().AddDate(0, 0, -1)
	pos.EntryTime = yesterday
	pos.EntryDate = cal.LocalDate(yesterday)
	fx.engine.AttachPosition(pos)
	if err := fx.store.CreatePosition(ctx, &store.PositionRecord{
		ID:         pos.ID,
		SessionID:  "sess-1",
		Symbol:     pos.Symbol,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		EntryTime:  pos.EntryTime,
		EntryDate:  pos.EntryDate.Format("2006-01-02"),
		Status:     "OPEN",
	}); err != nil {
		t.Fatalf("seed position: %v", err)
	}

	fx.src.SetPrice("600036.SH", 11.2)
	fx.loop.checkPricesOnce(ctx)

	if fx.engine.Position("600036.SH") != nil {
		t.Error("target hit should close the position")
	}
	open, _ := fx.store.GetOpenPositions(ctx, "sess-1")
	if len(open) != 0 {
		t.Errorf("stored open positions = %d, want 0", len(open))
	}

	var closedEvent *Event
	for len(fx.loop.Events()) > 0 {
		e := <-fx.loop.Events()
		if e.Type == EventPositionClosed {
			closedEvent = &e
		}
	}
	if closedEvent == nil || closedEvent.Message != "take_profit" {
		t.Errorf("closed event = %+v, want take_profit reason", closedEvent)
	}
}

func TestTradingLoop_SettlementDefersSameDayExit(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.IgnoreMarketHours = true
	fx := newLoopFixture(t, cfg)
	ctx := context.Background()

	// A position opened today cannot exit even on a stop hit.
	pos := execution.NewPosition("sess-1", "600036.SH", 400, 10.0, 9.5, 11.0, fx.engine.Calendar())
	fx.engine.AttachPosition(pos)

	fx.src.SetPrice("600036.SH", 9.3)
	fx.loop.checkPricesOnce(ctx)

	if fx.engine.Position("600036.SH") == nil {
		t.Error("same-day position must stay open until settlement clears")
	}
}

// failingStore fails selected writes while delegating everything else.
type failingStore struct {
	store.SessionStore
	createPositionErr error
	closePositionErr  error
}

func (f *failingStore) CreatePosition(ctx context.Context, rec *store.PositionRecord) error {
	if f.createPositionErr != nil {
		return f.createPositionErr
	}
	return f.SessionStore.CreatePosition(ctx, rec)
}

func (f *failingStore) ClosePosition(ctx context.Context, id string, exitTime time.Time, realizedPnL float64) error {
	if f.closePositionErr != nil {
		return f.closePositionErr
	}
	return f.SessionStore.ClosePosition(ctx, id, exitTime, realizedPnL)
}

func TestTradingLoop_PositionWriteFailureIsFatal(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.AutoExecute = true
	cfg.IgnoreMarketHours = true
	fx := newLoopFixture(t, cfg)
	ctx := context.Background()

	fx.loop.sessions = &failingStore{
		SessionStore:      fx.store,
		createPositionErr: errors.NewStoreError("create", "position", stderrors.New("disk full")),
	}
	fx.src.SetPrice("600036.SH", 10.0)

	err := fx.loop.handleSignal(ctx, freshLongSignal("600036.SH"))
	if err == nil {
		t.Fatal("unpersisted position must abort the loop")
	}
	var storeErr *errors.StoreError
	if !errors.As(err, &storeErr) {
		t.Errorf("error = %v, want a store error", err)
	}
}

func TestTradingLoop_CloseWriteFailureIsFatal(t *testing.T) {
	cfg := DefaultLoopConfig()
	cfg.IgnoreMarketHours = true
	fx := newLoopFixture(t, cfg)
	ctx := context.Background()

	cal := fx.engine.Calendar()
	pos := execution.NewPosition("sess-1", "600036.SH", 400, 10.0, 9.5, 11.0, cal)
	yesterday := time.Now().AddDate(0, 0, -1)
	pos.EntryTime = yesterday
	pos.EntryDate = cal.LocalDate(yesterday)
	fx.engine.AttachPosition(pos)
	if err := fx.store.CreatePosition(ctx, &store.PositionRecord{
		ID:         pos.ID,
		SessionID:  "sess-1",
		Symbol:     pos.Symbol,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		EntryTime:  pos.EntryTime,
		EntryDate:  pos.EntryDate.Format("2006-01-02"),
		Status:     "OPEN",
	}); err != nil {
		t.Fatalf("seed position: %v", err)
	}
	fx.loop.sessions = &failingStore{
		SessionStore:     fx.store,
		closePositionErr: errors.NewStoreError("close", "position", stderrors.New("disk full")),
	}

	fx.src.SetPrice("600036.SH", 11.2)
	if err := fx.loop.checkPricesOnce(ctx); err == nil {
		t.Fatal("unpersisted close must abort the loop")
	}
}

func TestTradingLoop_PauseStopLifecycle(t *testing.T) {
	cfg := LoopConfig{
		ScanInterval:      5 * time.Millisecond,
		PriceInterval:     5 * time.Millisecond,
		IgnoreMarketHours: true,
	}
	fx := newLoopFixture(t, cfg)

	done := make(chan error, 1)
	go func() { done <- fx.loop.Start(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	fx.loop.Pause()
	fx.loop.Resume()
	fx.loop.Stop()
	fx.loop.Stop() // idempotent

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("loop exit = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
