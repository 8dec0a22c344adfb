package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ashare-trader/internal/execution"
	"ashare-trader/internal/store"
)

// RecoveryReport summarizes what startup recovery found and did.
type RecoveryReport struct {
	Resumed             []string `json:"resumed"`
	StillPaused         []string `json:"still_paused"`
	Failed              []string `json:"failed"`
	ReattachedPositions int      `json:"reattached_positions"`
}

// Recoverer restores sessions that were active when the process last
// exited. Sessions found Running or Starting are resumed as Running;
// Paused sessions stay paused until explicitly resumed. Open positions are
// re-attached to the execution engine either way.
type Recoverer struct {
	store    store.SessionStore
	manager  *Manager
	engine   *execution.Engine
	calendar *execution.MarketCalendar
	logger   zerolog.Logger
}

// NewRecoverer creates a startup recoverer.
func NewRecoverer(st store.SessionStore, manager *Manager, engine *execution.Engine, logger zerolog.Logger) *Recoverer {
	return &Recoverer{
		store:    st,
		manager:  manager,
		engine:   engine,
		calendar: engine.Calendar(),
		logger:   logger.With().Str("component", "recovery").Logger(),
	}
}

// Recover scans for interrupted sessions and restores them.
func (r *Recoverer) Recover(ctx context.Context) (*RecoveryReport, error) {
	active, err := r.manager.Active(ctx)
	if err != nil {
		return nil, err
	}

	report := &RecoveryReport{}
	for _, info := range active {
		n, err := r.reattachPositions(ctx, info.ID)
		if err != nil {
			r.logger.Error().Err(err).Str("session_id", info.ID).Msg("Failed to reload positions")
			r.markFailed(ctx, info.ID, err)
			report.Failed = append(report.Failed, info.ID)
			continue
		}
		report.ReattachedPositions += n

		switch info.State {
		case StateRunning, StateStarting:
			if err := r.resume(ctx, info.ID); err != nil {
				r.logger.Error().Err(err).Str("session_id", info.ID).Msg("Failed to resume session")
				r.markFailed(ctx, info.ID, err)
				report.Failed = append(report.Failed, info.ID)
				continue
			}
			report.Resumed = append(report.Resumed, info.ID)
		case StatePaused:
			report.StillPaused = append(report.StillPaused, info.ID)
		}
	}

	r.logger.Info().
		Int("resumed", len(report.Resumed)).
		Int("paused", len(report.StillPaused)).
		Int("failed", len(report.Failed)).
		Int("positions", report.ReattachedPositions).
		Msg("Recovery complete")
	return report, nil
}

// resume restarts the work loop for a session that was Running or Starting
// at shutdown.
func (r *Recoverer) resume(ctx context.Context, id string) error {
	if err := r.store.UpdateSessionState(ctx, id, string(StateRunning), ""); err != nil {
		return err
	}
	r.manager.mu.Lock()
	defer r.manager.mu.Unlock()
	if _, active := r.manager.running[id]; !active {
		r.manager.launchLocked(id)
	}
	return nil
}

// reattachPositions reloads a session's open positions into the engine.
func (r *Recoverer) reattachPositions(ctx context.Context, sessionID string) (int, error) {
	recs, err := r.store.GetOpenPositions(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		pos := positionFromRecord(rec, r.calendar)
		if r.engine.Position(pos.Symbol) != nil {
			continue
		}
		r.engine.AttachPosition(pos)
	}
	return len(recs), nil
}

func (r *Recoverer) markFailed(ctx context.Context, id string, cause error) {
	if err := r.store.UpdateSessionState(ctx, id, string(StateFailed), cause.Error()); err != nil {
		r.logger.Error().Err(err).Str("session_id", id).Msg("Failed to persist failure state")
	}
}

// positionFromRecord rebuilds an in-memory position from its stored form.
// EntryDate comes from the persisted exchange-local date string, never the
// current clock.
func positionFromRecord(rec *store.PositionRecord, calendar *execution.MarketCalendar) *execution.Position {
	entryDate, err := time.ParseInLocation("2006-01-02", rec.EntryDate, calendar.Location())
	if err != nil {
		entryDate = calendar.LocalDate(rec.EntryTime)
	}
	return &execution.Position{
		ID:           rec.ID,
		SessionID:    rec.SessionID,
		Symbol:       rec.Symbol,
		Quantity:     rec.Quantity,
		EntryPrice:   rec.EntryPrice,
		CurrentPrice: rec.CurrentPrice,
		StopLoss:     rec.StopLoss,
		TakeProfit:   rec.TakeProfit,
		EntryTime:    rec.EntryTime,
		EntryDate:    entryDate,
		Status:       execution.PositionStatusOpen,
	}
}

// RecordFromPosition converts an in-memory position to its stored form.
func RecordFromPosition(pos *execution.Position) *store.PositionRecord {
	return &store.PositionRecord{
		ID:           pos.ID,
		SessionID:    pos.SessionID,
		Symbol:       pos.Symbol,
		Quantity:     pos.Quantity,
		EntryPrice:   pos.EntryPrice,
		CurrentPrice: pos.CurrentPrice,
		StopLoss:     pos.StopLoss,
		TakeProfit:   pos.TakeProfit,
		EntryTime:    pos.EntryTime,
		EntryDate:    pos.EntryDate.Format("2006-01-02"),
		ExitTime:     pos.ExitTime,
		Status:       string(pos.Status),
		RealizedPnL:  pos.RealizedPnL,
	}
}
