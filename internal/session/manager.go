package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ashare-trader/internal/errors"
	"ashare-trader/internal/store"
)

// Runner is the per-session work loop controlled by the manager. Start
// blocks until the loop exits; Pause and Resume take effect at the loop's
// next checkpoint.
type Runner interface {
	Start(ctx context.Context) error
	Pause()
	Resume()
	Stop()
}

// RunnerFactory builds the work loop for a session.
type RunnerFactory func(sessionID string) Runner

// Config describes a session at creation time.
type Config struct {
	Mode         string        `json:"mode"` // "paper" or "live"
	Pairs        []string      `json:"pairs,omitempty"`
	ScanInterval time.Duration `json:"scan_interval,omitempty"`
}

// Info is a point-in-time view of a session.
type Info struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	Mode         string    `json:"mode"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type runningSession struct {
	runner Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns session lifecycle transitions. Every transition is written
// to the store before it takes effect in memory; a failed write leaves the
// session in its prior state.
type Manager struct {
	store   store.SessionStore
	factory RunnerFactory
	logger  zerolog.Logger

	mu      sync.Mutex
	running map[string]*runningSession
}

// NewManager creates a session manager.
func NewManager(st store.SessionStore, factory RunnerFactory, logger zerolog.Logger) *Manager {
	return &Manager{
		store:   st,
		factory: factory,
		logger:  logger.With().Str("component", "session_manager").Logger(),
		running: make(map[string]*runningSession),
	}
}

// Create registers a new session in the Created state.
func (m *Manager) Create(ctx context.Context, cfg Config) (*Info, error) {
	if cfg.Mode == "" {
		cfg.Mode = "paper"
	}
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode session config")
	}

	now := time.Now()
	rec := &store.SessionRecord{
		ID:        uuid.NewString(),
		State:     string(StateCreated),
		Mode:      cfg.Mode,
		Config:    string(configJSON),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateSession(ctx, rec); err != nil {
		return nil, err
	}

	m.logger.Info().Str("session_id", rec.ID).Str("mode", cfg.Mode).Msg("Session created")
	return infoFromRecord(rec), nil
}

// Start transitions a session to Running and launches its work loop. Only
// Created, Stopped, and Failed sessions can start.
func (m *Manager) Start(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	current := State(rec.State)
	if err := ValidateTransition(id, current, StateStarting); err != nil {
		return err
	}
	if _, active := m.running[id]; active {
		return errors.ErrSessionActive
	}

	if err := m.store.UpdateSessionState(ctx, id, string(StateStarting), ""); err != nil {
		return err
	}
	if err := m.store.UpdateSessionState(ctx, id, string(StateRunning), ""); err != nil {
		// Starting was durably recorded; recovery will pick the session up.
		return err
	}

	m.launchLocked(id)
	m.logger.Info().Str("session_id", id).Str("from", string(current)).Msg("Session started")
	return nil
}

// launchLocked starts the work loop goroutine. Caller holds m.mu.
func (m *Manager) launchLocked(id string) {
	runCtx, cancel := context.WithCancel(context.Background())
	rs := &runningSession{
		runner: m.factory(id),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.running[id] = rs

	go func() {
		defer close(rs.done)
		if err := rs.runner.Start(runCtx); err != nil && runCtx.Err() == nil {
			m.failSession(id, err)
		}
	}()
}

// failSession records a loop failure. Best effort: the durable state is
// authoritative, the in-memory entry is dropped regardless.
func (m *Manager) failSession(id string, cause error) {
	m.logger.Error().Err(cause).Str("session_id", id).Msg("Session loop failed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.UpdateSessionState(ctx, id, string(StateFailed), cause.Error()); err != nil {
		m.logger.Error().Err(err).Str("session_id", id).Msg("Failed to persist failure state")
	}

	m.mu.Lock()
	delete(m.running, id)
	m.mu.Unlock()
}

// Pause suspends a Running session. The loop keeps its goroutine and skips
// work until resumed.
func (m *Manager) Pause(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if err := ValidateTransition(id, State(rec.State), StatePaused); err != nil {
		return err
	}
	if err := m.store.UpdateSessionState(ctx, id, string(StatePaused), ""); err != nil {
		return err
	}

	if rs, ok := m.running[id]; ok {
		rs.runner.Pause()
	}
	m.logger.Info().Str("session_id", id).Msg("Session paused")
	return nil
}

// Resume returns a Paused session to Running.
func (m *Manager) Resume(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	current := State(rec.State)
	if current != StatePaused {
		return errors.NewStateError(id, string(current), string(StateRunning))
	}
	if err := m.store.UpdateSessionState(ctx, id, string(StateRunning), ""); err != nil {
		return err
	}

	if rs, ok := m.running[id]; ok {
		rs.runner.Resume()
	} else {
		// Paused across a restart: the loop no longer exists.
		m.launchLocked(id)
	}
	m.logger.Info().Str("session_id", id).Msg("Session resumed")
	return nil
}

// Stop halts a Running or Paused session. The loop exits at its next safe
// checkpoint; Stop waits for it before recording Stopped.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if err := ValidateTransition(id, State(rec.State), StateStopping); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := m.store.UpdateSessionState(ctx, id, string(StateStopping), ""); err != nil {
		m.mu.Unlock()
		return err
	}

	rs, active := m.running[id]
	delete(m.running, id)
	m.mu.Unlock()

	if active {
		rs.runner.Stop()
		rs.cancel()
		select {
		case <-rs.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := m.store.UpdateSessionState(ctx, id, string(StateStopped), ""); err != nil {
		return err
	}
	m.logger.Info().Str("session_id", id).Msg("Session stopped")
	return nil
}

// Status returns the current view of a session.
func (m *Manager) Status(ctx context.Context, id string) (*Info, error) {
	rec, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return infoFromRecord(rec), nil
}

// List returns the most recent sessions.
func (m *Manager) List(ctx context.Context, limit int) ([]*Info, error) {
	recs, err := m.store.GetSessions(ctx, store.SessionFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	infos := make([]*Info, 0, len(recs))
	for _, rec := range recs {
		infos = append(infos, infoFromRecord(rec))
	}
	return infos, nil
}

// Active returns the sessions whose state carries live obligations.
func (m *Manager) Active(ctx context.Context) ([]*Info, error) {
	recs, err := m.store.GetSessions(ctx, store.SessionFilter{
		States: []string{string(StateStarting), string(StateRunning), string(StatePaused)},
	})
	if err != nil {
		return nil, err
	}
	infos := make([]*Info, 0, len(recs))
	for _, rec := range recs {
		infos = append(infos, infoFromRecord(rec))
	}
	return infos, nil
}

// CleanupBefore deletes sessions created before the cutoff.
func (m *Manager) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.store.DeleteSessionsBefore(ctx, cutoff)
}

func infoFromRecord(rec *store.SessionRecord) *Info {
	return &Info{
		ID:           rec.ID,
		State:        State(rec.State),
		Mode:         rec.Mode,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}
