package signal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ashare-trader/internal/analysis/patterns"
	"ashare-trader/internal/marketdata"
	"ashare-trader/internal/models"
	"ashare-trader/pkg/utils"
)

// candleWindow is the number of bars fetched per detection pass.
const candleWindow = 100

// EngineConfig holds signal engine configuration.
type EngineConfig struct {
	Timeframes       []models.Timeframe // highest priority first
	Pairs            []models.Pair
	RequireAlignment bool
	SignalExpiry     time.Duration
}

// DefaultEngineConfig returns the standard engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Timeframes:       []models.Timeframe{models.TimeframeD1},
		RequireAlignment: true,
		SignalExpiry:     60 * time.Minute,
	}
}

// Engine runs the structure and divergence detectors across configured
// pairs and timeframes and maintains the active-signal registry.
type Engine struct {
	cfg        EngineConfig
	structure  *patterns.StructureDetector
	divergence *patterns.DivergenceDetector
	bars       marketdata.BarSource
	registry   *Registry
	retry      utils.RetryConfig
	logger     zerolog.Logger
}

// NewEngine creates a signal engine.
func NewEngine(cfg EngineConfig, structure *patterns.StructureDetector, divergence *patterns.DivergenceDetector, bars marketdata.BarSource, logger zerolog.Logger) *Engine {
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = []models.Timeframe{models.TimeframeD1}
	}
	if cfg.SignalExpiry == 0 {
		cfg.SignalExpiry = 60 * time.Minute
	}
	return &Engine{
		cfg:        cfg,
		structure:  structure,
		divergence: divergence,
		bars:       bars,
		registry:   NewRegistry(cfg.SignalExpiry),
		retry: utils.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  50 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2.0,
		},
		logger: logger.With().Str("component", "signal_engine").Logger(),
	}
}

// Registry exposes the engine's active-signal registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Scan runs detection for every configured pair and returns the signals
// newly admitted to the registry. Data failures for one pair are logged and
// skipped; they never abort the batch.
func (e *Engine) Scan(ctx context.Context) []*models.TradingSignal {
	e.registry.PurgeExpired()

	var (
		mu      sync.Mutex
		signals []*models.TradingSignal
		wg      sync.WaitGroup
	)

	for _, pair := range e.cfg.Pairs {
		wg.Add(1)
		go func(pair models.Pair) {
			defer wg.Done()
			sig := e.scanPair(ctx, pair)
			if sig == nil {
				return
			}
			if !e.registry.Add(sig) {
				e.logger.Debug().
					Str("symbol", sig.Symbol).
					Str("direction", string(sig.Direction)).
					Msg("Duplicate signal suppressed")
				return
			}
			mu.Lock()
			signals = append(signals, sig)
			mu.Unlock()
		}(pair)
	}
	wg.Wait()

	return signals
}

// scanPair runs the detectors for one correlated pair across the configured
// timeframes and evaluates the confluence.
func (e *Engine) scanPair(ctx context.Context, pair models.Pair) *models.TradingSignal {
	var (
		structures []*models.StructureResult
		divergence *models.DivergenceResult
	)

	for _, tf := range e.cfg.Timeframes {
		primary, err := e.fetchCandles(ctx, pair.Primary, tf)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("symbol", pair.Primary).
				Str("timeframe", string(tf)).
				Msg("Candle fetch failed, skipping timeframe")
			continue
		}

		if s := e.structure.Detect(primary, pair.Primary, tf); s != nil {
			structures = append(structures, s)
		}

		// Divergence confirmation only carries weight on higher timeframes.
		if divergence == nil && (tf == models.TimeframeD1 || tf == models.TimeframeH4) {
			reference, err := e.fetchCandles(ctx, pair.Reference, tf)
			if err != nil {
				e.logger.Warn().Err(err).
					Str("symbol", pair.Reference).
					Str("timeframe", string(tf)).
					Msg("Reference candle fetch failed")
				continue
			}
			divergence = e.divergence.Detect(primary, reference, pair.Primary, pair.Reference)
		}
	}

	return e.evaluate(pair, structures, divergence)
}

// fetchCandles pulls one detection window with transient-failure retries.
func (e *Engine) fetchCandles(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	return utils.RetryWithResult(ctx, e.retry, func() ([]models.Candle, error) {
		return e.bars.GetCandles(ctx, symbol, tf, candleWindow)
	})
}

// evaluate turns detection results for one pair into at most one signal.
func (e *Engine) evaluate(pair models.Pair, structures []*models.StructureResult, divergence *models.DivergenceResult) *models.TradingSignal {
	if len(structures) == 0 {
		return nil
	}
	if e.cfg.RequireAlignment && len(structures) < 2 {
		return nil
	}

	// The highest-priority timeframe dictates direction and levels.
	primary := structures[0]
	direction := primary.Direction

	// A conflicting divergence suppresses the signal without error.
	if divergence != nil && divergence.Type.Direction() != direction {
		e.logger.Debug().
			Str("symbol", pair.Primary).
			Str("structure", string(direction)).
			Str("divergence", string(divergence.Type)).
			Msg("Divergence conflicts with structure, no signal")
		return nil
	}

	score := len(structures)
	if score > 3 {
		score = 3
	}
	if divergence != nil {
		score += 2
	}
	if primary.ManipulationClear {
		score++
	}
	if primary.DistributionStarted {
		score++
	}

	aligned := make([]models.Timeframe, 0, len(structures))
	notes := make([]string, 0, 4)
	for _, s := range structures {
		aligned = append(aligned, s.Timeframe)
	}
	notes = append(notes, fmt.Sprintf("Structure on: %v", aligned))
	if divergence != nil {
		notes = append(notes, fmt.Sprintf("%s divergence vs %s detected", divergence.Type, divergence.ReferenceSymbol))
	}
	notes = append(notes, fmt.Sprintf("Current phase: %s", primary.Phase))
	notes = append(notes, fmt.Sprintf("Target: 50%% retrace at %.2f", primary.Midpoint))

	return &models.TradingSignal{
		ID:                 uuid.NewString(),
		Symbol:             pair.Primary,
		Direction:          direction,
		Strength:           models.StrengthFromScore(score),
		EntryPrice:         primary.IdealEntry,
		StopLoss:           primary.StopLevel,
		TakeProfit:         primary.Midpoint,
		Timestamp:          time.Now(),
		Structure:          primary,
		Divergence:         divergence,
		TimeframeAlignment: aligned,
		Notes:              strings.Join(notes, " | "),
	}
}
