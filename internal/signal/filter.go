package signal

import (
	"sync"
	"time"

	"ashare-trader/internal/models"
)

// FilterConfig holds the pre-validation gates applied to detected signals.
type FilterConfig struct {
	MinStrength         models.SignalStrength
	LongOnly            bool
	MaxSignalsPerSymbol int
	DedupWindow         time.Duration
}

// DefaultFilterConfig returns the standard filter gates. Long-only is the
// default because shorts opened intraday cannot be covered under T+1.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinStrength:         models.StrengthMedium,
		LongOnly:            true,
		MaxSignalsPerSymbol: 1,
		DedupWindow:         5 * time.Minute,
	}
}

// Filter gates detected signals before validation: strength floor, direction
// gate, per-symbol cap, and a dedup window. It also tracks a daily counter
// that resets on date change.
type Filter struct {
	cfg FilterConfig

	mu         sync.Mutex
	lastSeen   map[string]time.Time // symbol|direction -> last pass time
	perSymbol  map[string]int
	dailyCount int
	countDate  string
}

// NewFilter creates a signal filter.
func NewFilter(cfg FilterConfig) *Filter {
	if cfg.MaxSignalsPerSymbol <= 0 {
		cfg.MaxSignalsPerSymbol = 1
	}
	return &Filter{
		cfg:       cfg,
		lastSeen:  make(map[string]time.Time),
		perSymbol: make(map[string]int),
	}
}

// Accept reports whether the signal passes all gates, with a reason when it
// does not. Passing signals are recorded for dedup and counting.
func (f *Filter) Accept(sig *models.TradingSignal) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	f.resetOnDateChange(now)

	if sig.Strength < f.cfg.MinStrength {
		return false, "below minimum strength"
	}
	if f.cfg.LongOnly && sig.Direction != models.DirectionLong {
		return false, "short signals disabled"
	}
	if f.perSymbol[sig.Symbol] >= f.cfg.MaxSignalsPerSymbol {
		return false, "per-symbol cap reached"
	}

	key := sig.Symbol + "|" + string(sig.Direction)
	if last, ok := f.lastSeen[key]; ok && f.cfg.DedupWindow > 0 && now.Sub(last) < f.cfg.DedupWindow {
		return false, "within dedup window"
	}

	f.lastSeen[key] = now
	f.perSymbol[sig.Symbol]++
	f.dailyCount++
	return true, ""
}

// Release decrements the per-symbol count, used when a passed signal is
// discarded downstream without opening a position.
func (f *Filter) Release(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.perSymbol[symbol] > 0 {
		f.perSymbol[symbol]--
	}
}

// DailyCount returns the number of signals passed today.
func (f *Filter) DailyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetOnDateChange(time.Now())
	return f.dailyCount
}

func (f *Filter) resetOnDateChange(now time.Time) {
	date := now.Format("2006-01-02")
	if f.countDate != date {
		f.countDate = date
		f.dailyCount = 0
		f.perSymbol = make(map[string]int)
	}
}
