package signal

import (
	"sync"
)

// ScoreDistribution buckets validation scores for reporting.
type ScoreDistribution struct {
	Bucket0to25   int `json:"bucket_0_25"`
	Bucket25to50  int `json:"bucket_25_50"`
	Bucket50to75  int `json:"bucket_50_75"`
	Bucket75to100 int `json:"bucket_75_100"`
}

// MetricsSnapshot is a point-in-time copy of validation counters.
type MetricsSnapshot struct {
	Validated     int               `json:"validated"`
	Accepted      int               `json:"accepted"`
	Rejected      int               `json:"rejected"`
	FailuresByCheck map[string]int  `json:"failures_by_check"`
	Scores        ScoreDistribution `json:"scores"`
}

// Metrics accumulates validation outcomes for diagnostics.
type Metrics struct {
	mu       sync.Mutex
	snapshot MetricsSnapshot
}

// NewMetrics creates an empty metrics accumulator.
func NewMetrics() *Metrics {
	return &Metrics{
		snapshot: MetricsSnapshot{FailuresByCheck: make(map[string]int)},
	}
}

// Record folds one validation result into the counters.
func (m *Metrics) Record(result *ValidationResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot.Validated++
	if result.Valid {
		m.snapshot.Accepted++
	} else {
		m.snapshot.Rejected++
	}

	for _, c := range result.Checks {
		if !c.Passed {
			m.snapshot.FailuresByCheck[c.Name]++
		}
	}

	switch {
	case result.Score < 25:
		m.snapshot.Scores.Bucket0to25++
	case result.Score < 50:
		m.snapshot.Scores.Bucket25to50++
	case result.Score < 75:
		m.snapshot.Scores.Bucket50to75++
	default:
		m.snapshot.Scores.Bucket75to100++
	}
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.snapshot
	out.FailuresByCheck = make(map[string]int, len(m.snapshot.FailuresByCheck))
	for k, v := range m.snapshot.FailuresByCheck {
		out.FailuresByCheck[k] = v
	}
	return out
}
