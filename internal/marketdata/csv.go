package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"ashare-trader/internal/errors"
	"ashare-trader/internal/models"
)

// CSVSource is a BarSource backed by per-symbol CSV files, used for offline
// scans and backtesting data. Files are named <symbol>_<timeframe>.csv and
// hold rows of timestamp,open,high,low,close,volume[,turnover] with an
// optional header. Files are parsed once and cached.
type CSVSource struct {
	dir string

	mu    sync.Mutex
	cache map[string][]models.Candle
}

// NewCSVSource creates a CSV-backed source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{
		dir:   dir,
		cache: make(map[string][]models.Candle),
	}
}

// GetCandles implements BarSource.
func (s *CSVSource) GetCandles(ctx context.Context, symbol string, timeframe models.Timeframe, limit int) ([]models.Candle, error) {
	candles, err := s.load(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]models.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

// GetLastPrice implements BarSource using the daily file's last close.
func (s *CSVSource) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	candles, err := s.load(symbol, models.TimeframeD1)
	if err != nil {
		return 0, err
	}
	if len(candles) == 0 {
		return 0, errors.NewDataError("price", symbol, "empty data file", errors.ErrDataUnavailable)
	}
	return candles[len(candles)-1].Close, nil
}

func (s *CSVSource) load(symbol string, timeframe models.Timeframe) ([]models.Candle, error) {
	key := candleKey(symbol, timeframe)

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[key]; ok {
		return cached, nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", symbol, timeframe))
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError("candles", symbol, fmt.Sprintf("no data file %s", path), errors.ErrDataUnavailable)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewDataError("candles", symbol, "malformed csv", err)
	}

	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := parseRow(symbol, timeframe, row)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, errors.NewDataError("candles", symbol, fmt.Sprintf("row %d: %v", i+1, err), err)
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	s.cache[key] = candles
	return candles, nil
}

func parseRow(symbol string, timeframe models.Timeframe, row []string) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}

	ts, err := parseTimestamp(row[0])
	if err != nil {
		return models.Candle{}, err
	}

	values := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("bad price %q", row[i+1])
		}
		values[i] = v
	}
	volume, err := strconv.ParseInt(row[5], 10, 64)
	if err != nil {
		return models.Candle{}, fmt.Errorf("bad volume %q", row[5])
	}

	candle := models.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    volume,
	}
	if len(row) > 6 {
		if turnover, err := strconv.ParseFloat(row[6], 64); err == nil {
			candle.Turnover = turnover
		}
	}
	return candle, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
