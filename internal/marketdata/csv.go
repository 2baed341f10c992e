package marketdata

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"trendsignal/internal/model"
)

// CsvCandleDTO is one CSV row: timestamp,open,high,low,close,volume.
// The timestamp is RFC3339 or unix milliseconds.
type CsvCandleDTO struct {
	Timestamp string `csv:"timestamp"`
	Open      string `csv:"open"`
	High      string `csv:"high"`
	Low       string `csv:"low"`
	Close     string `csv:"close"`
	Volume    string `csv:"volume"`
}

// ToModel parses the row.
func (dto *CsvCandleDTO) ToModel() (model.Candle, error) {
	ts, err := parseTimestamp(dto.Timestamp)
	if err != nil {
		return model.Candle{}, err
	}
	var c model.Candle
	c.TS = ts
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", dto.Open, &c.Open},
		{"high", dto.High, &c.High},
		{"low", dto.Low, &c.Low},
		{"close", dto.Close, &c.Close},
		{"volume", dto.Volume, &c.Volume},
	}
	for _, f := range fields {
		if f.raw == "" && f.name == "volume" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(f.raw), 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("%s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	return c, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: want RFC3339 or unix ms", raw)
	}
	return ts.UTC(), nil
}

// ReadCSV parses candles from r and returns them sorted by timestamp.
// The result is validated for duplicates and high >= low.
func ReadCSV(r io.Reader) (model.Series, error) {
	var rows []*CsvCandleDTO
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	s := make(model.Series, 0, len(rows))
	for i, row := range rows {
		c, err := row.ToModel()
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", i+1, err)
		}
		s = append(s, c)
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].TS.Before(s[j].TS) })
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteCSV writes s in the format ReadCSV accepts, with RFC3339 timestamps.
func WriteCSV(w io.Writer, s model.Series) error {
	rows := make([]*CsvCandleDTO, len(s))
	for i, c := range s {
		rows[i] = &CsvCandleDTO{
			Timestamp: c.TS.UTC().Format(time.RFC3339),
			Open:      strconv.FormatFloat(c.Open, 'f', -1, 64),
			High:      strconv.FormatFloat(c.High, 'f', -1, 64),
			Low:       strconv.FormatFloat(c.Low, 'f', -1, 64),
			Close:     strconv.FormatFloat(c.Close, 'f', -1, 64),
			Volume:    strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}
	}
	return gocsv.Marshal(&rows, w)
}
