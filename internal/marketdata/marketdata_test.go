package marketdata

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"trendsignal/internal/model"
)

func TestParseTimeframe(t *testing.T) {
	cases := map[string]time.Duration{
		"1m": time.Minute,
		"5m": 5 * time.Minute,
		"1h": time.Hour,
		"1d": 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseTimeframe(in)
		if err != nil || got != want {
			t.Errorf("ParseTimeframe(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "5", "2m", "1w"} {
		if _, err := ParseTimeframe(bad); err == nil {
			t.Errorf("ParseTimeframe(%q): expected error", bad)
		}
	}
}

func TestUnavailable_Wraps(t *testing.T) {
	err := Unavailable("BTC/USD", "5m", errors.New("timeout"))
	if !errors.Is(err, ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "BTC/USD") || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("missing context in %q", err)
	}
	// Already wrapped errors are passed through unchanged.
	if again := Unavailable("BTC/USD", "5m", err); again != err {
		t.Errorf("double wrap: %v", again)
	}
}

func TestReadCSV_MixedTimestamps(t *testing.T) {
	// ccxt-style unix ms rows and RFC3339 rows, out of order
	in := `timestamp,open,high,low,close,volume
1705309500000,101,103,100,102,7
2024-01-15T09:00:00Z,100,102,99,101,5
`
	s, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(s) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(s))
	}
	// 1705309500000 ms = 2024-01-15T09:05:00Z
	want0 := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	if !s[0].TS.Equal(want0) || !s[1].TS.Equal(want0.Add(5*time.Minute)) {
		t.Errorf("timestamps not sorted/parsed: %v, %v", s[0].TS, s[1].TS)
	}
	if s[1].Close != 102 || s[1].Volume != 7 {
		t.Errorf("unexpected candle: %+v", s[1])
	}
}

func TestReadCSV_Errors(t *testing.T) {
	bad := map[string]string{
		"bad number":    "timestamp,open,high,low,close,volume\n2024-01-15T09:00:00Z,x,1,1,1,1\n",
		"bad timestamp": "timestamp,open,high,low,close,volume\nyesterday,1,1,1,1,1\n",
		"duplicate": "timestamp,open,high,low,close,volume\n" +
			"2024-01-15T09:00:00Z,1,1,1,1,1\n2024-01-15T09:00:00Z,1,1,1,1,1\n",
	}
	for name, in := range bad {
		if _, err := ReadCSV(strings.NewReader(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestWriteCSV_ReadBack(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s := model.Series{
		{TS: t0, Open: 1.5, High: 2.25, Low: 1, Close: 2, Volume: 10},
		{TS: t0.Add(time.Minute), Open: 2, High: 3, Low: 1.75, Close: 2.5, Volume: 0},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, s); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "timestamp,open,high,low,close,volume\n") {
		t.Errorf("unexpected header: %q", buf.String())
	}
	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	for i := range s {
		a, b := got[i], s[i]
		if !a.TS.Equal(b.TS) || a.Open != b.Open || a.High != b.High || a.Low != b.Low || a.Close != b.Close || a.Volume != b.Volume {
			t.Errorf("row %d: got %+v, want %+v", i, a, b)
		}
	}
}
