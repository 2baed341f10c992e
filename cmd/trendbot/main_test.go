package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"trendsignal/internal/indicator"
	"trendsignal/internal/model"
	sqlitestore "trendsignal/internal/store/sqlite"
)

func TestRenderFrame_UndefinedAsDash(t *testing.T) {
	t0 := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s := model.Series{
		{TS: t0, Open: 100, High: 101, Low: 99, Close: 100},
		{TS: t0.Add(5 * time.Minute), Open: 100, High: 102, Low: 99, Close: 101},
		{TS: t0.Add(10 * time.Minute), Open: 101, High: 103, Low: 100, Close: 102},
	}
	f := indicator.Compute(s, indicator.DefaultParams())

	var buf bytes.Buffer
	renderFrame(&buf, f, 2)
	out := buf.String()

	if strings.Contains(out, "09:00") {
		t.Errorf("first row should be cut by --rows 2:\n%s", out)
	}
	if !strings.Contains(out, "09:10") || !strings.Contains(out, "102.0000") {
		t.Errorf("last row missing:\n%s", out)
	}
	// Every windowed indicator is undefined on a 3-candle window.
	if !strings.Contains(out, " - ") {
		t.Errorf("undefined values should print as '-':\n%s", out)
	}
}

func TestImportCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "candles.csv")
	dbPath := filepath.Join(dir, "db", "candles.db")
	body := `timestamp,open,high,low,close,volume
2024-01-15T09:00:00Z,100,102,99,101,5
2024-01-15T09:05:00Z,101,103,100,102,7
`
	if err := os.WriteFile(csvPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	n, err := importCSV(cmd, csvPath, dbPath, "BTC/USD", "5m")
	if err != nil {
		t.Fatalf("importCSV: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported %d, want 2", n)
	}

	r, err := sqlitestore.NewReader(dbPath)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	got, err := r.Fetch(context.Background(), "BTC/USD", "5m", 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 || got[1].Close != 102 {
		t.Errorf("stored = %+v", got)
	}
}

func TestImportCommand_NoVenueKeys(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "candles.csv")
	body := "timestamp,open,high,low,close,volume\n2024-01-15T09:00:00Z,100,102,99,101,5\n"
	if err := os.WriteFile(csvPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APCA_API_KEY_ID", "")
	t.Setenv("APCA_API_SECRET_KEY", "")
	t.Setenv("DATA_SOURCE", "alpaca")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "candles.db"))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"import", "--csv", csvPath})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out.String(), "imported 1") {
		t.Errorf("output = %q", out.String())
	}
}

func TestEnsureDirReportsFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ensureDir(filepath.Join(blocker, "sub", "trades.db")); err == nil {
		t.Error("expected an error when the parent is a regular file")
	}
	if _, err := openArchive(filepath.Join(blocker, "sub", "candles.db")); err == nil {
		t.Error("openArchive should surface the directory error")
	}
	if err := ensureDir("trades.db"); err != nil {
		t.Errorf("bare file name: %v", err)
	}
}
