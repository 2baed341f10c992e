// Package api serves a read-only JSON view of the bot: the last cycle report
// and the current position of the traded symbol.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"trendsignal/internal/engine"
	"trendsignal/internal/indicator"
	"trendsignal/internal/model"
	"trendsignal/internal/strategy"
)

// ReportSource exposes the most recent cycle report.
type ReportSource interface {
	LastReport() (engine.Report, bool)
}

// ReportDTO is the JSON shape of engine.Report.
type ReportDTO struct {
	CycleID  string              `json:"cycle_id"`
	Candles  int                 `json:"candles"`
	Last     *indicator.Row      `json:"last,omitempty"`
	Position model.PositionState `json:"position"`
	Signals  []strategy.Signal   `json:"signals"`
	Acks     []model.OrderAck    `json:"acks"`
	Failures []FailureDTO        `json:"failures"`
	Skipped  []strategy.Skip     `json:"skipped"`
}

// FailureDTO is a signal whose order submission failed.
type FailureDTO struct {
	Signal strategy.Signal `json:"signal"`
	Error  string          `json:"error"`
}

// NewReportDTO converts an engine report for the wire.
func NewReportDTO(rep engine.Report) ReportDTO {
	dto := ReportDTO{
		CycleID:  rep.CycleID,
		Candles:  rep.Candles,
		Position: rep.Position,
		Signals:  nonNil(rep.Signals),
		Acks:     nonNil(rep.Acks),
		Skipped:  nonNil(rep.Skipped),
		Failures: make([]FailureDTO, 0, len(rep.Failures)),
	}
	if rep.Candles > 0 {
		last := rep.Last
		dto.Last = &last
	}
	for _, f := range rep.Failures {
		dto.Failures = append(dto.Failures, FailureDTO{Signal: f.Signal, Error: f.Err.Error()})
	}
	return dto
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// NewRouter sets up the API routes for symbol.
func NewRouter(reports ReportSource, oracle strategy.PositionOracle, symbol string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/v1/report", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		rep, ok := reports.LastReport()
		if !ok {
			writeError(w, http.StatusNotFound, "no cycle has run yet")
			return
		}
		writeJSON(w, http.StatusOK, NewReportDTO(rep))
	})

	mux.HandleFunc("/api/v1/position", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		pos, err := oracle.CurrentPosition(ctx, symbol)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, pos)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
