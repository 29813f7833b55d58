package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"loostaar/adapters/excel"
	"loostaar/app"
	"loostaar/domain/core"
	"loostaar/domain/genotype"
	"loostaar/domain/loo"
	apperrors "loostaar/internal/errors"
	"loostaar/internal/report"
	"loostaar/internal/visualize"
	"loostaar/ports"
)

// maxRunBody caps a POST /api/runs payload
const maxRunBody = 256 << 20

// RunPayload is the body of POST /api/runs
type RunPayload struct {
	Label       string             `json:"label"`
	NullModel   string             `json:"null_model"`
	VariantIDs  []string           `json:"variant_ids"`
	SampleIDs   []string           `json:"sample_ids,omitempty"`
	Genotypes   [][]float64        `json:"genotypes"`
	MAFCutoff   float64            `json:"maf_cutoff,omitempty"`
	Concurrency int                `json:"concurrency,omitempty"`
	Positions   map[string]float64 `json:"positions,omitempty"`
}

func (p RunPayload) request(defaults Config) app.RunRequest {
	variants := make([]core.VariantID, len(p.VariantIDs))
	for i, id := range p.VariantIDs {
		variants[i] = core.VariantID(id)
	}
	m := genotype.NewMatrix(variants, p.Genotypes)
	if len(p.SampleIDs) > 0 {
		samples := make([]core.SampleID, len(p.SampleIDs))
		for i, id := range p.SampleIDs {
			samples[i] = core.SampleID(id)
		}
		m = m.WithSamples(samples)
	}

	req := app.RunRequest{
		Matrix:      m,
		NullModel:   ports.NullModelRef(p.NullModel),
		MAFCutoff:   p.MAFCutoff,
		Concurrency: p.Concurrency,
		Label:       p.Label,
	}
	if req.MAFCutoff == 0 {
		req.MAFCutoff = defaults.MAFCutoff
	}
	if req.Concurrency == 0 {
		req.Concurrency = defaults.Concurrency
	}
	if len(p.Positions) > 0 {
		req.Positions = make(genotype.Positions, len(p.Positions))
		for id, pos := range p.Positions {
			req.Positions[core.VariantID(id)] = pos
		}
	}
	return req
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var payload RunPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRunBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode run: %w", err))
		return
	}

	ctx := r.Context()
	if a.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RunTimeout)
		defer cancel()
	}

	table, err := a.analysis.Analyze(ctx, payload.request(a.config))
	if err != nil && table == nil {
		a.writeAppError(w, err)
		return
	}
	if err != nil {
		// computed but not stored; the caller still gets the result
		a.logger.Warn("run %s not persisted: %v", table.RunID, err)
		w.Header().Set("X-Run-Persisted", "false")
	}
	w.Header().Set("Location", "/api/runs/"+table.RunID.String())
	writeJSON(w, http.StatusCreated, table)
}

func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	runs, err := a.analysis.List(r.Context(), limit, offset)
	if err != nil {
		a.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":   runs,
		"limit":  limit,
		"offset": offset,
	})
}

// loadRun resolves {id}; it writes the error response and returns nil on failure
func (a *App) loadRun(w http.ResponseWriter, r *http.Request) *loo.Table {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil
	}
	table, err := a.analysis.Get(r.Context(), id)
	if err != nil {
		a.writeAppError(w, err)
		return nil
	}
	return table
}

func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if table := a.loadRun(w, r); table != nil {
		writeJSON(w, http.StatusOK, table)
	}
}

func (a *App) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.analysis.Delete(r.Context(), id); err != nil {
		a.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleTableCSV(w http.ResponseWriter, r *http.Request) {
	table := a.loadRun(w, r)
	if table == nil {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table.RunID.String()+".csv"))
	if err := excel.WriteCSV(w, table); err != nil {
		a.logger.Error("write csv for %s: %v", table.RunID, err)
	}
}

func (a *App) handleTableXLSX(w http.ResponseWriter, r *http.Request) {
	table := a.loadRun(w, r)
	if table == nil {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table.RunID.String()+".xlsx"))
	if err := excel.WriteXLSX(w, table); err != nil {
		a.logger.Error("write xlsx for %s: %v", table.RunID, err)
	}
}

func (a *App) handlePlot(w http.ResponseWriter, r *http.Request) {
	table := a.loadRun(w, r)
	if table == nil {
		return
	}

	q := r.URL.Query()
	opts := visualize.Options{Title: q.Get("title")}
	if opts.Title == "" {
		opts.Title = table.Label
	}
	for name, dst := range map[string]**float64{"ymin": &opts.YMin, "ymax": &opts.YMax} {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = &f
		}
	}

	chart, err := visualize.NewPlot(table.Rows, table.Positions, opts)
	if err != nil {
		a.writeAppError(w, err)
		return
	}
	wt, err := chart.WriterTo(800, 400, "svg")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if _, err := wt.WriteTo(w); err != nil {
		a.logger.Error("write plot for %s: %v", table.RunID, err)
	}
}

func (a *App) handleReport(w http.ResponseWriter, r *http.Request) {
	table := a.loadRun(w, r)
	if table == nil {
		return
	}
	top, _ := strconv.Atoi(r.URL.Query().Get("top"))

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(report.Markdown(table, top)))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(report.HTML(table, top))
}

// statusFor maps application error codes to HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrMissingPosition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrAssociationTest):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) writeAppError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed: %v", err)
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  apperrors.GetCode(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
