package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/internal/runner"
	"github.com/sells-group/reprice/internal/store"
	"github.com/sells-group/reprice/pkg/shopify"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	base   context.Context
	runner *runner.Runner
	store  store.Store
}

func (h *handlers) mount(r chi.Router) {
	r.Post("/run/preview", h.previewPercent)
	r.Post("/run/backup", h.backupPercent)
	r.Post("/run/apply", h.applyPercent)
	r.Post("/run/rollback", h.rollback)

	r.Get("/chain/preview", h.previewChain)
	r.Post("/chain/backup", h.backupChain)
	r.Post("/chain/apply", h.applyChain)

	r.Post("/sessions", h.startSession)
	r.Get("/sessions/{id}", h.getSession)
	r.Post("/sessions/{id}/backup", h.backupSession)

	r.Get("/backups", h.listBackups)
	r.Get("/backups/{id}", h.getBackup)
	r.Get("/runs", h.listRuns)
	r.Get("/runs/{id}", h.getRun)
}

// pctValue accepts a percentage as a JSON number or numeric string.
// Missing or empty means 0.
type pctValue float64

func (p *pctValue) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.NewValidationError("pct", "must be a number")
	}
	*p = pctValue(f)
	return nil
}

type runRequest struct {
	Pct      pctValue   `json:"pct"`
	BackupID string     `json:"backupId"`
	Mode     model.Mode `json:"mode"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) previewPercent(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	rows, err := h.runner.PreviewPercent(r.Context(), float64(req.Pct))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": nonNil(rows)})
}

func (h *handlers) backupPercent(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := h.runner.BackupPercent(r.Context(), float64(req.Pct))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) applyPercent(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := h.runner.ApplyPercent(h.base, float64(req.Pct), req.BackupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) rollback(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := h.runner.Rollback(h.base, req.BackupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) previewChain(w http.ResponseWriter, r *http.Request) {
	rows, err := h.runner.PreviewChain(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": nonNil(rows)})
}

func (h *handlers) backupChain(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.BackupChain(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) applyChain(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := h.runner.ApplyChain(h.base, req.BackupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	sess, err := h.runner.StartSession(r.Context(), req.Mode, float64(req.Pct))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.runner.Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handlers) backupSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.BackupSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) listBackups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	backups, err := h.store.ListBackups(r.Context(), store.BackupFilter{
		Mode:  model.Mode(q.Get("mode")),
		Limit: limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": nonNil(backups)})
}

func (h *handlers) getBackup(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetBackup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	runs, err := h.store.ListRunLogs(r.Context(), store.RunFilter{
		Kind:     model.RunKind(q.Get("kind")),
		BackupID: q.Get("backupId"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": nonNil(runs)})
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	log, err := h.store.GetRunLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// decodeRequest reads an optional JSON body. An empty body is an empty request.
func decodeRequest(w http.ResponseWriter, r *http.Request) (runRequest, bool) {
	var req runRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			writeError(w, ve)
		} else {
			writeError(w, model.NewValidationError("body", "invalid JSON"))
		}
		return req, false
	}
	return req, true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var fe *shopify.FetchError
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest
	case model.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrRunInProgress):
		return http.StatusConflict
	case errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
