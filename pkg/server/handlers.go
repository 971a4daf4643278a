package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mercator-hq/quotaguard/pkg/registry"
	"mercator-hq/quotaguard/pkg/telemetry/logging"
	"mercator-hq/quotaguard/pkg/throttle"
	"mercator-hq/quotaguard/pkg/throttle/storage"
)

// errorResponse is the body of every non-2xx response from the usage API.
//
//	{"error": {"code": "unknown_service", "message": "unknown service type: ocr"}}
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// usageList is returned by GET /v1/usage.
type usageList struct {
	Services []throttle.Snapshot `json:"services"`
}

// historyResponse is returned by GET /v1/usage/{service}/history.
type historyResponse struct {
	ServiceType string                     `json:"service_type"`
	From        string                     `json:"from"`
	To          string                     `json:"to"`
	Total       int64                      `json:"total"`
	Days        []storage.DailyUsageRecord `json:"days"`
}

// flushResponse is returned by POST /v1/usage/flush.
type flushResponse struct {
	Flushed  bool                `json:"flushed"`
	Services []throttle.Snapshot `json:"services"`
}

func (s *Server) handleListUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, usageList{Services: s.opts.Usage.Snapshots()})
}

func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	th, err := s.opts.Usage.Get(r.PathValue("service"))
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, th.Usage())
}

// handleHistory lists durable daily records. from and to are inclusive
// YYYY-MM-DD dates; they default to the first day of the current month and
// today.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	serviceType := r.PathValue("service")

	now := s.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now

	query := r.URL.Query()
	if v := query.Get("from"); v != "" {
		parsed, err := time.Parse(storage.DateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_parameter",
				fmt.Sprintf("from must be a date in %s form", storage.DateLayout))
			return
		}
		from = parsed
	}
	if v := query.Get("to"); v != "" {
		parsed, err := time.Parse(storage.DateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_parameter",
				fmt.Sprintf("to must be a date in %s form", storage.DateLayout))
			return
		}
		to = parsed
	}
	if storage.DateKey(to) < storage.DateKey(from) {
		writeError(w, http.StatusBadRequest, "invalid_parameter", "from must not be after to")
		return
	}

	records, err := s.opts.Usage.History(r.Context(), serviceType, from, to)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}

	resp := historyResponse{
		ServiceType: serviceType,
		From:        storage.DateKey(from),
		To:          storage.DateKey(to),
		Days:        records,
	}
	for _, rec := range records {
		resp.Total += rec.Count
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Usage.FlushAll(r.Context()); err != nil {
		logging.FromContext(r.Context(), s.logger).Error("usage flush failed", "error", err)
		writeError(w, http.StatusBadGateway, "flush_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, flushResponse{Flushed: true, Services: s.opts.Usage.Snapshots()})
}

func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, registry.ErrUnknownService) {
		writeError(w, http.StatusNotFound, "unknown_service", err.Error())
		return
	}
	logging.FromContext(r.Context(), s.logger).Error("usage lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, errorResponse{Error: errorBody{Code: errCode, Message: message}})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
