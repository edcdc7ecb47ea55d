package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lankyjo/coast/internal/ai"
	"github.com/lankyjo/coast/internal/apperr"
)

// envelope is the body of every /api response.
type envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data"`
	Error   string              `json:"error,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindUnauthorized: http.StatusUnauthorized,
	apperr.KindForbidden:    http.StatusForbidden,
	apperr.KindNotFound:     http.StatusNotFound,
	apperr.KindValidation:   http.StatusBadRequest,
	apperr.KindConflict:     http.StatusConflict,
}

// fail writes err as an error envelope. Application errors keep their
// message; anything else is logged and reported as "Failed to <action>".
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		if aiErr.Err != nil {
			h.logger.Warn("ai request failed", "action", action, "err", aiErr.Err)
		}
		writeJSON(w, http.StatusBadGateway, envelope{Error: aiErr.Message})
		return
	}
	if e, ok := apperr.As(err); ok {
		status, found := statusByKind[e.Kind]
		if !found {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, envelope{Error: e.Message, Details: e.Details})
		return
	}
	h.logger.Error("error handling request", "action", action, "method", r.Method, "path", r.URL.Path, "err", err)
	writeJSON(w, http.StatusInternalServerError, envelope{Error: "Failed to " + action})
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("body", "invalid JSON")
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(key, "must be a non-negative integer")
	}
	return n, nil
}

// queryDay parses a YYYY-MM-DD query parameter. Missing values give the
// zero time.
func queryDay(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, apperr.Invalid(key, "must be a date (YYYY-MM-DD)")
	}
	return t, nil
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
