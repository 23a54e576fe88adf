package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/services"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

const maxBodyBytes = 5 << 20

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		message = "Something went wrong"
	}

	state := "fail"
	if status >= http.StatusInternalServerError {
		state = "error"
	}
	writeJSON(w, status, envelope{Status: state, Message: message})
}

// classify maps domain errors onto HTTP statuses
func classify(err error) (int, string) {
	message := err.Error()
	var apiErr *services.Error
	if errors.As(err, &apiErr) {
		message = apiErr.Msg
	}

	switch {
	case errors.Is(err, repositories.ErrNotFound):
		if apiErr == nil {
			message = "Resource not found"
		}
		return http.StatusNotFound, message
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, message
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, message
	case errors.Is(err, repositories.ErrAlreadyExists):
		if apiErr == nil {
			message = "Resource already exists"
		}
		return http.StatusConflict, message
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, message
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, message
	}
	return http.StatusInternalServerError, message
}

func badRequest(format string) error {
	return &services.Error{Kind: services.ErrValidation, Msg: format}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return badRequest("Invalid request body: " + err.Error())
	}
	return nil
}

// pageParams reads page and limit; bad values fall back to the defaults
func pageParams(r *http.Request) repositories.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return repositories.Page{Page: page, Limit: limit}
}

func sortParams(r *http.Request) repositories.Sort {
	q := r.URL.Query()
	return repositories.Sort{
		Field: q.Get("sortBy"),
		Desc:  strings.EqualFold(q.Get("sortOrder"), "desc"),
	}
}

func dateRange(r *http.Request) (repositories.DateRange, error) {
	var out repositories.DateRange
	q := r.URL.Query()
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"startDate", &out.From}, {"endDate", &out.To}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			return out, badRequest("Invalid " + p.key + ": " + raw)
		}
		*p.dst = t
	}
	return out, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}

func intParam(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
