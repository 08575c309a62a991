package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/ec-shop/internal/api/middleware"
	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/auth"
	"github.com/example/ec-shop/internal/logger"
	"github.com/example/ec-shop/internal/validator"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondJSON writes a success envelope around data.
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondError converts err into the failure envelope. Unexpected faults are
// logged with their cause and reach the client as a generic message.
func respondError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	status := apperror.HTTPStatus(err)
	body := envelope{
		Success: false,
		Error:   apperror.Message(err),
		Code:    apperror.Code(err),
	}

	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields()
	}

	reqLogger := logger.FromContext(r.Context(), l)
	if status >= http.StatusInternalServerError {
		reqLogger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	} else {
		reqLogger.DebugContext(r.Context(), "request rejected",
			slog.Int("status", status),
			slog.String("code", body.Code),
			slog.String("error", body.Error),
		)
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return validator.DecodeAndValidate(r, dst)
}

// currentUser returns the authenticated claims. Routes that call it sit
// behind middleware.Authenticate.
func currentUser(r *http.Request) (*auth.Claims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, apperror.Unauthorized("not authorized")
	}
	return claims, nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// respond writes the result of a service call, or its error envelope.
func respond[T any](w http.ResponseWriter, r *http.Request, l *slog.Logger, status int, v T, err error) {
	if err != nil {
		respondError(w, r, l, err)
		return
	}
	respondJSON(w, status, v)
}
