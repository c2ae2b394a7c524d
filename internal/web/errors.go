package web

// errors.go turns service errors into HTTP responses.
//
// The technical error is logged with the request ID; the client receives
// the mapped user message with its support code. Validation failures also
// carry every recorded violation.

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/calctoken/internal/calculation"
	"github.com/JonMunkholm/calctoken/internal/service"
	"github.com/JonMunkholm/calctoken/internal/store"
	"github.com/JonMunkholm/calctoken/internal/token"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string                  `json:"error"`
	Message string                  `json:"message"`
	Action  string                  `json:"action,omitempty"`
	Code    string                  `json:"code"`
	Errors  []token.ValidationError `json:"errors,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var invalid *token.InvalidError
	var resolution *calculation.ResolutionError
	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateName):
		return http.StatusConflict
	case errors.As(err, &resolution):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrEvaluationFailed):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case strings.HasPrefix(err.Error(), "invalid request"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := s.logError(r, err, status)

	if !wantsJSON(r) {
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var invalid *token.InvalidError
	if errors.As(err, &invalid) {
		resp.Errors = invalid.Errors
	}
	writeJSON(w, status, resp)
}

func (s *Server) logError(r *http.Request, err error, status int) service.UserMessage {
	msg := service.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)
	return msg
}

// wantsJSON reports whether the client should get a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
