package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/esurat/apiserver/internal/services"
	"github.com/esurat/apiserver/internal/store"
	"github.com/esurat/apiserver/types"
)

type contextKey string

const (
	contextUserKey  contextKey = "user"
	contextTokenKey contextKey = "token_id"
)

const msgServerError = "Terjadi kesalahan pada server"

// Envelope is the body of every core endpoint response.
type Envelope struct {
	Status    int                 `json:"status"`
	Message   string              `json:"message,omitempty"`
	Data      any                 `json:"data,omitempty"`
	Meta      *types.PageMeta     `json:"meta,omitempty"`
	Errors    map[string][]string `json:"errors,omitempty"`
	Error     string              `json:"error,omitempty"`
	Timestamp string              `json:"timestamp"`
}

// DropdownResponse is the body of the lookup endpoints.
type DropdownResponse struct {
	Success    bool                `json:"success"`
	Message    *string             `json:"message"`
	Data       any                 `json:"data"`
	Pagination *DropdownPagination `json:"pagination,omitempty"`
	Timestamp  string              `json:"timestamp"`
}

type DropdownPagination struct {
	Total int `json:"total"`
	Limit int `json:"limit"`
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Status: status, Message: message, Data: data, Timestamp: timestamp()})
}

func writePage(w http.ResponseWriter, data any, meta types.PageMeta) {
	writeJSON(w, http.StatusOK, Envelope{Status: http.StatusOK, Data: data, Meta: &meta, Timestamp: timestamp()})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Status: status, Message: message, Timestamp: timestamp()})
}

// writeFieldError reports a single invalid request field with 422.
func writeFieldError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, Envelope{
		Status:    http.StatusUnprocessableEntity,
		Message:   "Validasi gagal",
		Errors:    map[string][]string{field: {msg}},
		Timestamp: timestamp(),
	})
}

func writeDropdown(w http.ResponseWriter, status int, message *string, data any) {
	writeJSON(w, status, DropdownResponse{Success: status < 400, Message: message, Data: data, Timestamp: timestamp()})
}

func msgPtr(s string) *string {
	return &s
}

// Errors translates service errors into responses. Unexpected errors are
// logged and, in production, reported without their detail.
type Errors struct {
	Logger     *zap.Logger
	Production bool
}

// write maps err to a status. notFound is the message of store.ErrNotFound
// and fallback the message of unexpected failures.
func (e Errors) write(w http.ResponseWriter, r *http.Request, err error, notFound, fallback string) {
	var verr *services.ValidationError
	var ferr *services.ForbiddenError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, Envelope{
			Status:    http.StatusUnprocessableEntity,
			Message:   verr.Message,
			Errors:    verr.Fields,
			Timestamp: timestamp(),
		})
	case errors.As(err, &ferr):
		writeError(w, http.StatusForbidden, ferr.Message)
	case errors.Is(err, services.ErrAccountBlocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Unauthenticated.")
	case errors.Is(err, services.ErrNotMeeting):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	default:
		e.logger().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		body := Envelope{Status: http.StatusInternalServerError, Message: fallback, Timestamp: timestamp()}
		if !e.Production {
			body.Error = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

func (e Errors) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// dropdownFailure reports an unexpected failure on a dropdown endpoint.
func (e Errors) dropdownFailure(w http.ResponseWriter, r *http.Request, err error) {
	e.logger().Error("dropdown failed", zap.String("path", r.URL.Path), zap.Error(err))
	msg := msgServerError
	if !e.Production {
		msg = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, DropdownResponse{Success: false, Message: &msg, Data: []any{}, Timestamp: timestamp()})
}

func withUser(ctx context.Context, user types.User, tokenID string) context.Context {
	ctx = context.WithValue(ctx, contextUserKey, user)
	return context.WithValue(ctx, contextTokenKey, tokenID)
}

// currentUser returns the user stored by the auth middleware.
func currentUser(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func currentTokenID(ctx context.Context) string {
	id, _ := ctx.Value(contextTokenKey).(string)
	return id
}

// actorFrom builds the service actor of an authenticated request.
func actorFrom(r *http.Request) services.Actor {
	user, _ := currentUser(r.Context())
	return services.Actor{User: user, IP: clientIP(r), UserAgent: r.UserAgent()}
}

// clientIP strips the port from RemoteAddr, which RealIP may already have
// replaced with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

// parsePagination reads page and per_page (or limit). Invalid values fall
// back to the defaults; services apply their own caps.
func parsePagination(r *http.Request) types.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	raw := strings.TrimSpace(q.Get("per_page"))
	if raw == "" {
		raw = strings.TrimSpace(q.Get("limit"))
	}
	perPage, _ := strconv.Atoi(raw)
	return types.Page{Page: page, PerPage: perPage}
}

func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// parseDateParam returns the zero date for an empty or malformed value.
func parseDateParam(r *http.Request, name string) types.Date {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return types.Date{}
	}
	d, err := types.ParseDate(raw)
	if err != nil {
		return types.Date{}
	}
	return d
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(name)))
	return v
}
