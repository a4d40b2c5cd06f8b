// Package httpapi provides the REST HTTP adapter for board, column, task and move operations.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/auth"
	"github.com/evanschultz/kanboard/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// errInvalidRequest marks malformed or unvalidated request input.
var errInvalidRequest = errors.New("invalid request")

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(userID, email string) (string, time.Time, error)
	Validate(raw string) (auth.Claims, error)
}

// Dependencies are the app-facing collaborators behind the REST surface.
type Dependencies struct {
	Service  *app.Service
	Registry *app.Registry
	Feeds    *app.Feeds
	Tokens   TokenIssuer
	Logger   app.Logger
	Clock    app.Clock
}

// Handler serves the versioned API subrouter.
type Handler struct {
	service  *app.Service
	registry *app.Registry
	feeds    *app.Feeds
	tokens   TokenIssuer
	logger   app.Logger
	clock    app.Clock
	validate *validator.Validate
	router   chi.Router
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler builds the API router. Service, Registry, Feeds and Tokens are required.
func NewHandler(deps Dependencies) (*Handler, error) {
	switch {
	case deps.Service == nil:
		return nil, errors.New("httpapi: service dependency is required")
	case deps.Registry == nil:
		return nil, errors.New("httpapi: registry dependency is required")
	case deps.Feeds == nil:
		return nil, errors.New("httpapi: feeds dependency is required")
	case deps.Tokens == nil:
		return nil, errors.New("httpapi: token issuer dependency is required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	h := &Handler{
		service:  deps.Service,
		registry: deps.Registry,
		feeds:    deps.Feeds,
		tokens:   deps.Tokens,
		logger:   deps.Logger,
		clock:    deps.Clock,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	h.router = h.routes()
	return h, nil
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, APIError{Code: "method_not_allowed", Message: "method not allowed"})
	})

	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/boards", h.handleListBoards)
		r.Post("/boards", h.handleCreateBoard)
		r.Route("/boards/{boardID}", func(r chi.Router) {
			r.Get("/", h.handleGetBoard)
			r.Put("/", h.handleUpdateBoard)
			r.Delete("/", h.handleDeleteBoard)
			r.Get("/export", h.handleExportBoard)

			r.Post("/members", h.handleAddMember)
			r.Delete("/members/{userID}", h.handleRemoveMember)

			r.Get("/columns", h.handleListColumns)
			r.Post("/columns", h.handleCreateColumn)
			r.Post("/columns/reorder", h.handleReorderColumns)
			r.Put("/columns/{columnID}", h.handleUpdateColumn)
			r.Delete("/columns/{columnID}", h.handleArchiveColumn)

			r.Get("/tasks", h.handleListTasks)
			r.Post("/tasks", h.handleAddTask)
			r.Put("/tasks/{taskID}", h.handleUpdateTask)
			r.Delete("/tasks/{taskID}", h.handleDeleteTask)
			r.Post("/tasks/{taskID}/restore", h.handleRestoreTask)

			r.Post("/moves", h.handleMove)
			r.Get("/notifications", h.handleNotifications)
			r.Get("/activity", h.handleActivity)
		})
	})
	return r
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.As(err, &validationErrs):
		fields := make(map[string]any, len(validationErrs))
		for _, fe := range validationErrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "request failed validation",
			Context: fields,
		})
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		writeJSONError(w, http.StatusUnauthorized, APIError{
			Code:    "unauthorized",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, APIError{
			Code:    "forbidden",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, app.ErrEmailTaken),
		errors.Is(err, app.ErrColumnExists),
		errors.Is(err, app.ErrColumnFull),
		errors.Is(err, app.ErrColumnNotEmpty),
		errors.Is(err, app.ErrMoveInFlight),
		errors.Is(err, domain.ErrDragMismatch):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    conflictHint(err),
		})
	case errors.Is(err, app.ErrCoordinatorClosed):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	case isBadRequest(err):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

func conflictHint(err error) string {
	switch {
	case errors.Is(err, domain.ErrDragMismatch):
		return "Reload the board; the dragged task is no longer at the reported position."
	case errors.Is(err, app.ErrMoveInFlight):
		return "Retry once the previous change to this task has been saved."
	default:
		return ""
	}
}

func isBadRequest(err error) bool {
	for _, target := range []error{
		errInvalidRequest,
		app.ErrUnknownColumn,
		app.ErrInvalidDeleteMode,
		domain.ErrIndexOutOfRange,
		domain.ErrInvalidID,
		domain.ErrInvalidName,
		domain.ErrInvalidTitle,
		domain.ErrTitleTooLong,
		domain.ErrDescriptionTooLong,
		domain.ErrTooManyTags,
		domain.ErrInvalidPriority,
		domain.ErrInvalidPosition,
		domain.ErrInvalidColumnID,
		domain.ErrInvalidColor,
		domain.ErrInvalidTaskLimit,
		domain.ErrInvalidRole,
		domain.ErrInvalidTheme,
		domain.ErrInvalidEmail,
		domain.ErrInvalidDueFilter,
		domain.ErrTaskNotInColumn,
		auth.ErrEmptyPassword,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks and
// runs struct validation on the result.
func (h *Handler) decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(errInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", errInvalidRequest)
	}
	if err := h.validate.Struct(out); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// normalizeParam trims one path or query value.
func normalizeParam(raw string) string {
	return strings.TrimSpace(raw)
}
