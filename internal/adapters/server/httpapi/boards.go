package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// handleRegister serves POST `/auth/register`.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	user, err := h.service.RegisterUser(r.Context(), app.RegisterUserInput{Email: req.Email, Name: req.Name, Password: req.Password})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserView(user))
}

// handleLogin serves POST `/auth/login`.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	token, expiresAt, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
		"user":       newUserView(user),
	})
}

// handleListBoards serves GET `/boards`.
func (h *Handler) handleListBoards(w http.ResponseWriter, r *http.Request) {
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))
	boards, err := h.service.ListBoards(r.Context(), userIDFrom(r.Context()), includeArchived)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]boardView, 0, len(boards))
	for _, b := range boards {
		out = append(out, newBoardView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": out})
}

// handleCreateBoard serves POST `/boards`.
func (h *Handler) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req createBoardRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	board, err := h.service.CreateBoard(r.Context(), app.CreateBoardInput{
		OwnerID:     userIDFrom(r.Context()),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBoardView(board))
}

// handleGetBoard serves GET `/boards/{boardID}` with live columns and header stats.
func (h *Handler) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	board, coord, ok := h.boardAccess(w, r, app.AccessRead)
	if !ok {
		return
	}
	stats := coord.Stats()
	writeJSON(w, http.StatusOK, boardDetailView{
		Board:   newBoardView(board),
		Columns: newColumnViews(coord.Columns()),
		Stats: statsView{
			TotalTasks:     stats.TotalTasks,
			CompletedTasks: stats.CompletedTasks,
			PerColumn:      stats.PerColumn,
		},
	})
}

// handleUpdateBoard serves PUT `/boards/{boardID}`.
func (h *Handler) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	var req updateBoardRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	in := app.UpdateBoardInput{
		BoardID:     chi.URLParam(r, "boardID"),
		ActorID:     userIDFrom(r.Context()),
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Settings != nil {
		in.Settings = &domain.BoardSettings{
			Public:        req.Settings.Public,
			AllowComments: req.Settings.AllowComments,
			Theme:         domain.Theme(req.Settings.Theme),
		}
	}
	board, err := h.service.UpdateBoard(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBoardView(board))
}

// handleDeleteBoard serves DELETE `/boards/{boardID}?mode=archive|hard`.
func (h *Handler) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	mode, err := app.ParseDeleteMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if _, err := h.service.Authorize(r.Context(), boardID, userIDFrom(r.Context()), app.AccessAdmin); err != nil {
		writeErrorFrom(w, err)
		return
	}
	// Drain pending saves before the rows go away.
	if err := h.registry.Evict(r.Context(), boardID); err != nil {
		h.logger.Warn("evict before delete failed", "board_id", boardID, "err", err)
	}
	if err := h.service.DeleteBoard(r.Context(), boardID, userIDFrom(r.Context()), mode); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportBoard serves GET `/boards/{boardID}/export`.
func (h *Handler) handleExportBoard(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	_, coord, ok := h.boardAccess(w, r, app.AccessRead)
	if !ok {
		return
	}
	if err := coord.Flush(r.Context()); err != nil {
		writeErrorFrom(w, err)
		return
	}
	includeArchived, _ := strconv.ParseBool(r.URL.Query().Get("include_archived"))
	snap, err := h.service.ExportSnapshot(r.Context(), boardID, includeArchived)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleAddMember serves POST `/boards/{boardID}/members`.
func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	board, err := h.service.AddMember(r.Context(), chi.URLParam(r, "boardID"), userIDFrom(r.Context()), req.Email, role)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBoardView(board))
}

// handleRemoveMember serves DELETE `/boards/{boardID}/members/{userID}`.
func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.RemoveMember(r.Context(), chi.URLParam(r, "boardID"), userIDFrom(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBoardView(board))
}

// handleNotifications serves GET `/boards/{boardID}/notifications?after=<seq>`.
func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.boardAccess(w, r, app.AccessRead); !ok {
		return
	}
	var after uint64
	if raw := normalizeParam(r.URL.Query().Get("after")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "after must be a non-negative integer"})
			return
		}
		after = parsed
	}
	items := h.feeds.For(chi.URLParam(r, "boardID")).Since(after)
	writeJSON(w, http.StatusOK, map[string]any{"notifications": newNotificationViews(items)})
}

// handleActivity serves GET `/boards/{boardID}/activity?limit=<n>`.
func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	_, coord, ok := h.boardAccess(w, r, app.AccessRead)
	if !ok {
		return
	}
	limit := 50
	if raw := normalizeParam(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}
	if err := coord.Flush(r.Context()); err != nil {
		writeErrorFrom(w, err)
		return
	}
	events, err := h.service.ListActivity(r.Context(), coord.BoardID(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": newEventViews(events)})
}

// boardAccess authorizes the caller on the path board and returns its live coordinator.
// On failure it writes the error response and returns ok=false.
func (h *Handler) boardAccess(w http.ResponseWriter, r *http.Request, need app.Access) (domain.Board, *app.Coordinator, bool) {
	boardID := chi.URLParam(r, "boardID")
	board, err := h.service.Authorize(r.Context(), boardID, userIDFrom(r.Context()), need)
	if err != nil {
		writeErrorFrom(w, err)
		return domain.Board{}, nil, false
	}
	coord, err := h.registry.Get(r.Context(), boardID)
	if err != nil {
		writeErrorFrom(w, err)
		return domain.Board{}, nil, false
	}
	return board, coord, true
}
