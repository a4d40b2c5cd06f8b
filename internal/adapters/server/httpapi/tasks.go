package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/evanschultz/kanboard/internal/app"
	"github.com/evanschultz/kanboard/internal/domain"
)

// handleListColumns serves GET `/boards/{boardID}/columns`.
func (h *Handler) handleListColumns(w http.ResponseWriter, r *http.Request) {
	_, coord, ok := h.boardAccess(w, r, app.AccessRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": newColumnViews(coord.Columns())})
}

// handleCreateColumn serves POST `/boards/{boardID}/columns`.
func (h *Handler) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var req createColumnRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if _, _, ok := h.boardAccess(w, r, app.AccessAdmin); !ok {
		return
	}
	boardID := chi.URLParam(r, "boardID")
	column, err := h.service.CreateColumn(r.Context(), app.CreateColumnInput{
		BoardID:   boardID,
		ID:        req.ID,
		Title:     req.Title,
		Color:     domain.Color(req.Color),
		TaskLimit: req.TaskLimit,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	h.refreshColumns(r, boardID)
	writeJSON(w, http.StatusCreated, newColumnViews([]domain.Column{column})[0])
}

// handleUpdateColumn serves PUT `/boards/{boardID}/columns/{columnID}`.
func (h *Handler) handleUpdateColumn(w http.ResponseWriter, r *http.Request) {
	var req updateColumnRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if _, _, ok := h.boardAccess(w, r, app.AccessAdmin); !ok {
		return
	}
	boardID := chi.URLParam(r, "boardID")
	in := app.UpdateColumnInput{
		BoardID:   boardID,
		ColumnID:  chi.URLParam(r, "columnID"),
		Title:     req.Title,
		TaskLimit: req.TaskLimit,
	}
	if req.Color != nil {
		color := domain.Color(*req.Color)
		in.Color = &color
	}
	column, err := h.service.UpdateColumn(r.Context(), in)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	h.refreshColumns(r, boardID)
	writeJSON(w, http.StatusOK, newColumnViews([]domain.Column{column})[0])
}

// handleReorderColumns serves POST `/boards/{boardID}/columns/reorder`.
func (h *Handler) handleReorderColumns(w http.ResponseWriter, r *http.Request) {
	var req reorderColumnsRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if _, _, ok := h.boardAccess(w, r, app.AccessAdmin); !ok {
		return
	}
	boardID := chi.URLParam(r, "boardID")
	columns, err := h.service.ReorderColumns(r.Context(), boardID, req.ColumnIDs)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	h.refreshColumns(r, boardID)
	writeJSON(w, http.StatusOK, map[string]any{"columns": newColumnViews(columns)})
}

// handleArchiveColumn serves DELETE `/boards/{boardID}/columns/{columnID}`.
func (h *Handler) handleArchiveColumn(w http.ResponseWriter, r *http.Request) {
	_, coord, ok := h.boardAccess(w, r, app.AccessAdmin)
	if !ok {
		return
	}
	if err := coord.Flush(r.Context()); err != nil {
		writeErrorFrom(w, err)
		return
	}
	boardID := chi.URLParam(r, "boardID")
	if err := h.service.ArchiveColumn(r.Context(), boardID, chi.URLParam(r, "columnID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	h.refreshColumns(r, boardID)
	w.WriteHeader(http.StatusNoContent)
}

// handleListTasks serves GET `/boards/{boardID}/tasks?column=&q=&priority=&assignee=&due=`.
// Without a column it returns every column's visible tasks keyed by column id.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	_, coord, ok := h.boardAccess(w, r, app.AccessRead)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter, err := filterPayload{
		Search:   query.Get("q"),
		Priority: query.Get("priority"),
		Assignee: normalizeParam(query.Get("assignee")),
		Due:      query.Get("due"),
	}.toDomain()
	if err != nil {
		writeErrorFrom(w, err)
		return
	}

	if column := normalizeParam(query.Get("column")); column != "" {
		if _, found := domain.FindColumn(coord.Columns(), column); !found {
			writeErrorFrom(w, app.ErrUnknownColumn)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"column": column,
			"tasks":  newTaskViews(coord.VisibleTasks(column, filter)),
		})
		return
	}

	byColumn := map[string][]taskView{}
	for _, col := range coord.Columns() {
		byColumn[col.ID] = newTaskViews(coord.VisibleTasks(col.ID, filter))
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": byColumn})
}

// handleAddTask serves POST `/boards/{boardID}/tasks`.
func (h *Handler) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	_, coord, ok := h.boardAccess(w, r, app.AccessWrite)
	if !ok {
		return
	}
	status := normalizeParam(req.Status)
	if status == "" {
		if cols := coord.Columns(); len(cols) > 0 {
			status = cols[0].ID
		}
	}
	task, err := coord.AddTask(r.Context(), app.AddTaskInput{
		Status:      status,
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
		Priority:    domain.Priority(req.Priority),
		DueAt:       req.DueAt,
		Tags:        req.Tags,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTaskView(task))
}

// handleUpdateTask serves PUT `/boards/{boardID}/tasks/{taskID}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	_, coord, ok := h.boardAccess(w, r, app.AccessWrite)
	if !ok {
		return
	}
	task, err := coord.UpdateTask(r.Context(), app.UpdateTaskInput{
		TaskID:      chi.URLParam(r, "taskID"),
		Title:       req.Title,
		Description: req.Description,
		Assignee:    req.Assignee,
		Priority:    domain.Priority(req.Priority),
		DueAt:       req.DueAt,
		Tags:        req.Tags,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskView(task))
}

// handleDeleteTask serves DELETE `/boards/{boardID}/tasks/{taskID}?mode=archive|hard`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	mode, err := app.ParseDeleteMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	_, coord, ok := h.boardAccess(w, r, app.AccessWrite)
	if !ok {
		return
	}
	if err := coord.DeleteTask(r.Context(), chi.URLParam(r, "taskID"), mode); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRestoreTask serves POST `/boards/{boardID}/tasks/{taskID}/restore`.
func (h *Handler) handleRestoreTask(w http.ResponseWriter, r *http.Request) {
	_, coord, ok := h.boardAccess(w, r, app.AccessWrite)
	if !ok {
		return
	}
	task, err := coord.RestoreTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskView(task))
}

// handleMove serves POST `/boards/{boardID}/moves`. Indices in the request address
// the filtered view described by the request's filter.
func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := h.decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	filter, err := req.Filter.toDomain()
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	_, coord, ok := h.boardAccess(w, r, app.AccessWrite)
	if !ok {
		return
	}
	outcome, err := coord.HandleDragEnd(r.Context(), req.toDomain(), filter)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMoveView(outcome))
}

func (h *Handler) refreshColumns(r *http.Request, boardID string) {
	if err := h.registry.RefreshColumns(r.Context(), boardID); err != nil {
		h.logger.Warn("refresh columns failed", "board_id", boardID, "err", err)
	}
}
