package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/esurat/apiserver/internal/services"
	"github.com/esurat/apiserver/types"
)

type HistoryHandler struct {
	activity *services.ActivityService
	errs     Errors
}

func NewHistoryHandler(activity *services.ActivityService, errs Errors) *HistoryHandler {
	return &HistoryHandler{activity: activity, errs: errs}
}

func HistoryRouter(r chi.Router, h *HistoryHandler) {
	r.Get("/history", h.List)
}

// List returns the caller's activity history. user_id is only honoured for
// admins.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	q := r.URL.Query()
	target, _ := strconv.ParseInt(strings.TrimSpace(q.Get("user_id")), 10, 64)
	filter := types.HistoryFilter{
		Action:   strings.TrimSpace(q.Get("action_type")),
		DateFrom: parseDateParam(r, "date_from"),
		DateTo:   parseDateParam(r, "date_to"),
	}
	items, meta, err := h.activity.List(r.Context(), user, target, filter, parsePagination(r))
	if err != nil {
		h.errs.write(w, r, err, "History not found", "Failed to load history")
		return
	}
	writePage(w, items, meta)
}
