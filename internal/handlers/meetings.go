package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esurat/apiserver/internal/services"
	"github.com/esurat/apiserver/types"
)

type MeetingHandler struct {
	meetings *services.MeetingService
	errs     Errors
}

func NewMeetingHandler(meetings *services.MeetingService, errs Errors) *MeetingHandler {
	return &MeetingHandler{meetings: meetings, errs: errs}
}

func MeetingRouter(r chi.Router, h *MeetingHandler) {
	r.Route("/meetings", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/{meetingID:[0-9]+}/decision", h.RecordDecision)
	})
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	filter := types.MeetingFilter{
		Search:   r.URL.Query().Get("search"),
		DateFrom: parseDateParam(r, "date_from"),
		DateTo:   parseDateParam(r, "date_to"),
	}
	docs, meta, err := h.meetings.List(r.Context(), user, filter, parsePagination(r))
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to list meetings")
		return
	}
	writePage(w, docs, meta)
}

func (h *MeetingHandler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "meetingID")
	if err != nil {
		writeError(w, http.StatusNotFound, msgDocumentNotFound)
		return
	}
	var req services.DecisionInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := h.meetings.RecordDecision(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to record meeting decision")
		return
	}
	writeData(w, http.StatusOK, "Meeting decision recorded successfully", doc)
}
