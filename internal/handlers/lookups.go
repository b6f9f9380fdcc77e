package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/esurat/apiserver/internal/services"
)

type LookupHandler struct {
	lookups *services.LookupService
	errs    Errors
}

func NewLookupHandler(lookups *services.LookupService, errs Errors) *LookupHandler {
	return &LookupHandler{lookups: lookups, errs: errs}
}

// LookupRouter registers the dropdown endpoints. Only tindakan segera is
// public; generalLimit wraps the general dropdown when set.
func LookupRouter(r chi.Router, h *LookupHandler, requireAuth, generalLimit func(http.Handler) http.Handler) {
	r.Get("/tindakan-segera/dropdown", h.ImmediateActions)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/tujuan-disposisi", h.DispositionTargets)
		r.Get("/ruang-rapat/dropdown", h.Rooms)
		r.Get("/instansi/dropdown", h.Institutions)
		r.Get("/dropdown/tipe-surat", h.DocumentTypes)
		r.Get("/users/dropdown", h.Users)
		if generalLimit != nil {
			r.With(generalLimit).Get("/general/dropdown", h.Generic)
		} else {
			r.Get("/general/dropdown", h.Generic)
		}
	})
}

// UserOrIP keys rate limits by authenticated user, falling back to the
// client address.
func UserOrIP(r *http.Request) string {
	if user, ok := currentUser(r.Context()); ok && user.ID > 0 {
		return "user:" + strconv.FormatInt(user.ID, 10)
	}
	return "ip:" + clientIP(r)
}

func (h *LookupHandler) Generic(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	q := r.URL.Query()
	res, err := h.lookups.Generic(r.Context(), user, services.GenericQuery{
		Table:      q.Get("table_name"),
		Search:     q.Get("search"),
		ActiveOnly: isTruthy(q.Get("status")),
		Limit:      queryInt(r, "limit"),
	})
	switch {
	case err == nil:
	case errors.Is(err, services.ErrTableNameRequired), errors.Is(err, services.ErrInvalidTableName):
		writeDropdown(w, http.StatusBadRequest, msgPtr(err.Error()), []any{})
		return
	case errors.Is(err, services.ErrTableNotFound), errors.Is(err, services.ErrTableIncompatible):
		writeDropdown(w, http.StatusNotFound, msgPtr(err.Error()), []any{})
		return
	default:
		h.errs.dropdownFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DropdownResponse{
		Success:    true,
		Data:       res.Items,
		Pagination: &DropdownPagination{Total: res.Total, Limit: res.Limit},
		Timestamp:  timestamp(),
	})
}

func (h *LookupHandler) DispositionTargets(w http.ResponseWriter, r *http.Request) {
	items, err := h.lookups.DispositionTargets(r.Context())
	if err != nil {
		h.errs.dropdownFailure(w, r, err)
		return
	}
	writeDropdown(w, http.StatusOK, msgPtr("Data tujuan disposisi berhasil diambil"), items)
}

func (h *LookupHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	items, err := h.lookups.Rooms(r.Context(), r.URL.Query().Get("search"), queryInt(r, "limit"))
	if err != nil {
		h.errs.dropdownFailure(w, r, err)
		return
	}
	writeDropdown(w, http.StatusOK, msgPtr("Data ruang rapat berhasil diambil"), items)
}

func (h *LookupHandler) Institutions(w http.ResponseWriter, r *http.Request) {
	items, err := h.lookups.Institutions(r.Context())
	if err != nil {
		h.errs.dropdownFailure(w, r, err)
		return
	}
	writeDropdown(w, http.StatusOK, msgPtr("Data instansi berhasil diambil"), items)
}

func (h *LookupHandler) DocumentTypes(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	items, err := h.lookups.DocumentTypes(r.Context(), user, r.URL.Query().Get("search"), queryInt(r, "limit"))
	if err != nil {
		var ferr *services.ForbiddenError
		if errors.As(err, &ferr) {
			writeDropdown(w, http.StatusForbidden, msgPtr(ferr.Message), []any{})
			return
		}
		h.errs.dropdownFailure(w, r, err)
		return
	}
	writeDropdown(w, http.StatusOK, msgPtr("Data tipe surat berhasil diambil"), items)
}

func (h *LookupHandler) ImmediateActions(w http.ResponseWriter, r *http.Request) {
	items, err := h.lookups.ImmediateActions(r.Context(), services.ImmediateActionQuery{
		Search:  r.URL.Query().Get("search"),
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	})
	if err != nil {
		h.errs.dropdownFailure(w, r, err)
		return
	}
	writeDropdown(w, http.StatusOK, msgPtr("Data tindakan segera berhasil diambil"), items)
}

func (h *LookupHandler) Users(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.lookups.UserOptions(r.Context(), actorFrom(r), services.UserOptionsQuery{
		Search:   q.Get("search"),
		KodeUser: q.Get("kode_user"),
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		h.errs.dropdownFailure(w, r, err)
		return
	}
	writeDropdown(w, http.StatusOK, nil, items)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "active", "aktif":
		return true
	}
	return false
}
