package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/esurat/apiserver/internal/services"
	"github.com/esurat/apiserver/types"
)

const msgDocumentNotFound = "Document not found"

// DocumentHandler provides HTTP handlers for documents and surat masuk.
type DocumentHandler struct {
	docs        *services.DocumentService
	attachments *services.AttachmentService
	errs        Errors
}

func NewDocumentHandler(docs *services.DocumentService, attachments *services.AttachmentService, errs Errors) *DocumentHandler {
	return &DocumentHandler{docs: docs, attachments: attachments, errs: errs}
}

// DocumentRouter registers document routes on an authenticated router.
func DocumentRouter(r chi.Router, h *DocumentHandler) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/last-no-surat", h.LastNumber)
		r.Route("/{documentID:[0-9]+}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Put("/status", h.UpdateStatus)
			r.Get("/attachments", h.Attachments)
		})
	})
	r.Post("/surat-masuk", h.CreateIncoming)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())
	q := r.URL.Query()
	filter := types.DocumentFilter{
		Status:        types.DocumentStatus(strings.TrimSpace(q.Get("status"))),
		Sifat:         types.Sensitivity(strings.TrimSpace(q.Get("sifat"))),
		Search:        q.Get("search"),
		DateFrom:      parseDateParam(r, "date_from"),
		DateTo:        parseDateParam(r, "date_to"),
		KategoriSurat: strings.TrimSpace(q.Get("kategori_surat")),
	}
	if raw := strings.TrimSpace(q.Get("dibaca")); raw != "" {
		if code, err := strconv.Atoi(raw); err == nil {
			filter.Dibaca = &code
		}
	}

	docs, meta, err := h.docs.List(r.Context(), user, filter, parsePagination(r))
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to list documents")
		return
	}
	writePage(w, docs, meta)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "documentID")
	if err != nil {
		writeError(w, http.StatusNotFound, msgDocumentNotFound)
		return
	}
	doc, err := h.docs.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to load document")
		return
	}
	writeData(w, http.StatusOK, "", doc)
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateDocumentInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := h.docs.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to create document")
		return
	}
	writeData(w, http.StatusCreated, "Document created successfully", doc)
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "documentID")
	if err != nil {
		writeError(w, http.StatusNotFound, msgDocumentNotFound)
		return
	}
	var req services.UpdateDocumentInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := h.docs.Update(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to update document")
		return
	}
	writeData(w, http.StatusOK, "Document updated successfully", doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "documentID")
	if err != nil {
		writeError(w, http.StatusNotFound, msgDocumentNotFound)
		return
	}
	if err := h.docs.Delete(r.Context(), actorFrom(r), id); err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to delete document")
		return
	}
	writeData(w, http.StatusOK, "Document deleted successfully", nil)
}

func (h *DocumentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "documentID")
	if err != nil {
		writeError(w, http.StatusNotFound, msgDocumentNotFound)
		return
	}
	var req services.StatusInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := h.docs.UpdateStatus(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to update document status")
		return
	}
	writeData(w, http.StatusOK, "Document status updated successfully", doc)
}

// LastNumber reports the last and next no_surat of the current year.
func (h *DocumentHandler) LastNumber(w http.ResponseWriter, r *http.Request) {
	info, err := h.docs.NextNumber(r.Context())
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to read last number")
		return
	}
	writeData(w, http.StatusOK, "", info)
}

func (h *DocumentHandler) Attachments(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "documentID")
	if err != nil {
		writeError(w, http.StatusNotFound, msgDocumentNotFound)
		return
	}
	user, _ := currentUser(r.Context())
	items, err := h.attachments.ListForDocument(r.Context(), user, id)
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Failed to list attachments")
		return
	}
	writeData(w, http.StatusOK, "", items)
}

// CreateIncoming records a surat masuk.
func (h *DocumentHandler) CreateIncoming(w http.ResponseWriter, r *http.Request) {
	var req services.IncomingLetterInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := h.docs.CreateIncoming(r.Context(), actorFrom(r), req)
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Gagal membuat surat masuk")
		return
	}
	writeData(w, http.StatusCreated, "Surat masuk berhasil dibuat", doc)
}
