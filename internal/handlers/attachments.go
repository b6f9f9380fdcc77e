package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/esurat/apiserver/internal/services"
	"github.com/esurat/apiserver/types"
)

const (
	msgAttachmentNotFound = "Lampiran tidak ditemukan"
	multipartOverhead     = 1 << 20
)

type AttachmentHandler struct {
	attachments *services.AttachmentService
	maxBytes    int64
	errs        Errors
}

func NewAttachmentHandler(attachments *services.AttachmentService, maxBytes int64, errs Errors) *AttachmentHandler {
	if maxBytes <= 0 {
		maxBytes = services.DefaultMaxUploadBytes
	}
	return &AttachmentHandler{attachments: attachments, maxBytes: maxBytes, errs: errs}
}

func AttachmentRouter(r chi.Router, h *AttachmentHandler) {
	r.Post("/attachments", h.Upload)
	r.Delete("/attachments/{attachmentID:[0-9]+}", h.Delete)
	r.Post("/uploads/temp", h.UploadTemp)
}

// Upload stores a lampiran for the letter named by no_surat and tgl_surat.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	in.NoSurat = strings.TrimSpace(r.FormValue("no_surat"))
	if raw := strings.TrimSpace(r.FormValue("tgl_surat")); raw != "" {
		d, err := types.ParseDate(raw)
		if err != nil {
			writeFieldError(w, "tgl_surat", "The tgl_surat field must be a valid date.")
			return
		}
		in.TglSurat = d
	}

	res, err := h.attachments.Upload(r.Context(), actorFrom(r), in)
	if err != nil {
		h.errs.write(w, r, err, msgDocumentNotFound, "Gagal mengunggah lampiran")
		return
	}
	writeData(w, http.StatusCreated, "Lampiran berhasil diunggah", res)
}

func (h *AttachmentHandler) UploadTemp(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	res, err := h.attachments.UploadTemp(r.Context(), actorFrom(r), in)
	if err != nil {
		h.errs.write(w, r, err, msgAttachmentNotFound, "Gagal mengunggah berkas")
		return
	}
	writeData(w, http.StatusCreated, "Berkas terunggah", map[string]string{"id": res.ID, "url": res.URL})
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusNotFound, msgAttachmentNotFound)
		return
	}
	if err := h.attachments.Delete(r.Context(), actorFrom(r), id); err != nil {
		h.errs.write(w, r, err, msgAttachmentNotFound, "Gagal menghapus lampiran")
		return
	}
	writeData(w, http.StatusOK, "Lampiran berhasil dihapus", nil)
}

// readUpload parses the multipart body and reads the "file" part. One byte
// past the limit is read so the service can report oversized files.
func (h *AttachmentHandler) readUpload(w http.ResponseWriter, r *http.Request) (services.UploadInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFieldError(w, "file", "The file is too large.")
			return services.UploadInput{}, false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return services.UploadInput{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeFieldError(w, "file", "The file field is required.")
		return services.UploadInput{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return services.UploadInput{}, false
	}
	return services.UploadInput{
		Filename: header.Filename,
		Header:   header.Header.Get("Content-Type"),
		Data:     data,
	}, true
}
