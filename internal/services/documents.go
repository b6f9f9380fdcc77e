package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/esurat/apiserver/internal/metrics"
	"github.com/esurat/apiserver/internal/store"
	"github.com/esurat/apiserver/types"
)

const (
	defaultDocumentPerPage = 15
	maxDocumentPerPage     = 100

	// documentNumberWidth pads numbers of documents created through the
	// document endpoint; incomingNumberWidth pads surat masuk numbers.
	documentNumberWidth = 5
	incomingNumberWidth = 6

	msgDocumentAccess = "Unauthorized to access this document"
	msgDocumentEdit   = "Unauthorized to update this document or document cannot be edited"
	msgDocumentDelete = "Document cannot be deleted as it has dispositions"
	msgStatusRole     = "Only administrators or leadership can update document status"
	msgStatusAccess   = "Unauthorized to update this document"
)

// DocumentRepository defines persistence operations for documents.
type DocumentRepository interface {
	List(ctx context.Context, v store.Viewer, f types.DocumentFilter, p types.Page) ([]types.Document, int, error)
	ListMeetings(ctx context.Context, v store.Viewer, f types.MeetingFilter, p types.Page) ([]types.Document, int, error)
	Get(ctx context.Context, id int64) (types.Document, error)
	CreateNumbered(ctx context.Context, doc types.Document, width int) (types.Document, error)
	Update(ctx context.Context, doc types.Document) (types.Document, error)
	SoftDelete(ctx context.Context, id int64) error
	MarkRead(ctx context.Context, id int64, pimpinan bool) error
	UpdateStatus(ctx context.Context, id int64, status types.DocumentStatus, disposisi, catatan string, at time.Time) error
	RecordDecision(ctx context.Context, id int64, decision string, decidedAt time.Time, status types.DocumentStatus, catatan string) error
	LastNumber(ctx context.Context, year int) (string, error)
}

// CreateDocumentInput is the payload of POST /documents.
type CreateDocumentInput struct {
	NoAsal           string     `json:"no_asal" validate:"required,max=100"`
	TglSurat         types.Date `json:"tgl_surat" validate:"required,notfuture"`
	Pengirim         string     `json:"pengirim" validate:"required,max=255"`
	Penerima         string     `json:"penerima" validate:"required,max=255"`
	Perihal          string     `json:"perihal" validate:"required,min=10"`
	Sifat            string     `json:"sifat" validate:"required,oneof=Segera Biasa Rahasia"`
	KategoriSurat    string     `json:"kategori_surat" validate:"required,max=100"`
	KlasifikasiSurat string     `json:"klasifikasi_surat" validate:"required,max=100"`
	KategoriKode     string     `json:"kategori_kode" validate:"max=100"`
	KategoriBerkas   string     `json:"kategori_berkas" validate:"max=100"`
	KodeBerkas       string     `json:"kode_berkas" validate:"max=100"`
	Lampiran         string     `json:"lampiran" validate:"max=255"`
	TokenLampiran    string     `json:"token_lampiran" validate:"max=100"`
}

// UpdateDocumentInput is the payload of PUT /documents/{id}. Nil fields are
// left untouched; these are the only columns an update may change.
type UpdateDocumentInput struct {
	NoAsal           *string     `json:"no_asal" validate:"omitempty,max=100"`
	TglSurat         *types.Date `json:"tgl_surat" validate:"omitempty,notfuture"`
	Pengirim         *string     `json:"pengirim" validate:"omitempty,max=255"`
	Penerima         *string     `json:"penerima" validate:"omitempty,max=255"`
	Perihal          *string     `json:"perihal" validate:"omitempty,min=10"`
	Sifat            *string     `json:"sifat" validate:"omitempty,oneof=Segera Biasa Rahasia"`
	KategoriSurat    *string     `json:"kategori_surat" validate:"omitempty,max=100"`
	KlasifikasiSurat *string     `json:"klasifikasi_surat" validate:"omitempty,max=100"`
	KategoriBerkas   *string     `json:"kategori_berkas" validate:"omitempty,max=100"`
	KodeBerkas       *string     `json:"kode_berkas" validate:"omitempty,max=100"`
	Lampiran         *string     `json:"lampiran" validate:"omitempty,max=255"`
	TokenLampiran    *string     `json:"token_lampiran" validate:"omitempty,max=100"`
}

// StatusInput is the payload of PUT /documents/{id}/status.
type StatusInput struct {
	Status    string `json:"status" validate:"required,oneof=Dokumen Rapat Selesai"`
	Disposisi string `json:"disposisi"`
	Catatan   string `json:"catatan"`
}

// NumberInfo reports the last assigned and the next document number.
type NumberInfo struct {
	Year int    `json:"tahun"`
	Last string `json:"last_no_surat"`
	Next string `json:"next_no_surat"`
}

// DocumentService encapsulates document use-cases.
type DocumentService struct {
	repo     DocumentRepository
	activity *ActivityService
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewDocumentService(repo DocumentRepository, activity *ActivityService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, activity: activity, logger: logger, now: time.Now}
}

func (s *DocumentService) WithMetrics(m *metrics.Metrics) *DocumentService {
	s.metrics = m
	return s
}

// List returns the page of documents visible to actor.
func (s *DocumentService) List(ctx context.Context, actor types.User, f types.DocumentFilter, p types.Page) ([]types.Document, types.PageMeta, error) {
	p = normalizePage(p, defaultDocumentPerPage, maxDocumentPerPage)
	docs, total, err := s.repo.List(ctx, viewer(actor), f, p)
	if err != nil {
		return nil, types.PageMeta{}, err
	}
	return docs, types.NewPageMeta(p, total), nil
}

// load fetches a document and applies the view rule.
func (s *DocumentService) load(ctx context.Context, actor types.User, id int64) (types.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Document{}, err
	}
	if !canView(actor, doc) {
		return types.Document{}, forbidden(msgDocumentAccess)
	}
	return doc, nil
}

// Get returns a document, marks it read for the viewer and logs the view.
func (s *DocumentService) Get(ctx context.Context, actor Actor, id int64) (types.Document, error) {
	doc, err := s.load(ctx, actor.User, id)
	if err != nil {
		return types.Document{}, err
	}

	pimpinan := actor.User.Role == types.RolePimpinan
	if err := s.repo.MarkRead(ctx, id, pimpinan); err != nil {
		return types.Document{}, err
	}
	if pimpinan {
		doc.DibacaPimpinan = 1
	} else if doc.Dibaca == 0 {
		doc.Dibaca = 1
	}

	s.activity.record(ctx, actor, types.ActionViewDocument, docRef(doc.ID), "Viewed document: "+doc.NoSurat, nil)
	return doc, nil
}

// Create stores a new document with the next sequential number of the year.
func (s *DocumentService) Create(ctx context.Context, actor Actor, in CreateDocumentInput) (types.Document, error) {
	if err := validateStruct(in); err != nil {
		return types.Document{}, err
	}
	today := types.NewDate(s.now())
	u := actor.User
	doc := types.Document{
		TglNS:            today,
		NoAsal:           strings.TrimSpace(in.NoAsal),
		TglSurat:         in.TglSurat,
		Pengirim:         in.Pengirim,
		Penerima:         in.Penerima,
		Perihal:          in.Perihal,
		Sifat:            types.Sensitivity(in.Sifat),
		KategoriSurat:    in.KategoriSurat,
		KlasifikasiSurat: in.KlasifikasiSurat,
		KategoriKode:     in.KategoriKode,
		KategoriBerkas:   in.KategoriBerkas,
		KodeBerkas:       in.KodeBerkas,
		Lampiran:         in.Lampiran,
		TokenLampiran:    in.TokenLampiran,
		IDUser:           u.ID,
		KodeUser:         u.KodeUser,
		IDInstansi:       u.Instansi,
		TglSM:            today,
		Status:           types.StatusDokumen,
		IDStatusRapat:    1,
	}

	created, err := s.repo.CreateNumbered(ctx, doc, documentNumberWidth)
	if err != nil {
		return types.Document{}, conflictAsValidation(err)
	}
	s.metrics.DocumentWritten("create")
	s.activity.record(ctx, actor, types.ActionCreateDocument, docRef(created.ID), "Created document: "+created.NoSurat, nil)
	return created, nil
}

// Update applies the allow-listed fields of in.
func (s *DocumentService) Update(ctx context.Context, actor Actor, id int64, in UpdateDocumentInput) (types.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Document{}, err
	}
	if !canEdit(actor.User, doc) {
		return types.Document{}, forbidden(msgDocumentEdit)
	}
	if err := validateStruct(in); err != nil {
		return types.Document{}, err
	}

	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&doc.NoAsal, in.NoAsal)
	setString(&doc.Pengirim, in.Pengirim)
	setString(&doc.Penerima, in.Penerima)
	setString(&doc.Perihal, in.Perihal)
	setString(&doc.KategoriSurat, in.KategoriSurat)
	setString(&doc.KlasifikasiSurat, in.KlasifikasiSurat)
	setString(&doc.KategoriBerkas, in.KategoriBerkas)
	setString(&doc.KodeBerkas, in.KodeBerkas)
	setString(&doc.Lampiran, in.Lampiran)
	setString(&doc.TokenLampiran, in.TokenLampiran)
	if in.TglSurat != nil && !in.TglSurat.IsZero() {
		doc.TglSurat = *in.TglSurat
	}
	if in.Sifat != nil {
		doc.Sifat = types.Sensitivity(*in.Sifat)
	}

	updated, err := s.repo.Update(ctx, doc)
	if err != nil {
		return types.Document{}, err
	}
	s.metrics.DocumentWritten("update")
	s.activity.record(ctx, actor, types.ActionUpdateDocument, docRef(updated.ID), "Updated document: "+updated.NoSurat, nil)
	return updated, nil
}

// Delete soft-deletes a document that carries no disposition.
func (s *DocumentService) Delete(ctx context.Context, actor Actor, id int64) error {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(actor.User, doc) {
		return forbidden(msgDocumentEdit)
	}
	if strings.TrimSpace(doc.Disposisi) != "" {
		return forbidden(msgDocumentDelete)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.metrics.DocumentWritten("delete")
	s.activity.record(ctx, actor, types.ActionDeleteDocument, docRef(doc.ID), "Deleted document: "+doc.NoSurat, nil)
	return nil
}

// UpdateStatus moves a document to a new status with its disposition.
func (s *DocumentService) UpdateStatus(ctx context.Context, actor Actor, id int64, in StatusInput) (types.Document, error) {
	switch actor.User.Role {
	case types.RoleAdmin, types.RolePimpinan:
	case types.RoleUser:
		return types.Document{}, forbidden(msgStatusRole)
	default:
		return types.Document{}, forbidden(msgStatusRole)
	}
	if err := validateStruct(in); err != nil {
		return types.Document{}, err
	}

	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Document{}, err
	}
	if !canChangeStatus(actor.User, doc) {
		return types.Document{}, forbidden(msgStatusAccess)
	}

	now := s.now()
	oldStatus := doc.Status
	newStatus := types.DocumentStatus(in.Status)
	if err := s.repo.UpdateStatus(ctx, id, newStatus, in.Disposisi, in.Catatan, now); err != nil {
		return types.Document{}, err
	}
	s.metrics.DocumentWritten("status")
	s.activity.record(ctx, actor, types.ActionStatusChange, docRef(doc.ID),
		fmt.Sprintf("Changed status from %s to %s", oldStatus, newStatus),
		map[string]string{"old_status": string(oldStatus), "new_status": string(newStatus)},
	)
	return s.repo.Get(ctx, id)
}

// NextNumber reports the last and next number for the current year.
func (s *DocumentService) NextNumber(ctx context.Context) (NumberInfo, error) {
	year := s.now().Year()
	last, err := s.repo.LastNumber(ctx, year)
	if err != nil {
		return NumberInfo{}, err
	}
	return NumberInfo{Year: year, Last: last, Next: store.NextNumber(last, documentNumberWidth)}, nil
}

// conflictAsValidation turns a duplicate number into a field error.
func conflictAsValidation(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return newValidationError("no_surat", "The no surat has already been taken.")
	}
	return err
}
