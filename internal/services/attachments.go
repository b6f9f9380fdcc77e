package services

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/esurat/apiserver/internal/metrics"
	"github.com/esurat/apiserver/internal/storage"
	"github.com/esurat/apiserver/types"
)

const (
	DefaultMaxUploadBytes = 10 << 20

	msgUploadType     = "Tipe berkas tidak diizinkan"
	msgAttachmentEdit = "Unauthorized to delete this attachment"
)

var (
	allowedExtensions = []string{"jpg", "jpeg", "png", "webp", "pdf", "doc", "docx", "xls", "xlsx"}

	blockedMIMETypes = []string{
		"application/x-msdownload",
		"application/x-msdos-program",
		"application/x-dosexec",
		"application/x-executable",
		"application/vnd.microsoft.portable-executable",
	}

	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// AttachmentRepository defines persistence operations for attachment rows.
type AttachmentRepository interface {
	Create(ctx context.Context, a types.Attachment) (types.Attachment, error)
	Get(ctx context.Context, id int64) (types.Attachment, error)
	Delete(ctx context.Context, id int64) error
	ListByDocument(ctx context.Context, token, noSurat string) ([]types.Attachment, error)
}

// BlobStore stores uploaded bytes under a key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// UploadInput is a multipart file plus its form fields. Header is the
// client-declared content type.
type UploadInput struct {
	Filename string
	Header   string
	Data     []byte
	NoSurat  string
	TglSurat types.Date
}

// AttachmentService validates, stores and indexes uploaded files.
type AttachmentService struct {
	repo     AttachmentRepository
	docs     DocumentRepository
	blobs    BlobStore
	activity *ActivityService
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
	uniqueID func() string

	maxBytes int64
	reencode bool
}

func NewAttachmentService(repo AttachmentRepository, docs DocumentRepository, blobs BlobStore, activity *ActivityService, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentService{
		repo:     repo,
		docs:     docs,
		blobs:    blobs,
		activity: activity,
		logger:   logger,
		now:      time.Now,
		uniqueID: shortID,
		maxBytes: DefaultMaxUploadBytes,
		reencode: true,
	}
}

// shortID keeps every stored object key unique, so an object under
// lampiran/ is never overwritten.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *AttachmentService) WithMetrics(m *metrics.Metrics) *AttachmentService {
	s.metrics = m
	return s
}

// WithLimits overrides the size cap and image re-encoding.
func (s *AttachmentService) WithLimits(maxBytes int64, reencode bool) *AttachmentService {
	if maxBytes > 0 {
		s.maxBytes = maxBytes
	}
	s.reencode = reencode
	return s
}

// Upload stores a lampiran for a document number. The token groups every
// file a user uploads for the same number and date.
func (s *AttachmentService) Upload(ctx context.Context, actor Actor, in UploadInput) (types.UploadResult, error) {
	verr := &ValidationError{Message: "Validasi gagal"}
	if strings.TrimSpace(in.NoSurat) == "" {
		verr.Add("no_surat", "The no surat field is required.")
	}
	if in.TglSurat.IsZero() {
		verr.Add("tgl_surat", "The tgl surat field is required.")
	}
	ext, mime, err := s.checkFile(in, verr)
	if err != nil {
		s.metrics.Upload("lampiran", false)
		return types.UploadResult{}, err
	}

	uid := actor.User.ID
	now := s.now()
	token := AttachmentToken(uid, in.NoSurat, in.TglSurat)
	sanitized := SanitizeFilename(in.Filename)
	storedName := token + "-" + s.uniqueID() + "-" + sanitized
	key := path.Join(storage.LampiranPrefix, now.Format("2006"), now.Format("01"), strconv.FormatInt(uid, 10), storedName)

	data := s.maybeReencode(ext, in.Data)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mime); err != nil {
		s.metrics.Upload("lampiran", false)
		return types.UploadResult{}, fmt.Errorf("store lampiran: %w", err)
	}

	row, err := s.repo.Create(ctx, types.Attachment{
		NoSurat:       in.NoSurat,
		TokenLampiran: token,
		NamaBerkas:    in.Filename,
		Ukuran:        int64(len(in.Data)),
		Path:          key,
		UserID:        uid,
		CreatedAt:     now,
	})
	if err != nil {
		s.metrics.Upload("lampiran", false)
		s.removeBlob(ctx, key)
		return types.UploadResult{}, err
	}

	s.metrics.Upload("lampiran", true)
	s.logger.Info("lampiran uploaded",
		zap.Int64("user_id", uid),
		zap.String("no_surat", in.NoSurat),
		zap.Int64("id_lampiran", row.ID),
		zap.String("path", key),
	)
	s.activity.record(ctx, actor, types.ActionUploadLampiran, nil, "Uploaded lampiran: "+in.Filename,
		map[string]any{"id_lampiran": row.ID, "no_surat": in.NoSurat, "token_lampiran": token},
	)
	return types.UploadResult{
		ID:            strconv.FormatInt(row.ID, 10),
		StoredName:    storedName,
		TokenLampiran: token,
		Path:          key,
		URL:           s.blobs.URL(key),
	}, nil
}

// UploadTemp stores a file that is not yet tied to a document.
func (s *AttachmentService) UploadTemp(ctx context.Context, actor Actor, in UploadInput) (types.UploadResult, error) {
	ext, mime, err := s.checkFile(in, &ValidationError{Message: "Validasi gagal"})
	if err != nil {
		s.metrics.Upload("temp", false)
		return types.UploadResult{}, err
	}

	now := s.now()
	storedName := s.uniqueID() + "-" + SanitizeFilename(in.Filename)
	key := path.Join(storage.TempPrefix, now.Format("2006"), now.Format("01"), strconv.FormatInt(actor.User.ID, 10), storedName)

	data := s.maybeReencode(ext, in.Data)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mime); err != nil {
		s.metrics.Upload("temp", false)
		return types.UploadResult{}, fmt.Errorf("store temp upload: %w", err)
	}
	s.metrics.Upload("temp", true)

	sum := sha1.Sum([]byte(key))
	s.logger.Info("temp upload",
		zap.Int64("user_id", actor.User.ID),
		zap.String("path", key),
		zap.Int("size", len(in.Data)),
		zap.String("mime", mime),
	)
	return types.UploadResult{
		ID:         hex.EncodeToString(sum[:]),
		StoredName: storedName,
		Path:       key,
		URL:        s.blobs.URL(key),
	}, nil
}

// Delete removes an attachment row, then its blob. A blob that cannot be
// removed is only logged.
func (s *AttachmentService) Delete(ctx context.Context, actor Actor, id int64) error {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	switch actor.User.Role {
	case types.RoleAdmin:
	case types.RolePimpinan, types.RoleUser:
		if row.UserID != actor.User.ID {
			return forbidden(msgAttachmentEdit)
		}
	default:
		return forbidden(msgAttachmentEdit)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeBlob(ctx, row.Path)
	s.activity.record(ctx, actor, types.ActionDeleteLampiran, nil, "Deleted lampiran: "+row.NamaBerkas,
		map[string]any{"id_lampiran": row.ID, "no_surat": row.NoSurat},
	)
	return nil
}

// ListForDocument returns the attachments of a document the actor may view.
func (s *AttachmentService) ListForDocument(ctx context.Context, actor types.User, documentID int64) ([]types.Attachment, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, doc) {
		return nil, forbidden(msgDocumentAccess)
	}
	items, err := s.repo.ListByDocument(ctx, doc.TokenLampiran, doc.NoSurat)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Path != "" {
			items[i].URL = s.blobs.URL(items[i].Path)
		}
	}
	if items == nil {
		items = []types.Attachment{}
	}
	return items, nil
}

// checkFile validates size, extension and sniffed type. Failures are added
// to verr, which is returned when it carries any field.
func (s *AttachmentService) checkFile(in UploadInput, verr *ValidationError) (ext, mime string, err error) {
	ext = strings.TrimPrefix(strings.ToLower(path.Ext(in.Filename)), ".")
	switch {
	case len(in.Data) == 0:
		verr.Add("file", "The file field is required.")
	case int64(len(in.Data)) > s.maxBytes:
		verr.Add("file", fmt.Sprintf("The file field must not be greater than %d kilobytes.", s.maxBytes>>10))
	case !allowedExtension(ext):
		verr.Add("file", "The file field must be a file of type: "+strings.Join(allowedExtensions, ", ")+".")
	}
	if len(verr.Fields) > 0 {
		return "", "", verr
	}

	detected := mimetype.Detect(in.Data)
	mime = detected.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if blockedType(detected, in.Header) {
		verr.Message = msgUploadType
		verr.Add("file", msgUploadType)
		return "", "", verr
	}
	return ext, mime, nil
}

// blockedType matches the sniffed type, including its aliases, and the
// declared header against the executable blocklist.
func blockedType(detected *mimetype.MIME, header string) bool {
	header = strings.ToLower(strings.TrimSpace(header))
	for _, t := range blockedMIMETypes {
		if detected.Is(t) || header == t {
			return true
		}
	}
	return false
}

func allowedExtension(ext string) bool {
	for _, e := range allowedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// maybeReencode recompresses JPEG and PNG images and returns the smaller of
// the two payloads.
func (s *AttachmentService) maybeReencode(ext string, data []byte) []byte {
	if !s.reencode {
		return data
	}
	var buf bytes.Buffer
	switch ext {
	case "jpg", "jpeg":
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return data
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return data
		}
	case "png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return data
		}
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return data
		}
	default:
		return data
	}
	if buf.Len() == 0 || buf.Len() >= len(data) {
		return data
	}
	return buf.Bytes()
}

func (s *AttachmentService) removeBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("remove attachment blob failed", zap.String("path", key), zap.Error(err))
	}
}

// AttachmentToken derives the token_lampiran shared by a user's uploads for
// one document: md5 of "{uid}-{first segment of no_surat}-{YYYY-MM-DD}".
func AttachmentToken(userID int64, noSurat string, tglSurat types.Date) string {
	part1 := strings.SplitN(noSurat, "/", 2)[0]
	sum := md5.Sum([]byte(fmt.Sprintf("%d-%s-%s", userID, part1, tglSurat.String())))
	return hex.EncodeToString(sum[:])
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = "file"
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}
