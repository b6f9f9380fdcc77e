package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/esurat/apiserver/types"
)

// numberingLockKey serializes document number assignment across writers.
const numberingLockKey = 7402011

// DocumentRepository handles persistence for documents (tbl_sm).
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// docColumn binds a tbl_sm column to a field of a docRow.
type docColumn struct {
	name string
	ptr  any
	// nullable columns store empty strings as NULL.
	nullable bool
}

// docRow is the flat shape of a tbl_sm row.
type docRow struct {
	doc        types.Document
	meeting    types.MeetingDetails
	completion types.CompletionDetails
	deletedAt  sql.NullTime
}

// writable lists every column the application writes, in a fixed order.
func (r *docRow) writable() []docColumn {
	d, m, c := &r.doc, &r.meeting, &r.completion
	return []docColumn{
		{"no_surat", &d.NoSurat, false},
		{"tgl_ns", &d.TglNS, false},
		{"no_asal", &d.NoAsal, false},
		{"tgl_no_asal", &d.TglNoAsal, false},
		{"tgl_no_asal2", &d.TglNoAsal2, false},
		{"tgl_surat", &d.TglSurat, false},
		{"pengirim", &d.Pengirim, false},
		{"penerima", &d.Penerima, false},
		{"perihal", &d.Perihal, false},
		{"token_lampiran", &d.TokenLampiran, true},
		{"token_lampiran_tu", &d.TokenLampiranTU, true},
		{"bagian", &d.Bagian, true},
		{"disposisi", &d.Disposisi, true},
		{"id_user", &d.IDUser, false},
		{"kode_user", &d.KodeUser, false},
		{"kode_user_approved", &c.KodeUserApproved, true},
		{"id_user_approved", &c.IDUserApproved, false},
		{"id_instansi", &d.IDInstansi, false},
		{"id_instansi_approved", &c.IDInstansiApproved, true},
		{"id_user_disposisi_leader", &d.IDUserDisposisiLeader, true},
		{"tgl_sm", &d.TglSM, false},
		{"lampiran", &d.Lampiran, true},
		{"status", &d.Status, false},
		{"sifat", &d.Sifat, false},
		{"dibaca", &d.Dibaca, false},
		{"dibaca_pimpinan", &d.DibacaPimpinan, false},
		{"kode_user_pimpinan", &d.KodeUserPimpinan, true},
		{"tgl_ajuan", &d.TglAjuan, false},
		{"tgl_ajuan_delegate", &d.TglAjuanDelegate, false},
		{"segera", &d.Segera, true},
		{"biasa", &d.Biasa, true},
		{"catatan", &d.Catatan, true},
		{"tgl_disposisi", &d.TglDisposisi, false},
		{"tgl_approved", &c.TglApproved, false},
		{"catatan_koreksi", &d.CatatanKoreksi, true},
		{"is_notes_pimpinan", &d.IsNotesPimpinan, false},
		{"status_tu", &d.StatusTU, false},
		{"status_instansi", &d.StatusInstansi, false},
		{"tgl_delegasi_rapat", &m.TglDelegasiRapat, false},
		{"tgl_agenda_rapat", &m.TglAgendaRapat, true},
		{"tgl_hasil_rapat", &m.TglHasilRapat, false},
		{"delegasi_pimpinan", &m.DelegasiPimpinan, false},
		{"disposisi_rapat", &m.DisposisiRapat, true},
		{"delegasi_tu", &m.DelegasiTU, true},
		{"ruang_rapat", &m.RuangRapat, true},
		{"penanda_tangan_rapat", &m.PenandaTanganRapat, true},
		{"tembusan_rapat", &m.TembusanRapat, true},
		{"jam_rapat", &m.JamRapat, true},
		{"bahasan_rapat", &m.BahasanRapat, true},
		{"pimpinan_rapat", &m.PimpinanRapat, true},
		{"peserta_rapat", &m.PesertaRapat, true},
		{"ditujukan", &d.Ditujukan, true},
		{"instruksi_kerja", &d.InstruksiKerja, true},
		{"disposisi_memo", &d.DisposisiMemo, true},
		{"kategori_berkas", &d.KategoriBerkas, true},
		{"kategori_undangan", &d.KategoriUndangan, true},
		{"kategori_laporan", &d.KategoriLaporan, true},
		{"id_status_rapat", &d.IDStatusRapat, false},
		{"kode_user_ditujukan_memo", &d.KodeUserDitujukanMemo, true},
		{"kategori_surat", &d.KategoriSurat, false},
		{"kode_berkas", &d.KodeBerkas, false},
		{"klasifikasi_surat", &d.KlasifikasiSurat, false},
		{"kategori_kode", &d.KategoriKode, true},
		{"disposisi_ktu_leader", &d.DisposisiKTULeader, true},
	}
}

// value returns the driver argument for the column.
func (c docColumn) value() any {
	switch p := c.ptr.(type) {
	case *string:
		if c.nullable {
			return nullString(*p)
		}
		return *p
	case *int:
		return *p
	case *int64:
		return *p
	case *types.Date:
		return *p
	case **time.Time:
		return *p
	case *types.DocumentStatus:
		return string(*p)
	case *types.Sensitivity:
		return string(*p)
	default:
		panic(fmt.Sprintf("store: unsupported column type %T for %s", c.ptr, c.name))
	}
}

// selectExpr returns the SELECT expression for the column.
func (c docColumn) selectExpr() string {
	if c.nullable {
		return "COALESCE(" + c.name + ", '')"
	}
	return c.name
}

var documentSelectList = func() string {
	var row docRow
	cols := row.writable()
	exprs := make([]string, 0, len(cols)+4)
	exprs = append(exprs, "id_sm")
	for _, col := range cols {
		exprs = append(exprs, col.selectExpr())
	}
	exprs = append(exprs, "created_at", "updated_at", "deleted_at")
	return strings.Join(exprs, ", ")
}()

func scanDocument(row interface{ Scan(...any) error }) (types.Document, error) {
	var r docRow
	cols := r.writable()
	dest := make([]any, 0, len(cols)+4)
	dest = append(dest, &r.doc.ID)
	for _, col := range cols {
		dest = append(dest, col.ptr)
	}
	dest = append(dest, &r.doc.CreatedAt, &r.doc.UpdatedAt, &r.deletedAt)
	if err := row.Scan(dest...); err != nil {
		return types.Document{}, err
	}
	r.doc.DeletedAt = timePtr(r.deletedAt)
	r.doc.AttachPhases(r.meeting, r.completion)
	return r.doc, nil
}

func newDocRow(doc types.Document) *docRow {
	return &docRow{
		doc:        doc,
		meeting:    doc.MeetingOrZero(),
		completion: doc.CompletionOrZero(),
	}
}

// List returns one page of documents visible to v and the total match count.
// Results are ordered by tgl_surat descending, then id ascending.
func (r *DocumentRepository) List(ctx context.Context, v Viewer, f types.DocumentFilter, p types.Page) ([]types.Document, int, error) {
	b := &whereBuilder{}
	b.add("deleted_at IS NULL")
	b.visibility(v)
	if f.Status != "" {
		b.add("status = " + b.arg(string(f.Status)))
	}
	if f.Sifat != "" {
		b.add("sifat = " + b.arg(string(f.Sifat)))
	}
	b.search(f.Search, "no_surat", "pengirim", "perihal")
	if !f.DateFrom.IsZero() {
		b.add("tgl_surat >= " + b.arg(f.DateFrom))
	}
	if !f.DateTo.IsZero() {
		b.add("tgl_surat <= " + b.arg(f.DateTo))
	}
	if f.KategoriSurat != "" {
		b.add("kategori_surat = " + b.arg(f.KategoriSurat))
	}
	if f.Dibaca != nil {
		b.dibaca(*f.Dibaca, v)
	}
	return r.page(ctx, b, "tgl_surat DESC, id_sm ASC", p)
}

// ListMeetings returns one page of documents in the Rapat phase visible to v,
// newest agenda first.
func (r *DocumentRepository) ListMeetings(ctx context.Context, v Viewer, f types.MeetingFilter, p types.Page) ([]types.Document, int, error) {
	b := &whereBuilder{}
	b.add("deleted_at IS NULL")
	b.add("status = " + b.arg(string(types.StatusRapat)))
	b.visibility(v)
	b.search(f.Search, "no_surat", "perihal", "ruang_rapat")
	if !f.DateFrom.IsZero() {
		b.add("LEFT(tgl_agenda_rapat, 10) >= " + b.arg(f.DateFrom.String()))
	}
	if !f.DateTo.IsZero() {
		b.add("LEFT(tgl_agenda_rapat, 10) <= " + b.arg(f.DateTo.String()))
	}
	return r.page(ctx, b, "tgl_agenda_rapat DESC NULLS LAST, id_sm ASC", p)
}

func (r *DocumentRepository) page(ctx context.Context, b *whereBuilder, order string, p types.Page) ([]types.Document, int, error) {
	where := b.sql()

	var total int
	countQuery := `SELECT COUNT(1) FROM tbl_sm` + where
	if err := r.db.QueryRowContext(ctx, countQuery, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM tbl_sm%s ORDER BY %s OFFSET %s LIMIT %s`,
		documentSelectList, where, order, b.arg(p.Offset()), b.arg(p.PerPage))
	rows, err := r.db.QueryContext(ctx, listQuery, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]types.Document, 0, p.PerPage)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Get returns a live (not soft-deleted) document.
func (r *DocumentRepository) Get(ctx context.Context, id int64) (types.Document, error) {
	query := `SELECT ` + documentSelectList + ` FROM tbl_sm WHERE id_sm = $1 AND deleted_at IS NULL`
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Document{}, ErrNotFound
		}
		return types.Document{}, err
	}
	return doc, nil
}

// CreateNumbered inserts doc inside a transaction that serializes number
// assignment. When doc.NoSurat is empty it receives the next number of the
// tgl_ns year, padded to the previous number's width or width when the year
// has no numbers yet. A duplicate number yields ErrConflict.
func (r *DocumentRepository) CreateNumbered(ctx context.Context, doc types.Document, width int) (types.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Document{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, numberingLockKey); err != nil {
		return types.Document{}, fmt.Errorf("lock numbering: %w", err)
	}

	if strings.TrimSpace(doc.NoSurat) == "" {
		last, err := lastNumber(ctx, tx, doc.TglNS.Year())
		if err != nil {
			return types.Document{}, err
		}
		doc.NoSurat = NextNumber(last, width)
	}

	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	row := newDocRow(doc)
	cols := row.writable()
	names := make([]string, 0, len(cols)+2)
	placeholders := make([]string, 0, len(cols)+2)
	args := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		names = append(names, col.name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, col.value())
	}
	names = append(names, "created_at", "updated_at")
	placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1), fmt.Sprintf("$%d", len(args)+2))
	args = append(args, doc.CreatedAt, doc.UpdatedAt)

	query := fmt.Sprintf(`INSERT INTO tbl_sm (%s) VALUES (%s) RETURNING id_sm`,
		strings.Join(names, ", "), strings.Join(placeholders, ", "))
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&doc.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Document{}, ErrConflict
		}
		return types.Document{}, fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Document{}, err
	}
	doc.AttachPhases(doc.MeetingOrZero(), doc.CompletionOrZero())
	return doc, nil
}

// LastNumber returns the highest numeric no_surat of year, or "" when the
// year has none.
func (r *DocumentRepository) LastNumber(ctx context.Context, year int) (string, error) {
	return lastNumber(ctx, r.db, year)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lastNumber(ctx context.Context, q queryRower, year int) (string, error) {
	const query = `
		SELECT no_surat
		FROM tbl_sm
		WHERE EXTRACT(YEAR FROM tgl_ns) = $1 AND no_surat ~ '^[0-9]+$'
		ORDER BY no_surat::numeric DESC
		LIMIT 1`
	var last string
	if err := q.QueryRowContext(ctx, query, year).Scan(&last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("last document number: %w", err)
	}
	return last, nil
}

// Update overwrites every writable column of doc.
func (r *DocumentRepository) Update(ctx context.Context, doc types.Document) (types.Document, error) {
	doc.UpdatedAt = time.Now()

	row := newDocRow(doc)
	cols := row.writable()
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col.name, i+1))
		args = append(args, col.value())
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, doc.UpdatedAt, doc.ID)

	query := fmt.Sprintf(`UPDATE tbl_sm SET %s WHERE id_sm = $%d AND deleted_at IS NULL`,
		strings.Join(sets, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Document{}, ErrConflict
		}
		return types.Document{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Document{}, err
	}
	doc.AttachPhases(doc.MeetingOrZero(), doc.CompletionOrZero())
	return doc, nil
}

// SoftDelete flags the document as deleted.
func (r *DocumentRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE tbl_sm SET deleted_at = NOW(), updated_at = NOW() WHERE id_sm = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// MarkRead sets dibaca_pimpinan for leadership viewers. For everyone else it
// sets dibaca to 1 only while it is still 0, so workflow codes are kept.
func (r *DocumentRepository) MarkRead(ctx context.Context, id int64, pimpinan bool) error {
	query := `UPDATE tbl_sm SET dibaca = 1 WHERE id_sm = $1 AND dibaca = 0`
	if pimpinan {
		query = `UPDATE tbl_sm SET dibaca_pimpinan = 1 WHERE id_sm = $1`
	}
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// UpdateStatus sets the workflow status together with its disposition and
// note. Empty values clear the columns.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id int64, status types.DocumentStatus, disposisi, catatan string, at time.Time) error {
	const query = `
		UPDATE tbl_sm
		SET status = $2,
			disposisi = $3,
			catatan = $4,
			tgl_disposisi = $5,
			updated_at = $5
		WHERE id_sm = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, string(status), nullString(disposisi), nullString(catatan), at)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// RecordDecision stores a meeting decision and replaces the note. An empty
// status keeps the current one.
func (r *DocumentRepository) RecordDecision(ctx context.Context, id int64, decision string, decidedAt time.Time, status types.DocumentStatus, catatan string) error {
	const query = `
		UPDATE tbl_sm
		SET disposisi_rapat = $2,
			tgl_hasil_rapat = $3,
			status = COALESCE($4, status),
			catatan = $5,
			updated_at = NOW()
		WHERE id_sm = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, decision, decidedAt, nullString(string(status)), nullString(catatan))
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
