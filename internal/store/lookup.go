package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/esurat/apiserver/types"
)

// LookupRepository reads the m_* reference tables.
type LookupRepository struct {
	db *sql.DB
}

func NewLookupRepository(db *sql.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

// TableColumns returns the column names of a table in the current schema.
// An unknown table yields an empty slice.
func (r *LookupRepository) TableColumns(ctx context.Context, table string) ([]string, error) {
	const query = `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`
	rows, err := r.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("table columns: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// ListGeneric projects kode, deskripsi and keterangan of table. The table
// and order column must already be validated by the caller; they are quoted
// here but never taken from a bound argument.
func (r *LookupRepository) ListGeneric(ctx context.Context, table, orderBy string, q types.LookupQuery) ([]types.LookupItem, int, error) {
	b := &whereBuilder{}
	b.search(q.Search, "deskripsi")
	if q.ActiveOnly {
		b.add("status = 1")
	}
	if len(q.KodeIn) > 0 {
		b.add("kode = ANY(" + b.arg(pq.Array(q.KodeIn)) + ")")
	}
	if len(q.KodeNotIn) > 0 {
		b.add("NOT (kode = ANY(" + b.arg(pq.Array(q.KodeNotIn)) + "))")
	}
	from := pq.QuoteIdentifier(table) + b.sql()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+from, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, err)
	}

	query := fmt.Sprintf(`
		SELECT kode, deskripsi, COALESCE(keterangan, '')
		FROM %s
		ORDER BY %s ASC
		OFFSET %s LIMIT %s`, from, pq.QuoteIdentifier(orderBy), b.arg(q.Offset), b.arg(q.Limit))
	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	items := make([]types.LookupItem, 0, q.Limit)
	for rows.Next() {
		var item types.LookupItem
		if err := rows.Scan(&item.Kode, &item.Deskripsi, &item.Keterangan); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DispositionTargets returns active m_tujuan_disposisi rows ordered by urut.
func (r *LookupRepository) DispositionTargets(ctx context.Context, limit int) ([]types.DispositionTarget, error) {
	const query = `
		SELECT t.id, t.kode, t.deskripsi, COALESCE(t.keterangan, ''), COALESCE(t.telp, ''),
			t.urut, t.status, COALESCE(u.username, '')
		FROM m_tujuan_disposisi t
		LEFT JOIN users u ON u.id_user = t.id_user
		WHERE t.status = 1
		ORDER BY t.urut ASC, t.id ASC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.DispositionTarget, 0)
	for rows.Next() {
		var t types.DispositionTarget
		if err := rows.Scan(&t.ID, &t.Kode, &t.Deskripsi, &t.Keterangan, &t.Telp, &t.Urut, &t.Status, &t.Username); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (r *LookupRepository) Institutions(ctx context.Context, limit int) ([]types.Institution, error) {
	const query = `
		SELECT id, kode, deskripsi, COALESCE(keterangan, ''), COALESCE(telp, ''), COALESCE(kode_surat, '')
		FROM m_instansi
		ORDER BY id ASC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Institution, 0)
	for rows.Next() {
		var i types.Institution
		if err := rows.Scan(&i.ID, &i.Kode, &i.Deskripsi, &i.Keterangan, &i.Telp, &i.KodeSurat); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// Rooms lists meeting rooms. A non-positive limit returns every match.
func (r *LookupRepository) Rooms(ctx context.Context, search string, limit int) ([]types.Room, error) {
	b := &whereBuilder{}
	b.search(search, "kode", "deskripsi")
	query := `SELECT id, kode, deskripsi, COALESCE(keterangan, ''), COALESCE(telp, '') FROM m_ruang_rapat` +
		b.sql() + ` ORDER BY deskripsi ASC`
	if limit > 0 {
		query += ` LIMIT ` + b.arg(limit)
	}
	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Room, 0)
	for rows.Next() {
		var room types.Room
		if err := rows.Scan(&room.ID, &room.Kode, &room.Deskripsi, &room.Keterangan, &room.Telp); err != nil {
			return nil, err
		}
		items = append(items, room)
	}
	return items, rows.Err()
}

func (r *LookupRepository) DocumentTypes(ctx context.Context, search string) ([]types.DocumentType, error) {
	b := &whereBuilder{}
	b.search(search, "klasifikasi_surat_keluar", "kode")
	query := `SELECT id_tipe_surat, klasifikasi_surat_keluar, kode FROM m_tipe_surat` +
		b.sql() + ` ORDER BY klasifikasi_surat_keluar ASC`
	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.DocumentType, 0)
	for rows.Next() {
		var t types.DocumentType
		if err := rows.Scan(&t.ID, &t.Klasifikasi, &t.Kode); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

// ImmediateActions lists tindakan segera options labelled "kode - deskripsi".
func (r *LookupRepository) ImmediateActions(ctx context.Context, search string, limit, offset int) ([]types.ImmediateAction, error) {
	b := &whereBuilder{}
	b.search(search, "kode", "deskripsi")
	query := fmt.Sprintf(`
		SELECT id, kode, deskripsi, COALESCE(keterangan, '')
		FROM m_tindakan_segera%s
		ORDER BY id ASC
		OFFSET %s LIMIT %s`, b.sql(), b.arg(offset), b.arg(limit))
	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.ImmediateAction, 0)
	for rows.Next() {
		var (
			id        int64
			kode      string
			deskripsi string
			a         types.ImmediateAction
		)
		if err := rows.Scan(&id, &kode, &deskripsi, &a.Keterangan); err != nil {
			return nil, err
		}
		a.Value = fmt.Sprint(id)
		a.Label = strings.TrimSpace(kode + " - " + deskripsi)
		items = append(items, a)
	}
	return items, rows.Err()
}
