package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/esurat/apiserver/types"
)

// AttachmentRepository persists tbl_lampiran metadata rows.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

const attachmentColumns = `id, no_surat, token_lampiran, nama_berkas, ukuran, path, id_user, created_at`

func scanAttachment(row interface{ Scan(...any) error }) (types.Attachment, error) {
	var a types.Attachment
	err := row.Scan(&a.ID, &a.NoSurat, &a.TokenLampiran, &a.NamaBerkas, &a.Ukuran, &a.Path, &a.UserID, &a.CreatedAt)
	return a, err
}

func (r *AttachmentRepository) Create(ctx context.Context, a types.Attachment) (types.Attachment, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	const query = `
		INSERT INTO tbl_lampiran (no_surat, token_lampiran, nama_berkas, ukuran, path, id_user, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query, a.NoSurat, a.TokenLampiran, a.NamaBerkas, a.Ukuran, a.Path, a.UserID, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return types.Attachment{}, err
	}
	return a, nil
}

func (r *AttachmentRepository) Get(ctx context.Context, id int64) (types.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM tbl_lampiran WHERE id = $1`
	a, err := scanAttachment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return a, nil
}

func (r *AttachmentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tbl_lampiran WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ListByDocument returns attachments matching either the token or the
// document number, oldest first.
func (r *AttachmentRepository) ListByDocument(ctx context.Context, token, noSurat string) ([]types.Attachment, error) {
	query := `SELECT ` + attachmentColumns + `
		FROM tbl_lampiran
		WHERE ($1 <> '' AND token_lampiran = $1) OR ($2 <> '' AND no_surat = $2)
		ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, token, noSurat)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
