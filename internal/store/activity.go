package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/esurat/apiserver/types"
)

// ActivityRepository appends and lists activity_history rows. Rows are never
// updated or deleted.
type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Append(ctx context.Context, entry types.ActivityHistory) (types.ActivityHistory, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.UpdatedAt = entry.CreatedAt

	var metadata any
	if len(entry.Metadata) > 0 {
		metadata = []byte(entry.Metadata)
	}

	const query = `
		INSERT INTO activity_history (user_id, document_id, action, description, metadata,
			ip_address, user_agent, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		entry.UserID,
		entry.DocumentID,
		entry.Action,
		entry.Description,
		metadata,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return types.ActivityHistory{}, fmt.Errorf("append activity: %w", err)
	}
	return entry, nil
}

// List returns one page of history, newest first, and the total count.
// DateTo is inclusive of the whole day.
func (r *ActivityRepository) List(ctx context.Context, f types.HistoryFilter, p types.Page) ([]types.ActivityHistory, int, error) {
	b := &whereBuilder{}
	b.add("a.user_id = " + b.arg(f.UserID))
	if f.Action != "" {
		b.add("a.action = " + b.arg(f.Action))
	}
	if !f.DateFrom.IsZero() {
		b.add("a.created_at >= " + b.arg(f.DateFrom.Time))
	}
	if !f.DateTo.IsZero() {
		b.add("a.created_at < " + b.arg(f.DateTo.AddDate(0, 0, 1)))
	}
	where := b.sql()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activity_history a`+where, b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.user_id, a.document_id, a.action, COALESCE(a.description, ''),
			a.metadata, COALESCE(a.ip_address, ''), COALESCE(a.user_agent, ''),
			a.created_at, a.updated_at,
			u.id_user, u.username, u.nama_lengkap,
			d.id_sm, d.no_surat, d.perihal
		FROM activity_history a
		LEFT JOIN users u ON u.id_user = a.user_id
		LEFT JOIN tbl_sm d ON d.id_sm = a.document_id%s
		ORDER BY a.created_at DESC, a.id DESC
		OFFSET %s LIMIT %s`, where, b.arg(p.Offset()), b.arg(p.PerPage))

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	entries := make([]types.ActivityHistory, 0, p.PerPage)
	for rows.Next() {
		var (
			entry      types.ActivityHistory
			documentID sql.NullInt64
			metadata   []byte
			userID     sql.NullInt64
			username   sql.NullString
			userName   sql.NullString
			docID      sql.NullInt64
			noSurat    sql.NullString
			perihal    sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&documentID,
			&entry.Action,
			&entry.Description,
			&metadata,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
			&entry.UpdatedAt,
			&userID,
			&username,
			&userName,
			&docID,
			&noSurat,
			&perihal,
		); err != nil {
			return nil, 0, err
		}
		if documentID.Valid {
			id := documentID.Int64
			entry.DocumentID = &id
		}
		if len(metadata) > 0 {
			entry.Metadata = metadata
		}
		if userID.Valid {
			entry.User = &types.ActivityUser{ID: userID.Int64, Username: username.String, NamaLengkap: userName.String}
		}
		if docID.Valid {
			entry.Document = &types.ActivityDocument{ID: docID.Int64, NoSurat: noSurat.String, Perihal: perihal.String}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
