package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/esurat/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id_user, username, password, nama_lengkap, jabatan, role, instansi, email,
	COALESCE(telp, ''), COALESCE(alamat, ''), level, COALESCE(level_pimpinan, ''),
	COALESCE(level_tu, ''), COALESCE(level_admin, ''), level_manajemen, kode_user,
	COALESCE(status, ''), tgl_daftar, terakhir_login, COALESCE(fcm_token, ''),
	login_attempts, last_attempt, blocked_until, COALESCE(failed_ip, ''),
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	var tglDaftar, terakhirLogin, lastAttempt, blockedUntil sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.NamaLengkap,
		&user.Jabatan,
		&user.Role,
		&user.Instansi,
		&user.Email,
		&user.Telp,
		&user.Alamat,
		&user.Level,
		&user.LevelPimpinan,
		&user.LevelTU,
		&user.LevelAdmin,
		&user.LevelManajemen,
		&user.KodeUser,
		&user.Status,
		&tglDaftar,
		&terakhirLogin,
		&user.FCMToken,
		&user.LoginAttempts,
		&lastAttempt,
		&blockedUntil,
		&user.FailedIP,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, err
	}
	user.TglDaftar = timePtr(tglDaftar)
	user.TerakhirLogin = timePtr(terakhirLogin)
	user.LastAttempt = timePtr(lastAttempt)
	user.BlockedUntil = timePtr(blockedUntil)
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id_user = $1 AND deleted_at IS NULL`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 AND deleted_at IS NULL`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.TglDaftar == nil {
		user.TglDaftar = &now
	}

	const query = `
		INSERT INTO users (username, password, nama_lengkap, jabatan, role, instansi, email,
			telp, alamat, level, level_pimpinan, level_tu, level_admin, level_manajemen,
			kode_user, status, tgl_daftar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, NULLIF($11, ''),
			NULLIF($12, ''), NULLIF($13, ''), COALESCE(NULLIF($14, ''), '0'), $15, NULLIF($16, ''), $17, $18, $19)
		RETURNING id_user`
	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.PasswordHash,
		user.NamaLengkap,
		user.Jabatan,
		user.Role,
		user.Instansi,
		user.Email,
		user.Telp,
		user.Alamat,
		user.Level,
		user.LevelPimpinan,
		user.LevelTU,
		user.LevelAdmin,
		user.LevelManajemen,
		user.KodeUser,
		user.Status,
		user.TglDaftar,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// RecordFailedLogin increments the failure counter and, once it reaches
// maxAttempts, opens a lockout window until at+lockout. It returns the new
// attempt count.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id int64, ip string, at time.Time, maxAttempts int, lockout time.Duration) (int, error) {
	const query = `
		UPDATE users
		SET login_attempts = login_attempts + 1,
			last_attempt = $2,
			failed_ip = NULLIF($3, ''),
			blocked_until = CASE WHEN login_attempts + 1 >= $4 THEN $5::timestamptz ELSE blocked_until END,
			updated_at = $2
		WHERE id_user = $1
		RETURNING login_attempts`
	var attempts int
	err := r.db.QueryRowContext(ctx, query, id, at, ip, maxAttempts, at.Add(lockout)).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return attempts, nil
}

// RecordSuccessfulLogin clears the lockout state and stamps the login.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time, fcmToken string) error {
	const query = `
		UPDATE users
		SET login_attempts = 0,
			last_attempt = NULL,
			blocked_until = NULL,
			failed_ip = NULL,
			terakhir_login = $2,
			fcm_token = COALESCE(NULLIF($3, ''), fcm_token),
			updated_at = $2
		WHERE id_user = $1`
	result, err := r.db.ExecContext(ctx, query, id, at, fcmToken)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UserOptionQuery narrows the users dropdown.
type UserOptionQuery struct {
	Search string
	// CodePrefix restricts kode_user to a prefix such as "YS".
	CodePrefix string
	// OrderByLevel sorts by level_pimpinan instead of nama_lengkap.
	OrderByLevel bool
	Limit        int
	Offset       int
}

func (r *UserRepository) ListOptions(ctx context.Context, q UserOptionQuery) ([]types.UserOption, error) {
	b := &whereBuilder{}
	b.add("deleted_at IS NULL")
	b.search(q.Search, "username", "nama_lengkap")
	if q.CodePrefix != "" {
		b.add("kode_user LIKE " + b.arg(escapeLike(q.CodePrefix)+"%"))
	}
	order := "nama_lengkap ASC"
	if q.OrderByLevel {
		order = "level_pimpinan ASC NULLS LAST, nama_lengkap ASC"
	}

	query := fmt.Sprintf(`
		SELECT id_user, username, nama_lengkap, jabatan
		FROM users%s
		ORDER BY %s
		OFFSET %s LIMIT %s`, b.sql(), order, b.arg(q.Offset), b.arg(q.Limit))

	rows, err := r.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := make([]types.UserOption, 0, q.Limit)
	for rows.Next() {
		var opt types.UserOption
		if err := rows.Scan(&opt.ID, &opt.Username, &opt.NamaLengkap, &opt.Jabatan); err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return options, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
