package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role is the authorization level of a user. Every permission check in the
// application switches over these values.
type Role int

// Supported roles.
const (
	// RoleUser is a regular staff account that only sees its own documents.
	RoleUser Role = iota

	// RoleAdmin administers the documents of one institution.
	RoleAdmin

	// RolePimpinan is institution leadership; it approves documents and
	// records meeting decisions.
	RolePimpinan
)

// ParseRole maps the stored role name to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	case "pimpinan":
		return RolePimpinan, nil
	default:
		return RoleUser, fmt.Errorf("unknown role %q", s)
	}
}

// String returns the role name used in the database and API responses.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	case RolePimpinan:
		return "pimpinan"
	default:
		return "unknown"
	}
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseRole(v)
		*r = parsed
		return err
	case []byte:
		parsed, err := ParseRole(string(v))
		*r = parsed
		return err
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	return r.String(), nil
}

// User represents an account in the system.
// Role and Instansi drive every authorization decision.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id_user"`

	// Username is the unique login name.
	Username string `json:"username"`

	// PasswordHash stores the bcrypt hash of the password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-"`

	// NamaLengkap is the user's full display name.
	NamaLengkap string `json:"nama_lengkap"`

	// Jabatan is the user's position title.
	Jabatan string `json:"jabatan"`

	Role Role `json:"role"`

	// Instansi is the institution code the user belongs to.
	Instansi string `json:"instansi"`

	Email  string `json:"email"`
	Telp   string `json:"telp"`
	Alamat string `json:"alamat"`

	// Level and the level_* columns are organisational ranks used for ordering
	// and routing; they carry no authorization meaning here.
	Level          string `json:"level"`
	LevelPimpinan  string `json:"level_pimpinan"`
	LevelTU        string `json:"level_tu"`
	LevelAdmin     string `json:"level_admin"`
	LevelManajemen string `json:"level_manajemen"`

	// KodeUser is the denormalized user code stamped on documents.
	KodeUser string `json:"kode_user"`

	Status        string     `json:"status"`
	TglDaftar     *time.Time `json:"tgl_daftar,omitempty"`
	TerakhirLogin *time.Time `json:"terakhir_login,omitempty"`
	FCMToken      string     `json:"-"`

	// LoginAttempts counts consecutive failed logins.
	LoginAttempts int        `json:"-"`
	LastAttempt   *time.Time `json:"-"`
	BlockedUntil  *time.Time `json:"-"`
	FailedIP      string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsBlocked reports whether the lockout window is still open at now.
func (u User) IsBlocked(now time.Time) bool {
	return u.BlockedUntil != nil && u.BlockedUntil.After(now)
}

// UserSummary is the identity returned by login and GET /user.
type UserSummary struct {
	ID          int64  `json:"id_user"`
	Username    string `json:"username"`
	NamaLengkap string `json:"nama_lengkap"`
	Email       string `json:"email"`
	Jabatan     string `json:"jabatan"`
	Role        Role   `json:"role"`
	Level       string `json:"level"`
	Instansi    string `json:"instansi"`
	KodeUser    string `json:"kode_user"`
}

// Summary projects the public identity fields of u.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		NamaLengkap: u.NamaLengkap,
		Email:       u.Email,
		Jabatan:     u.Jabatan,
		Role:        u.Role,
		Level:       u.Level,
		Instansi:    u.Instansi,
		KodeUser:    u.KodeUser,
	}
}

// UserOption is a row of the users dropdown.
type UserOption struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	NamaLengkap string `json:"nama_lengkap"`
	Jabatan     string `json:"jabatan"`
}

// AccessToken is a revocable bearer token row. Its ID is the JWT "jti" claim.
type AccessToken struct {
	ID         string     `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
