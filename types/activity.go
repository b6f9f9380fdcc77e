package types

import (
	"encoding/json"
	"time"
)

// Activity action tags written by the application.
const (
	ActionLogin           = "login"
	ActionLogout          = "logout"
	ActionViewDocument    = "view_document"
	ActionCreateDocument  = "create_document"
	ActionUpdateDocument  = "update_document"
	ActionDeleteDocument  = "delete_document"
	ActionStatusChange    = "status_change"
	ActionMeetingDecision = "meeting_decision"
	ActionCreateIncoming  = "create_surat_masuk"
	ActionUploadLampiran  = "upload_lampiran"
	ActionDeleteLampiran  = "delete_lampiran"
	ActionUsersDropdown   = "users_dropdown"
)

// ActivityHistory is an immutable audit entry.
type ActivityHistory struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	DocumentID  *int64          `json:"document_id"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata"`
	IPAddress   string          `json:"ip_address"`
	UserAgent   string          `json:"user_agent"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	User     *ActivityUser     `json:"user,omitempty"`
	Document *ActivityDocument `json:"document,omitempty"`
}

// ActivityUser is the user summary embedded in history rows.
type ActivityUser struct {
	ID          int64  `json:"id_user"`
	Username    string `json:"username"`
	NamaLengkap string `json:"nama_lengkap"`
}

// ActivityDocument is the document summary embedded in history rows.
type ActivityDocument struct {
	ID      int64  `json:"id_sm"`
	NoSurat string `json:"no_surat"`
	Perihal string `json:"perihal"`
}

// HistoryFilter narrows an activity listing. UserID is the user whose
// history is listed.
type HistoryFilter struct {
	UserID   int64
	Action   string
	DateFrom Date
	DateTo   Date
}
