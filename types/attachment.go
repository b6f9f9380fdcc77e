package types

import "time"

// Attachment is the metadata row of an uploaded lampiran. It is correlated to
// a document through NoSurat and TokenLampiran, not a foreign key.
type Attachment struct {
	ID            int64     `json:"id"`
	NoSurat       string    `json:"no_surat"`
	TokenLampiran string    `json:"token_lampiran"`
	NamaBerkas    string    `json:"nama_berkas"`
	Ukuran        int64     `json:"ukuran"`
	Path          string    `json:"path"`
	UserID        int64     `json:"id_user"`
	CreatedAt     time.Time `json:"created_at"`

	// URL is filled in by the service from the storage public base URL.
	URL string `json:"url,omitempty"`
}

// UploadResult is returned by attachment and temporary uploads.
type UploadResult struct {
	ID            string `json:"id"`
	StoredName    string `json:"stored_name"`
	TokenLampiran string `json:"token_lampiran,omitempty"`
	Path          string `json:"path"`
	URL           string `json:"url"`
}
