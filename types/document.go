package types

import "time"

// DocumentStatus is the workflow phase of a document.
type DocumentStatus string

// Supported document statuses. Intended flow is Dokumen -> Rapat -> Selesai.
const (
	StatusDokumen DocumentStatus = "Dokumen"
	StatusRapat   DocumentStatus = "Rapat"
	StatusSelesai DocumentStatus = "Selesai"
)

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDokumen, StatusRapat, StatusSelesai:
		return true
	default:
		return false
	}
}

// Sensitivity is the "sifat" of a document.
type Sensitivity string

const (
	SifatSegera  Sensitivity = "Segera"
	SifatBiasa   Sensitivity = "Biasa"
	SifatRahasia Sensitivity = "Rahasia"
)

func (s Sensitivity) Valid() bool {
	switch s {
	case SifatSegera, SifatBiasa, SifatRahasia:
		return true
	default:
		return false
	}
}

// Document is a letter ("surat") tracked by the system. The core record is
// shared by every phase; meeting and completion data hang off the optional
// Meeting and Completion payloads.
type Document struct {
	// ID is the public numeric identifier, assigned in creation order.
	ID int64 `json:"id_sm"`

	// NoSurat is the server-assigned, zero-padded sequential number.
	NoSurat string `json:"no_surat"`
	TglNS   Date   `json:"tgl_ns"`

	// NoAsal is the number printed on the original letter.
	NoAsal     string `json:"no_asal"`
	TglNoAsal  Date   `json:"tgl_no_asal"`
	TglNoAsal2 Date   `json:"tgl_no_asal2"`
	TglSurat   Date   `json:"tgl_surat"`
	Pengirim   string `json:"pengirim"`
	Penerima   string `json:"penerima"`
	Perihal    string `json:"perihal"`

	TokenLampiran   string `json:"token_lampiran"`
	TokenLampiranTU string `json:"token_lampiran_tu"`
	Bagian          string `json:"bagian"`

	// Disposisi is the routing instruction. A document that carries one can
	// no longer be deleted.
	Disposisi string `json:"disposisi"`

	// Ownership.
	IDUser     int64  `json:"id_user"`
	KodeUser   string `json:"kode_user"`
	IDInstansi string `json:"id_instansi"`

	IDUserDisposisiLeader string `json:"id_user_disposisi_leader"`
	TglSM                 Date   `json:"tgl_sm"`
	Lampiran              string `json:"lampiran"`

	Status DocumentStatus `json:"status"`
	Sifat  Sensitivity    `json:"sifat"`

	// Dibaca is a multi-purpose read/status code filtered by numbered codes.
	Dibaca           int    `json:"dibaca"`
	DibacaPimpinan   int    `json:"dibaca_pimpinan"`
	KodeUserPimpinan string `json:"kode_user_pimpinan"`

	TglAjuan         *time.Time `json:"tgl_ajuan"`
	TglAjuanDelegate *time.Time `json:"tgl_ajuan_delegate"`
	Segera           string     `json:"segera"`
	Biasa            string     `json:"biasa"`
	Catatan          string     `json:"catatan"`
	TglDisposisi     *time.Time `json:"tgl_disposisi"`
	CatatanKoreksi   string     `json:"catatan_koreksi"`
	IsNotesPimpinan  int        `json:"is_notes_pimpinan"`
	StatusTU         int        `json:"status_tu"`
	StatusInstansi   int        `json:"status_instansi"`

	Ditujukan             string `json:"ditujukan"`
	InstruksiKerja        string `json:"instruksi_kerja"`
	DisposisiMemo         string `json:"disposisi_memo"`
	KategoriBerkas        string `json:"kategori_berkas"`
	KategoriUndangan      string `json:"kategori_undangan"`
	KategoriLaporan       string `json:"kategori_laporan"`
	IDStatusRapat         int    `json:"id_status_rapat"`
	KodeUserDitujukanMemo string `json:"kode_user_ditujukan_memo"`
	KategoriSurat         string `json:"kategori_surat"`
	KodeBerkas            string `json:"kode_berkas"`
	KlasifikasiSurat      string `json:"klasifikasi_surat"`
	KategoriKode          string `json:"kategori_kode"`
	DisposisiKTULeader    string `json:"disposisi_ktu_leader"`

	Meeting    *MeetingDetails    `json:"meeting,omitempty"`
	Completion *CompletionDetails `json:"completion,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// MeetingDetails holds the columns only meaningful once a document has been
// turned into a meeting agenda.
type MeetingDetails struct {
	TglDelegasiRapat   *time.Time `json:"tgl_delegasi_rapat"`
	TglAgendaRapat     string     `json:"tgl_agenda_rapat"`
	JamRapat           string     `json:"jam_rapat"`
	RuangRapat         string     `json:"ruang_rapat"`
	BahasanRapat       string     `json:"bahasan_rapat"`
	PimpinanRapat      string     `json:"pimpinan_rapat"`
	PesertaRapat       string     `json:"peserta_rapat"`
	TembusanRapat      string     `json:"tembusan_rapat"`
	PenandaTanganRapat string     `json:"penanda_tangan_rapat"`
	DelegasiPimpinan   int        `json:"delegasi_pimpinan"`
	DelegasiTU         string     `json:"delegasi_tu"`

	// DisposisiRapat is the recorded meeting decision.
	DisposisiRapat string     `json:"disposisi_rapat"`
	TglHasilRapat  *time.Time `json:"tgl_hasil_rapat"`
}

// Empty reports whether no meeting column carries a value.
func (m MeetingDetails) Empty() bool {
	return m == MeetingDetails{}
}

// CompletionDetails holds approval data of a finished document.
type CompletionDetails struct {
	KodeUserApproved   string     `json:"kode_user_approved"`
	IDUserApproved     int64      `json:"id_user_approved"`
	IDInstansiApproved string     `json:"id_instansi_approved"`
	TglApproved        *time.Time `json:"tgl_approved"`
}

func (c CompletionDetails) Empty() bool {
	return c == CompletionDetails{}
}

// AttachPhases sets Meeting and Completion from flat column values according
// to the document status. Payloads are kept whenever they carry data, so a
// document moved back in the workflow does not lose recorded values.
func (d *Document) AttachPhases(meeting MeetingDetails, completion CompletionDetails) {
	d.Meeting = nil
	d.Completion = nil
	if d.Status == StatusRapat || d.Status == StatusSelesai || !meeting.Empty() {
		m := meeting
		d.Meeting = &m
	}
	if d.Status == StatusSelesai || !completion.Empty() {
		c := completion
		d.Completion = &c
	}
}

// MeetingOrZero returns the meeting payload, or an empty one.
func (d Document) MeetingOrZero() MeetingDetails {
	if d.Meeting == nil {
		return MeetingDetails{}
	}
	return *d.Meeting
}

// CompletionOrZero returns the completion payload, or an empty one.
func (d Document) CompletionOrZero() CompletionDetails {
	if d.Completion == nil {
		return CompletionDetails{}
	}
	return *d.Completion
}

// DocumentFilter narrows a document listing.
type DocumentFilter struct {
	Status        DocumentStatus
	Sifat         Sensitivity
	Search        string
	DateFrom      Date
	DateTo        Date
	KategoriSurat string

	// Dibaca is the raw read-status code; nil means no filter.
	Dibaca *int
}

// MeetingFilter narrows a meeting listing.
type MeetingFilter struct {
	Search   string
	DateFrom Date
	DateTo   Date
}

// Page describes an offset page request.
type Page struct {
	Page    int
	PerPage int
}

// Offset returns the number of rows skipped before the page.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// PageMeta is the pagination block of list responses.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// NewPageMeta computes the pagination block for total rows.
func NewPageMeta(p Page, total int) PageMeta {
	last := 1
	if p.PerPage > 0 && total > 0 {
		last = (total + p.PerPage - 1) / p.PerPage
	}
	return PageMeta{
		CurrentPage: p.Page,
		PerPage:     p.PerPage,
		Total:       total,
		LastPage:    last,
	}
}
