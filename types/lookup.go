package types

// LookupItem is the generic projection of a reference table row.
type LookupItem struct {
	Kode       string `json:"kode"`
	Deskripsi  string `json:"deskripsi"`
	Keterangan string `json:"keterangan"`
}

// LookupQuery narrows a reference table listing.
type LookupQuery struct {
	Search string
	// ActiveOnly restricts tables with a status column to status = 1.
	ActiveOnly bool
	Limit      int
	Offset     int
	// KodeIn and KodeNotIn restrict the kode column.
	KodeIn    []string
	KodeNotIn []string
}

// DispositionTarget is a row of m_tujuan_disposisi.
type DispositionTarget struct {
	ID         int64  `json:"id"`
	Kode       string `json:"kode"`
	Deskripsi  string `json:"deskripsi"`
	Keterangan string `json:"keterangan"`
	Telp       string `json:"telp"`
	Urut       int    `json:"urut"`
	Status     int    `json:"status"`
	Username   string `json:"username"`
}

// Institution is a row of m_instansi.
type Institution struct {
	ID         int64  `json:"id"`
	Kode       string `json:"kode"`
	Deskripsi  string `json:"deskripsi"`
	Keterangan string `json:"keterangan"`
	Telp       string `json:"telp"`
	KodeSurat  string `json:"kode_surat"`
}

// Room is a row of m_ruang_rapat.
type Room struct {
	ID         int64  `json:"id"`
	Kode       string `json:"kode"`
	Deskripsi  string `json:"deskripsi"`
	Keterangan string `json:"keterangan"`
	Telp       string `json:"telp"`
}

// DocumentType is a row of m_tipe_surat.
type DocumentType struct {
	ID          int64  `json:"id"`
	Klasifikasi string `json:"klasifikasi"`
	Kode        string `json:"kode"`
}

// ImmediateAction is a tindakan segera option.
type ImmediateAction struct {
	Value      string `json:"value"`
	Label      string `json:"label"`
	Keterangan string `json:"keterangan"`
}
