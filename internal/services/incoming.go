package services

import (
	"context"
	"strings"
	"time"

	"github.com/esurat/apiserver/types"
)

// IncomingLetterInput is the payload of POST /surat-masuk. Identity and
// institution columns are always taken from the actor.
type IncomingLetterInput struct {
	NoSurat    string     `json:"no_surat" validate:"max=50"`
	TglNS      types.Date `json:"tgl_ns"`
	NoAsal     string     `json:"no_asal" validate:"required,max=100"`
	TglNoAsal  types.Date `json:"tgl_no_asal"`
	TglNoAsal2 types.Date `json:"tgl_no_asal2"`
	TglSurat   types.Date `json:"tgl_surat" validate:"required"`
	Pengirim   string     `json:"pengirim" validate:"required,max=255"`
	Penerima   string     `json:"penerima" validate:"required,max=255"`
	Perihal    string     `json:"perihal" validate:"required,min=5"`

	TokenLampiran   string     `json:"token_lampiran" validate:"max=100"`
	TokenLampiranTU string     `json:"token_lampiran_tu" validate:"max=100"`
	Bagian          string     `json:"bagian" validate:"max=100"`
	Disposisi       string     `json:"disposisi"`
	Lampiran        string     `json:"lampiran" validate:"max=255"`
	TglSM           types.Date `json:"tgl_sm"`

	Status string `json:"status" validate:"required,oneof=Dokumen Rapat Selesai"`
	Sifat  string `json:"sifat" validate:"required,oneof=Segera Biasa Rahasia"`

	Dibaca                int        `json:"dibaca"`
	KodeUserPimpinan      string     `json:"kode_user_pimpinan" validate:"max=100"`
	IDUserDisposisiLeader string     `json:"id_user_disposisi_leader" validate:"max=50"`
	TglAjuan              types.Date `json:"tgl_ajuan"`
	Segera                string     `json:"segera"`
	Biasa                 string     `json:"biasa"`
	Catatan               string     `json:"catatan"`
	StatusTU              int        `json:"status_tu"`
	StatusInstansi        int        `json:"status_instansi"`

	TglAgendaRapat     string `json:"tgl_agenda_rapat" validate:"omitempty,date"`
	JamRapat           string `json:"jam_rapat" validate:"max=20"`
	RuangRapat         string `json:"ruang_rapat" validate:"max=100"`
	BahasanRapat       string `json:"bahasan_rapat"`
	PimpinanRapat      string `json:"pimpinan_rapat" validate:"max=255"`
	PesertaRapat       string `json:"peserta_rapat"`
	TembusanRapat      string `json:"tembusan_rapat"`
	PenandaTanganRapat string `json:"penanda_tangan_rapat" validate:"max=255"`
	DelegasiTU         string `json:"delegasi_tu" validate:"max=100"`

	Ditujukan             string `json:"ditujukan"`
	InstruksiKerja        string `json:"instruksi_kerja"`
	DisposisiMemo         string `json:"disposisi_memo"`
	KategoriBerkas        string `json:"kategori_berkas" validate:"max=100"`
	KategoriUndangan      string `json:"kategori_undangan" validate:"max=100"`
	KategoriLaporan       string `json:"kategori_laporan" validate:"max=100"`
	IDStatusRapat         int    `json:"id_status_rapat"`
	KodeUserDitujukanMemo string `json:"kode_user_ditujukan_memo" validate:"max=100"`
	KategoriSurat         string `json:"kategori_surat" validate:"required,max=100"`
	KlasifikasiSurat      string `json:"klasifikasi_surat" validate:"required,max=100"`
	KodeBerkas            string `json:"kode_berkas" validate:"required,max=30"`
	KategoriKode          string `json:"kategori_kode" validate:"required,max=100"`
	DisposisiKTULeader    string `json:"disposisi_ktu_leader" validate:"max=100"`
}

// CreateIncoming records a surat masuk. An empty no_surat receives the next
// number of the tgl_ns year; a taken one is reported as a validation error.
func (s *DocumentService) CreateIncoming(ctx context.Context, actor Actor, in IncomingLetterInput) (types.Document, error) {
	if err := validateStruct(in); err != nil {
		return types.Document{}, err
	}

	today := types.NewDate(s.now())
	if in.TglNS.IsZero() {
		in.TglNS = today
	}
	if in.TglSM.IsZero() {
		in.TglSM = today
	}
	if in.IDStatusRapat == 0 {
		in.IDStatusRapat = 1
	}

	u := actor.User
	doc := types.Document{
		NoSurat:               strings.TrimSpace(in.NoSurat),
		TglNS:                 in.TglNS,
		NoAsal:                in.NoAsal,
		TglNoAsal:             in.TglNoAsal,
		TglNoAsal2:            in.TglNoAsal2,
		TglSurat:              in.TglSurat,
		Pengirim:              in.Pengirim,
		Penerima:              in.Penerima,
		Perihal:               in.Perihal,
		TokenLampiran:         in.TokenLampiran,
		TokenLampiranTU:       in.TokenLampiranTU,
		Bagian:                in.Bagian,
		Disposisi:             in.Disposisi,
		IDUser:                u.ID,
		KodeUser:              u.KodeUser,
		IDInstansi:            u.Instansi,
		IDUserDisposisiLeader: in.IDUserDisposisiLeader,
		TglSM:                 in.TglSM,
		Lampiran:              in.Lampiran,
		Status:                types.DocumentStatus(in.Status),
		Sifat:                 types.Sensitivity(in.Sifat),
		Dibaca:                in.Dibaca,
		KodeUserPimpinan:      in.KodeUserPimpinan,
		TglAjuan:              dateTime(in.TglAjuan),
		Segera:                in.Segera,
		Biasa:                 in.Biasa,
		Catatan:               in.Catatan,
		StatusTU:              in.StatusTU,
		StatusInstansi:        in.StatusInstansi,
		Ditujukan:             in.Ditujukan,
		InstruksiKerja:        in.InstruksiKerja,
		DisposisiMemo:         in.DisposisiMemo,
		KategoriBerkas:        in.KategoriBerkas,
		KategoriUndangan:      in.KategoriUndangan,
		KategoriLaporan:       in.KategoriLaporan,
		IDStatusRapat:         in.IDStatusRapat,
		KodeUserDitujukanMemo: in.KodeUserDitujukanMemo,
		KategoriSurat:         in.KategoriSurat,
		KlasifikasiSurat:      in.KlasifikasiSurat,
		KodeBerkas:            in.KodeBerkas,
		KategoriKode:          in.KategoriKode,
		DisposisiKTULeader:    in.DisposisiKTULeader,
	}
	doc.AttachPhases(types.MeetingDetails{
		TglAgendaRapat:     in.TglAgendaRapat,
		JamRapat:           in.JamRapat,
		RuangRapat:         in.RuangRapat,
		BahasanRapat:       in.BahasanRapat,
		PimpinanRapat:      in.PimpinanRapat,
		PesertaRapat:       in.PesertaRapat,
		TembusanRapat:      in.TembusanRapat,
		PenandaTanganRapat: in.PenandaTanganRapat,
		DelegasiTU:         in.DelegasiTU,
	}, types.CompletionDetails{})

	created, err := s.repo.CreateNumbered(ctx, doc, incomingNumberWidth)
	if err != nil {
		return types.Document{}, conflictAsValidation(err)
	}
	s.metrics.DocumentWritten("create_incoming")
	s.activity.record(ctx, actor, types.ActionCreateIncoming, docRef(created.ID),
		"Created surat masuk: "+created.NoSurat,
		map[string]string{"no_surat": created.NoSurat, "no_asal": created.NoAsal},
	)
	return created, nil
}

func dateTime(d types.Date) *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
