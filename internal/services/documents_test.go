package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esurat/apiserver/internal/store"
	"github.com/esurat/apiserver/types"
)

func newDocumentFixture() (*DocumentService, *fakeDocs, *fakeActivity) {
	docs := newFakeDocs()
	activity := &fakeActivity{}
	svc := NewDocumentService(docs, NewActivityService(activity, nil), nil)
	svc.now = func() time.Time { return time.Date(2026, 5, 20, 8, 0, 0, 0, time.UTC) }
	return svc, docs, activity
}

func ownedBy(u types.User, status types.DocumentStatus) types.Document {
	return types.Document{
		NoSurat:    "00001",
		TglNS:      types.NewDate(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		Perihal:    "Undangan rapat koordinasi",
		IDUser:     u.ID,
		KodeUser:   u.KodeUser,
		IDInstansi: u.Instansi,
		Status:     status,
		Sifat:      types.SifatBiasa,
	}
}

func validCreateInput() CreateDocumentInput {
	return CreateDocumentInput{
		NoAsal:           "045/UND/V/2026",
		TglSurat:         types.NewDate(time.Date(2026, 5, 18, 0, 0, 0, 0, time.UTC)),
		Pengirim:         "Dinas Pendidikan",
		Penerima:         "Kepala Sekolah",
		Perihal:          "Undangan rapat koordinasi",
		Sifat:            "Biasa",
		KategoriSurat:    "Undangan",
		KlasifikasiSurat: "Eksternal",
	}
}

func TestListScopesUsersToTheirOwnDocuments(t *testing.T) {
	svc, docs, _ := newDocumentFixture()
	alice := plainUser(1, "INS-1")
	bob := plainUser(2, "INS-1")
	docs.put(ownedBy(alice, types.StatusDokumen))
	docs.put(ownedBy(bob, types.StatusDokumen))
	docs.put(ownedBy(plainUser(3, "INS-2"), types.StatusDokumen))

	items, meta, err := svc.List(context.Background(), alice, types.DocumentFilter{}, types.Page{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, alice.ID, items[0].IDUser)
	assert.Equal(t, 1, meta.CurrentPage)
	assert.Equal(t, defaultDocumentPerPage, meta.PerPage)

	items, _, err = svc.List(context.Background(), adminOf("INS-1"), types.DocumentFilter{}, types.Page{PerPage: 500})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestGetForbidsUserWhoDidNotCreateTheDocument(t *testing.T) {
	svc, docs, activity := newDocumentFixture()
	doc := docs.put(ownedBy(plainUser(1, "INS-1"), types.StatusDokumen))

	_, err := svc.Get(context.Background(), actorOf(plainUser(2, "INS-1")), doc.ID)
	var ferr *ForbiddenError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "Unauthorized to access this document", ferr.Message)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, activity.actions())
}

func TestGetForbidsAdminOfAnotherInstitution(t *testing.T) {
	svc, docs, _ := newDocumentFixture()
	doc := docs.put(ownedBy(plainUser(1, "INS-1"), types.StatusDokumen))

	_, err := svc.Get(context.Background(), actorOf(adminOf("INS-2")), doc.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Get(context.Background(), actorOf(adminOf("INS-1")), doc.ID)
	assert.NoError(t, err)
}

func TestGetMissingDocument(t *testing.T) {
	svc, _, _ := newDocumentFixture()
	_, err := svc.Get(context.Background(), actorOf(adminOf("INS-1")), 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetMarksReadAndLogsView(t *testing.T) {
	svc, docs, activity := newDocumentFixture()
	owner := plainUser(1, "INS-1")
	doc := docs.put(ownedBy(owner, types.StatusDokumen))

	got, err := svc.Get(context.Background(), actorOf(owner), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Dibaca)
	assert.Zero(t, got.DibacaPimpinan)

	got, err = svc.Get(context.Background(), actorOf(pimpinanOf("INS-1")), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DibacaPimpinan)

	last := activity.last()
	assert.Equal(t, types.ActionViewDocument, last.Action)
	assert.Equal(t, "Viewed document: 00001", last.Description)
	require.NotNil(t, last.DocumentID)
	assert.Equal(t, doc.ID, *last.DocumentID)
}

func TestGetKeepsExistingReadCode(t *testing.T) {
	svc, docs, _ := newDocumentFixture()
	owner := plainUser(1, "INS-1")
	d := ownedBy(owner, types.StatusDokumen)
	d.Dibaca = 7
	doc := docs.put(d)

	got, err := svc.Get(context.Background(), actorOf(owner), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Dibaca)
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	svc, _, activity := newDocumentFixture()
	actor := actorOf(plainUser(1, "INS-1"))

	first, err := svc.Create(context.Background(), actor, validCreateInput())
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), actor, validCreateInput())
	require.NoError(t, err)

	assert.Equal(t, "00001", first.NoSurat)
	assert.Equal(t, "00002", second.NoSurat)
	assert.Equal(t, types.StatusDokumen, first.Status)
	assert.Equal(t, "INS-1", first.IDInstansi)
	assert.Equal(t, int64(1), first.IDUser)
	assert.Equal(t, "2026-05-20", first.TglNS.String())
	assert.Equal(t, []string{types.ActionCreateDocument, types.ActionCreateDocument}, activity.actions())

	info, err := svc.NextNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NumberInfo{Year: 2026, Last: "00002", Next: "00003"}, info)
}

func TestCreateThenGetReturnsSubmittedFields(t *testing.T) {
	svc, _, _ := newDocumentFixture()
	owner := plainUser(1, "INS-1")
	in := validCreateInput()

	created, err := svc.Create(context.Background(), actorOf(owner), in)
	require.NoError(t, err)
	got, err := svc.Get(context.Background(), actorOf(owner), created.ID)
	require.NoError(t, err)

	assert.Equal(t, in.NoAsal, got.NoAsal)
	assert.Equal(t, in.TglSurat, got.TglSurat)
	assert.Equal(t, in.Pengirim, got.Pengirim)
	assert.Equal(t, in.Penerima, got.Penerima)
	assert.Equal(t, in.Perihal, got.Perihal)
	assert.Equal(t, types.Sensitivity(in.Sifat), got.Sifat)
	assert.Equal(t, in.KategoriSurat, got.KategoriSurat)
	assert.Equal(t, in.KlasifikasiSurat, got.KlasifikasiSurat)
	assert.Equal(t, created.NoSurat, got.NoSurat)
}

func TestCreateReportsDuplicateNumberAsValidation(t *testing.T) {
	svc, docs, activity := newDocumentFixture()
	docs.createErr = store.ErrConflict

	_, err := svc.Create(context.Background(), actorOf(plainUser(1, "INS-1")), validCreateInput())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "no_surat")
	assert.Empty(t, activity.actions())
}

func TestCreateValidatesInput(t *testing.T) {
	svc, docs, _ := newDocumentFixture()
	in := validCreateInput()
	in.Perihal = "short"
	in.Sifat = "Penting"
	in.TglSurat = types.NewDate(time.Now().AddDate(0, 0, 3))

	_, err := svc.Create(context.Background(), actorOf(plainUser(1, "INS-1")), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "perihal")
	assert.Contains(t, verr.Fields, "sifat")
	assert.Contains(t, verr.Fields, "tgl_surat")
	assert.Empty(t, docs.docs)
}

func TestCreateIncomingUsesWiderNumbers(t *testing.T) {
	svc, _, activity := newDocumentFixture()
	actor := actorOf(adminOf("INS-1"))
	in := IncomingLetterInput{
		NoAsal:           "12/SK/2026",
		TglSurat:         types.NewDate(time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)),
		Pengirim:         "Yayasan",
		Penerima:         "Sekretariat",
		Perihal:          "Laporan bulanan",
		Status:           "Dokumen",
		Sifat:            "Segera",
		KategoriSurat:    "Laporan",
		KlasifikasiSurat: "Internal",
		KodeBerkas:       "LAP-01",
		KategoriKode:     "LAP",
	}

	created, err := svc.CreateIncoming(context.Background(), actor, in)
	require.NoError(t, err)
	assert.Equal(t, "000001", created.NoSurat)
	assert.Equal(t, "INS-1", created.IDInstansi)
	assert.Equal(t, "2026-05-20", created.TglSM.String())
	assert.Equal(t, types.ActionCreateIncoming, activity.last().Action)

	in.NoSurat = "000001"
	_, err = svc.CreateIncoming(context.Background(), actor, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "no_surat")
}

func TestUpdateOnlyTouchesAllowedFields(t *testing.T) {
	svc, docs, _ := newDocumentFixture()
	owner := plainUser(1, "INS-1")
	d := ownedBy(owner, types.StatusDokumen)
	d.Disposisi = "Mohon ditindaklanjuti"
	doc := docs.put(d)

	perihal := "Perubahan jadwal rapat koordinasi"
	updated, err := svc.Update(context.Background(), actorOf(owner), doc.ID, UpdateDocumentInput{Perihal: &perihal})
	require.NoError(t, err)
	assert.Equal(t, perihal, updated.Perihal)
	assert.Equal(t, "Mohon ditindaklanjuti", updated.Disposisi)
	assert.Equal(t, "00001", updated.NoSurat)
}

func TestUpdateForbiddenOnceDocumentLeftDokumen(t *testing.T) {
	svc, docs, _ := newDocumentFixture()
	owner := plainUser(1, "INS-1")
	doc := docs.put(ownedBy(owner, types.StatusRapat))

	perihal := "Perubahan jadwal rapat koordinasi"
	_, err := svc.Update(context.Background(), actorOf(owner), doc.ID, UpdateDocumentInput{Perihal: &perihal})
	var ferr *ForbiddenError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, msgDocumentEdit, ferr.Message)

	// An admin of the institution may still edit it.
	_, err = svc.Update(context.Background(), actorOf(adminOf("INS-1")), doc.ID, UpdateDocumentInput{Perihal: &perihal})
	assert.NoError(t, err)
}

func TestDeleteRefusesDocumentsWithDisposition(t *testing.T) {
	svc, docs, activity := newDocumentFixture()
	owner := plainUser(1, "INS-1")
	d := ownedBy(owner, types.StatusDokumen)
	d.Disposisi = "Segera proses"
	doc := docs.put(d)

	err := svc.Delete(context.Background(), actorOf(owner), doc.ID)
	var ferr *ForbiddenError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "Document cannot be deleted as it has dispositions", ferr.Message)
	assert.Empty(t, activity.actions())

	_, err = docs.Get(context.Background(), doc.ID)
	assert.NoError(t, err)
}

func TestDeleteSoftDeletes(t *testing.T) {
	svc, docs, activity := newDocumentFixture()
	owner := plainUser(1, "INS-1")
	doc := docs.put(ownedBy(owner, types.StatusDokumen))

	require.NoError(t, svc.Delete(context.Background(), actorOf(owner), doc.ID))
	_, err := svc.Get(context.Background(), actorOf(owner), doc.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NotNil(t, docs.docs[doc.ID].DeletedAt)
	assert.Equal(t, types.ActionDeleteDocument, activity.actions()[0])
}

func TestUpdateStatusRoles(t *testing.T) {
	svc, docs, activity := newDocumentFixture()
	owner := plainUser(1, "INS-1")
	doc := docs.put(ownedBy(owner, types.StatusDokumen))
	in := StatusInput{Status: "Rapat", Disposisi: "Agendakan rapat", Catatan: "Minggu depan"}

	_, err := svc.UpdateStatus(context.Background(), actorOf(owner), doc.ID, in)
	var ferr *ForbiddenError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, msgStatusRole, ferr.Message)

	_, err = svc.UpdateStatus(context.Background(), actorOf(adminOf("INS-2")), doc.ID, in)
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, msgStatusAccess, ferr.Message)

	updated, err := svc.UpdateStatus(context.Background(), actorOf(pimpinanOf("INS-9")), doc.ID, in)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRapat, updated.Status)
	assert.Equal(t, "Agendakan rapat", updated.Disposisi)
	assert.NotNil(t, updated.TglDisposisi)

	last := activity.last()
	assert.Equal(t, types.ActionStatusChange, last.Action)
	assert.Equal(t, "Changed status from Dokumen to Rapat", last.Description)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(last.Metadata, &meta))
	assert.Equal(t, map[string]string{"old_status": "Dokumen", "new_status": "Rapat"}, meta)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc, docs, _ := newDocumentFixture()
	doc := docs.put(ownedBy(plainUser(1, "INS-1"), types.StatusDokumen))

	_, err := svc.UpdateStatus(context.Background(), actorOf(adminOf("INS-1")), doc.ID, StatusInput{Status: "Arsip"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "status")
}

func TestRecordDecision(t *testing.T) {
	docs := newFakeDocs()
	activity := &fakeActivity{}
	svc := NewMeetingService(docs, NewActivityService(activity, nil), nil)
	ctx := context.Background()
	owner := plainUser(1, "INS-1")
	meeting := docs.put(ownedBy(owner, types.StatusRapat))
	plain := docs.put(ownedBy(owner, types.StatusDokumen))
	in := DecisionInput{Decision: "Disetujui dengan catatan revisi", Status: "Selesai", Note: "Revisi lampiran"}

	_, err := svc.RecordDecision(ctx, actorOf(adminOf("INS-1")), meeting.ID, in)
	var ferr *ForbiddenError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "Only leadership can record meeting decisions", ferr.Message)

	_, err = svc.RecordDecision(ctx, actorOf(pimpinanOf("INS-1")), 999, in)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.RecordDecision(ctx, actorOf(pimpinanOf("INS-1")), plain.ID, in)
	assert.ErrorIs(t, err, ErrNotMeeting)

	_, err = svc.RecordDecision(ctx, actorOf(pimpinanOf("INS-2")), meeting.ID, in)
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "Unauthorized to access this meeting", ferr.Message)

	short := in
	short.Decision = "OK"
	_, err = svc.RecordDecision(ctx, actorOf(pimpinanOf("INS-1")), meeting.ID, short)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "disposisi_rapat")

	got, err := svc.RecordDecision(ctx, actorOf(pimpinanOf("INS-1")), meeting.ID, in)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSelesai, got.Status)
	require.NotNil(t, got.Meeting)
	assert.Equal(t, in.Decision, got.Meeting.DisposisiRapat)
	assert.NotNil(t, got.Meeting.TglHasilRapat)
	assert.Equal(t, "Revisi lampiran", got.Catatan)

	last := activity.last()
	assert.Equal(t, types.ActionMeetingDecision, last.Action)
	assert.JSONEq(t, `{"decision":"Disetujui dengan catatan revisi"}`, string(last.Metadata))
}

func TestRecordDecisionKeepsStatusWhenOmitted(t *testing.T) {
	docs := newFakeDocs()
	svc := NewMeetingService(docs, nil, nil)
	meeting := docs.put(ownedBy(plainUser(1, "INS-1"), types.StatusRapat))

	got, err := svc.RecordDecision(context.Background(), actorOf(pimpinanOf("INS-1")), meeting.ID,
		DecisionInput{Decision: "Ditunda sampai bulan depan"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusRapat, got.Status)
}

func TestListMeetingsOnlyReturnsRapat(t *testing.T) {
	docs := newFakeDocs()
	svc := NewMeetingService(docs, nil, nil)
	owner := plainUser(1, "INS-1")
	docs.put(ownedBy(owner, types.StatusDokumen))
	docs.put(ownedBy(owner, types.StatusRapat))

	items, meta, err := svc.List(context.Background(), adminOf("INS-1"), types.MeetingFilter{}, types.Page{Page: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.StatusRapat, items[0].Status)
	assert.Equal(t, 1, meta.Total)
}
