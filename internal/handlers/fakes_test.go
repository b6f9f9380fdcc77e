package handlers

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/esurat/apiserver/internal/store"
	"github.com/esurat/apiserver/types"
)

// memUsers is a minimal in-memory UserRepository.
type memUsers struct {
	mu    sync.Mutex
	users map[int64]types.User
}

func (m *memUsers) GetByID(_ context.Context, id int64) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = int64(len(m.users) + 1)
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) RecordFailedLogin(_ context.Context, id int64, _ string, at time.Time, maxAttempts int, lockout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.LoginAttempts++
	if u.LoginAttempts >= maxAttempts {
		until := at.Add(lockout)
		u.BlockedUntil = &until
	}
	m.users[id] = u
	return u.LoginAttempts, nil
}

func (m *memUsers) RecordSuccessfulLogin(_ context.Context, id int64, at time.Time, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.LoginAttempts = 0
	u.BlockedUntil = nil
	u.TerakhirLogin = &at
	m.users[id] = u
	return nil
}

func (m *memUsers) ListOptions(context.Context, store.UserOptionQuery) ([]types.UserOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.UserOption, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, types.UserOption{ID: u.ID, Username: u.Username, NamaLengkap: u.NamaLengkap})
	}
	return out, nil
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]types.AccessToken
}

func (m *memTokens) Create(_ context.Context, t types.AccessToken) (types.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.ID] = t
	return t, nil
}

func (m *memTokens) Get(_ context.Context, id string) (types.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return types.AccessToken{}, store.ErrNotFound
	}
	return t, nil
}

func (m *memTokens) Touch(context.Context, string, time.Time) error { return nil }

func (m *memTokens) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

type memActivity struct {
	mu      sync.Mutex
	entries []types.ActivityHistory
}

func (m *memActivity) Append(_ context.Context, e types.ActivityHistory) (types.ActivityHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memActivity) List(_ context.Context, f types.HistoryFilter, _ types.Page) ([]types.ActivityHistory, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ActivityHistory
	for _, e := range m.entries {
		if e.UserID == f.UserID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

// memDocs stores documents by id; listing returns everything visible by
// creator or institution.
type memDocs struct {
	mu   sync.Mutex
	docs map[int64]types.Document
}

func (m *memDocs) List(_ context.Context, v store.Viewer, _ types.DocumentFilter, _ types.Page) ([]types.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Document
	for id := int64(1); id <= int64(len(m.docs)); id++ {
		d, ok := m.docs[id]
		if !ok {
			continue
		}
		if (v.InstitutionWide && d.IDInstansi == v.Instansi) || d.IDUser == v.UserID {
			out = append(out, d)
		}
	}
	return out, len(out), nil
}

func (m *memDocs) ListMeetings(context.Context, store.Viewer, types.MeetingFilter, types.Page) ([]types.Document, int, error) {
	return nil, 0, nil
}

func (m *memDocs) Get(_ context.Context, id int64) (types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return types.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (m *memDocs) CreateNumbered(_ context.Context, d types.Document, width int) (types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = int64(len(m.docs) + 1)
	if d.NoSurat == "" {
		d.NoSurat = store.NextNumber("", width)
	}
	m.docs[d.ID] = d
	return d, nil
}

func (m *memDocs) Update(_ context.Context, d types.Document) (types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.ID] = d
	return d, nil
}

func (m *memDocs) SoftDelete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *memDocs) MarkRead(context.Context, int64, bool) error { return nil }

func (m *memDocs) UpdateStatus(context.Context, int64, types.DocumentStatus, string, string, time.Time) error {
	return nil
}

func (m *memDocs) RecordDecision(context.Context, int64, string, time.Time, types.DocumentStatus, string) error {
	return nil
}

func (m *memDocs) LastNumber(context.Context, int) (string, error) { return "", nil }

type memLookups struct{}

func (memLookups) TableColumns(_ context.Context, table string) ([]string, error) {
	if table == "m_ruang_rapat" {
		return []string{"id", "kode", "deskripsi", "keterangan"}, nil
	}
	return nil, nil
}

func (memLookups) ListGeneric(context.Context, string, string, types.LookupQuery) ([]types.LookupItem, int, error) {
	return []types.LookupItem{{Kode: "R1", Deskripsi: "Ruang Utama"}}, 1, nil
}

func (memLookups) DispositionTargets(context.Context, int) ([]types.DispositionTarget, error) {
	return []types.DispositionTarget{}, nil
}

func (memLookups) Institutions(context.Context, int) ([]types.Institution, error) {
	return []types.Institution{}, nil
}

func (memLookups) Rooms(context.Context, string, int) ([]types.Room, error) {
	return []types.Room{{ID: 1, Kode: "R1", Deskripsi: "Ruang Utama"}}, nil
}

func (memLookups) DocumentTypes(context.Context, string) ([]types.DocumentType, error) {
	return []types.DocumentType{{ID: 1, Klasifikasi: "Keputusan", Kode: "SK"}}, nil
}

func (memLookups) ImmediateActions(context.Context, string, int, int) ([]types.ImmediateAction, error) {
	return []types.ImmediateAction{{Value: "1", Label: "TS-01 - Segera"}}, nil
}

type memAttachments struct {
	mu   sync.Mutex
	rows map[int64]types.Attachment
}

func (m *memAttachments) Create(_ context.Context, a types.Attachment) (types.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.rows) + 1)
	m.rows[a.ID] = a
	return a, nil
}

func (m *memAttachments) Get(_ context.Context, id int64) (types.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memAttachments) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memAttachments) ListByDocument(context.Context, string, string) ([]types.Attachment, error) {
	return nil, nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memBlobs) URL(key string) string { return "/storage/" + key }
