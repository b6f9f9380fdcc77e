package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/esurat/apiserver/internal/store"
	"github.com/esurat/apiserver/types"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]types.User
	next  int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[int64]types.User{}}
}

func (f *fakeUsers) add(t *testing.T, u types.User, password string) types.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u.PasswordHash = string(hash)
	created, err := f.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return created
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return types.User{}, store.ErrConflict
		}
	}
	f.next++
	u.ID = f.next
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) RecordFailedLogin(_ context.Context, id int64, ip string, at time.Time, maxAttempts int, lockout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	u.LoginAttempts++
	u.LastAttempt = &at
	u.FailedIP = ip
	if u.LoginAttempts >= maxAttempts {
		until := at.Add(lockout)
		u.BlockedUntil = &until
	}
	f.users[id] = u
	return u.LoginAttempts, nil
}

func (f *fakeUsers) RecordSuccessfulLogin(_ context.Context, id int64, at time.Time, fcmToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.LoginAttempts = 0
	u.BlockedUntil = nil
	u.FailedIP = ""
	u.TerakhirLogin = &at
	if fcmToken != "" {
		u.FCMToken = fcmToken
	}
	f.users[id] = u
	return nil
}

func (f *fakeUsers) ListOptions(_ context.Context, q store.UserOptionQuery) ([]types.UserOption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.UserOption
	for _, u := range f.users {
		if q.CodePrefix != "" && !strings.HasPrefix(u.KodeUser, q.CodePrefix) {
			continue
		}
		out = append(out, types.UserOption{ID: u.ID, Username: u.Username, NamaLengkap: u.NamaLengkap, Jabatan: u.Jabatan})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NamaLengkap < out[j].NamaLengkap })
	return out, nil
}

type fakeTokens struct {
	mu     sync.Mutex
	tokens map[string]types.AccessToken
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{tokens: map[string]types.AccessToken{}}
}

func (f *fakeTokens) Create(_ context.Context, t types.AccessToken) (types.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[t.ID] = t
	return t, nil
}

func (f *fakeTokens) Get(_ context.Context, id string) (types.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok {
		return types.AccessToken{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTokens) Touch(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	t.LastUsedAt = &at
	f.tokens[id] = t
	return nil
}

func (f *fakeTokens) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tokens[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.tokens, id)
	return nil
}

type fakeActivity struct {
	mu      sync.Mutex
	entries []types.ActivityHistory
}

func (f *fakeActivity) Append(_ context.Context, e types.ActivityHistory) (types.ActivityHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.entries) + 1)
	e.CreatedAt = time.Now()
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeActivity) List(_ context.Context, filter types.HistoryFilter, p types.Page) ([]types.ActivityHistory, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.ActivityHistory
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.UserID != filter.UserID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (f *fakeActivity) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func (f *fakeActivity) last() types.ActivityHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return types.ActivityHistory{}
	}
	return f.entries[len(f.entries)-1]
}

type fakeDocs struct {
	mu   sync.Mutex
	docs map[int64]types.Document
	next int64

	createErr error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[int64]types.Document{}}
}

func (f *fakeDocs) visible(v store.Viewer, d types.Document) bool {
	if d.DeletedAt != nil {
		return false
	}
	if v.InstitutionWide {
		return d.IDInstansi == v.Instansi
	}
	return d.IDUser == v.UserID || (d.KodeUser != "" && d.KodeUser == v.KodeUser)
}

func (f *fakeDocs) sorted(keep func(types.Document) bool) []types.Document {
	var out []types.Document
	for _, d := range f.docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeDocs) List(_ context.Context, v store.Viewer, filter types.DocumentFilter, _ types.Page) ([]types.Document, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sorted(func(d types.Document) bool {
		if !f.visible(v, d) {
			return false
		}
		return filter.Status == "" || d.Status == filter.Status
	})
	return out, len(out), nil
}

func (f *fakeDocs) ListMeetings(_ context.Context, v store.Viewer, _ types.MeetingFilter, _ types.Page) ([]types.Document, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sorted(func(d types.Document) bool {
		return f.visible(v, d) && d.Status == types.StatusRapat
	})
	return out, len(out), nil
}

func (f *fakeDocs) Get(_ context.Context, id int64) (types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.DeletedAt != nil {
		return types.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeDocs) put(d types.Document) types.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	d.ID = f.next
	f.docs[d.ID] = d
	return d
}

func (f *fakeDocs) lastNumber(year int) string {
	last := ""
	for _, d := range f.docs {
		if d.TglNS.Year() != year {
			continue
		}
		if len(d.NoSurat) > len(last) || (len(d.NoSurat) == len(last) && d.NoSurat > last) {
			last = d.NoSurat
		}
	}
	return last
}

func (f *fakeDocs) CreateNumbered(_ context.Context, d types.Document, width int) (types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return types.Document{}, f.createErr
	}
	if d.NoSurat == "" {
		d.NoSurat = store.NextNumber(f.lastNumber(d.TglNS.Year()), width)
	}
	for _, existing := range f.docs {
		if existing.NoSurat == d.NoSurat && existing.TglNS.Year() == d.TglNS.Year() {
			return types.Document{}, store.ErrConflict
		}
	}
	f.next++
	d.ID = f.next
	f.docs[d.ID] = d
	return d, nil
}

func (f *fakeDocs) Update(_ context.Context, d types.Document) (types.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[d.ID]; !ok {
		return types.Document{}, store.ErrNotFound
	}
	f.docs[d.ID] = d
	return d, nil
}

func (f *fakeDocs) SoftDelete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	d.DeletedAt = &now
	f.docs[id] = d
	return nil
}

func (f *fakeDocs) MarkRead(_ context.Context, id int64, pimpinan bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.docs[id]
	if pimpinan {
		d.DibacaPimpinan = 1
	} else if d.Dibaca == 0 {
		d.Dibaca = 1
	}
	f.docs[id] = d
	return nil
}

func (f *fakeDocs) UpdateStatus(_ context.Context, id int64, status types.DocumentStatus, disposisi, catatan string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	d.Status = status
	d.Disposisi = disposisi
	d.Catatan = catatan
	d.TglDisposisi = &at
	f.docs[id] = d
	return nil
}

func (f *fakeDocs) RecordDecision(_ context.Context, id int64, decision string, decidedAt time.Time, status types.DocumentStatus, catatan string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	m := d.MeetingOrZero()
	m.DisposisiRapat = decision
	m.TglHasilRapat = &decidedAt
	if status != "" {
		d.Status = status
	}
	d.Catatan = catatan
	d.AttachPhases(m, d.CompletionOrZero())
	f.docs[id] = d
	return nil
}

func (f *fakeDocs) LastNumber(_ context.Context, year int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastNumber(year), nil
}

type fakeAttachments struct {
	mu   sync.Mutex
	rows map[int64]types.Attachment
	next int64
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{rows: map[int64]types.Attachment{}}
}

func (f *fakeAttachments) Create(_ context.Context, a types.Attachment) (types.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	a.ID = f.next
	f.rows[a.ID] = a
	return a, nil
}

func (f *fakeAttachments) Get(_ context.Context, id int64) (types.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeAttachments) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeAttachments) ListByDocument(_ context.Context, token, noSurat string) ([]types.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Attachment
	for _, a := range f.rows {
		if (token != "" && a.TokenLampiran == token) || (noSurat != "" && a.NoSurat == noSurat) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}}
}

func (f *fakeBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = buf.Bytes()
	return nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) URL(key string) string {
	return "http://files.test/" + key
}

type published struct {
	channel string
	payload []byte
	attrs   map[string]string
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (f *fakePublisher) PublishJSON(_ context.Context, channel string, v any, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{channel: channel, payload: data, attrs: attrs})
	return "msg-1", nil
}

func adminOf(instansi string) types.User {
	return types.User{ID: 100, Username: "admin", Role: types.RoleAdmin, Instansi: instansi, KodeUser: "ADM-" + instansi}
}

func pimpinanOf(instansi string) types.User {
	return types.User{ID: 200, Username: "pimpinan", Role: types.RolePimpinan, Instansi: instansi, KodeUser: "YS-01-PMP-001"}
}

func plainUser(id int64, instansi string) types.User {
	return types.User{ID: id, Username: "user", Role: types.RoleUser, Instansi: instansi, KodeUser: fmt.Sprintf("USR-%d", id)}
}

func actorOf(u types.User) Actor {
	return Actor{User: u, IP: "10.0.0.1", UserAgent: "test"}
}
