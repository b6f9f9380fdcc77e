package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "user", want: RoleUser},
		{in: "Admin", want: RoleAdmin},
		{in: " pimpinan ", want: RolePimpinan},
		{in: "root", want: RoleUser, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{Role: RoleAdmin})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin"}`, string(data))

	var r Role
	require.NoError(t, json.Unmarshal([]byte(`"pimpinan"`), &r))
	assert.Equal(t, RolePimpinan, r)
	assert.Error(t, json.Unmarshal([]byte(`"superuser"`), &r))
}

func TestRoleScan(t *testing.T) {
	var r Role
	require.NoError(t, r.Scan([]byte("admin")))
	assert.Equal(t, RoleAdmin, r)
	assert.Error(t, r.Scan(42))
}

func TestUserIsBlocked(t *testing.T) {
	now := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	assert.False(t, User{}.IsBlocked(now))
	assert.True(t, User{BlockedUntil: &later}.IsBlocked(now))
	assert.False(t, User{BlockedUntil: &earlier}.IsBlocked(now))
}

func TestDateJSON(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-12-07"`), &d))
	assert.Equal(t, "2025-12-07", d.String())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-12-07"`, string(out))

	out, err = json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))

	assert.Error(t, json.Unmarshal([]byte(`"07/12/2025"`), &d))
}

func TestDateScanAndValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2025-01-02", d.String())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-01-02", v)

	require.NoError(t, d.Scan(nil))
	v, err = d.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAttachPhases(t *testing.T) {
	doc := Document{Status: StatusDokumen}
	doc.AttachPhases(MeetingDetails{}, CompletionDetails{})
	assert.Nil(t, doc.Meeting)
	assert.Nil(t, doc.Completion)

	doc.Status = StatusRapat
	doc.AttachPhases(MeetingDetails{RuangRapat: "R1"}, CompletionDetails{})
	require.NotNil(t, doc.Meeting)
	assert.Equal(t, "R1", doc.Meeting.RuangRapat)
	assert.Nil(t, doc.Completion)

	doc.Status = StatusSelesai
	doc.AttachPhases(MeetingDetails{}, CompletionDetails{KodeUserApproved: "YS-01"})
	require.NotNil(t, doc.Meeting)
	require.NotNil(t, doc.Completion)
	assert.Equal(t, "YS-01", doc.Completion.KodeUserApproved)
}

func TestPageMeta(t *testing.T) {
	assert.Equal(t, PageMeta{CurrentPage: 2, PerPage: 15, Total: 31, LastPage: 3}, NewPageMeta(Page{Page: 2, PerPage: 15}, 31))
	assert.Equal(t, 1, NewPageMeta(Page{Page: 1, PerPage: 15}, 0).LastPage)
	assert.Equal(t, 15, Page{Page: 2, PerPage: 15}.Offset())
}

func TestStatusAndSifatValid(t *testing.T) {
	assert.True(t, StatusRapat.Valid())
	assert.False(t, DocumentStatus("Arsip").Valid())
	assert.True(t, SifatRahasia.Valid())
	assert.False(t, Sensitivity("Penting").Valid())
}
