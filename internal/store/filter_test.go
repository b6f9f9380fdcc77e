package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testViewer = Viewer{UserID: 42, KodeUser: "YS-01-ADM-001", Instansi: "INST-1"}

func TestDibacaPredicate(t *testing.T) {
	cases := []struct {
		code int
		sql  string
		args []any
	}{
		{1, "(dibaca = 1 AND id_instansi = $1)", []any{"INST-1"}},
		{2, "(dibaca = 1 AND kode_user = $1)", []any{"YS-01-ADM-001"}},
		{3, "(dibaca = 3 OR id_status_rapat = 4)", nil},
		{4, "(dibaca = 1 OR dibaca = 8)", nil},
		{5, "dibaca = 2", nil},
		{6, "id_status_rapat = 2", nil},
		{7, "(dibaca = 2 AND (kode_user_pimpinan = $1 OR dibaca_pimpinan = 1))", []any{"YS-01-ADM-001"}},
		{8, "(dibaca = 8 AND kode_user_pimpinan = $1)", []any{"YS-01-ADM-001"}},
		{9, "((id_status_rapat = 2 AND dibaca = 7) OR kode_user_pimpinan = $1)", []any{"YS-01-ADM-001"}},
		{10, "((dibaca = 1 OR dibaca = 2) AND id_instansi = $1)", []any{"INST-1"}},
		{11, "((dibaca = 1 OR dibaca = 2) AND kode_user = $1)", []any{"YS-01-ADM-001"}},
		{12, "((dibaca = 7 OR dibaca = 8) AND id_instansi = $1)", []any{"INST-1"}},
		{13, "((dibaca = 7 OR dibaca = 8) AND kode_user = $1)", []any{"YS-01-ADM-001"}},
		{14, "(dibaca = 3 AND id_instansi = $1)", []any{"INST-1"}},
		{15, "(dibaca = 3 AND (id_user = $1 OR kode_user = $2))", []any{int64(42), "YS-01-ADM-001"}},
		{16, "(dibaca = 0 AND id_instansi = $1)", []any{"INST-1"}},
		{17, "(dibaca = 0 AND (id_user = $1 OR kode_user = $2))", []any{int64(42), "YS-01-ADM-001"}},
		{18, "(dibaca = 20 AND id_instansi = $1)", []any{"INST-1"}},
		{19, "(dibaca = 20 AND (id_user = $1 OR kode_user = $2))", []any{int64(42), "YS-01-ADM-001"}},
		{
			20,
			"((dibaca = 3 AND status_instansi = 2 AND $1 = ANY(string_to_array(COALESCE(id_user_disposisi_leader, ''), ','))) OR (dibaca = 3 AND $2 = ANY(string_to_array(COALESCE(disposisi_ktu_leader, ''), ','))))",
			[]any{"42", "42"},
		},
		{0, "dibaca = $1", []any{0}},
		{21, "dibaca = $1", []any{21}},
		{99, "dibaca = $1", []any{99}},
	}

	for _, tc := range cases {
		b := &whereBuilder{}
		got := dibacaPredicate(b, tc.code, testViewer)
		assert.Equal(t, tc.sql, got, "code %d", tc.code)
		assert.Equal(t, tc.args, b.args, "code %d args", tc.code)
	}
}

func TestWhereBuilderNumbersPlaceholdersInOrder(t *testing.T) {
	b := &whereBuilder{}
	b.add("deleted_at IS NULL")
	b.visibility(testViewer)
	b.search("  rapat ", "no_surat", "perihal")
	b.dibaca(16, testViewer)

	assert.Equal(t,
		" WHERE deleted_at IS NULL AND (id_user = $1 OR kode_user = $2) AND (no_surat ILIKE $3 OR perihal ILIKE $3) AND (dibaca = 0 AND id_instansi = $4)",
		b.sql())
	require.Len(t, b.args, 4)
	assert.Equal(t, "%rapat%", b.args[2])
}

func TestVisibilityInstitutionWide(t *testing.T) {
	b := &whereBuilder{}
	v := testViewer
	v.InstitutionWide = true
	b.visibility(v)
	assert.Equal(t, " WHERE id_instansi = $1", b.sql())
	assert.Equal(t, []any{"INST-1"}, b.args)
}

func TestSearchIgnoresBlankAndEscapesWildcards(t *testing.T) {
	b := &whereBuilder{}
	b.search("   ", "perihal")
	assert.Empty(t, b.sql())

	b.search(`50%_off\`, "perihal")
	require.Len(t, b.args, 1)
	assert.Equal(t, `%50\%\_off\\%`, b.args[0])
}

func TestNextNumber(t *testing.T) {
	cases := []struct {
		last  string
		width int
		want  string
	}{
		{"", 5, "00001"},
		{"", 6, "000001"},
		{"00007", 5, "00008"},
		{"000099", 5, "000100"},
		{"99", 5, "100"},
		{"abc", 5, "00001"},
		{" 00041 ", 5, "00042"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NextNumber(tc.last, tc.width), "last=%q", tc.last)
	}
}

func TestNextNumberSequence(t *testing.T) {
	last := ""
	for i := 0; i < 7; i++ {
		last = NextNumber(last, 5)
	}
	assert.Equal(t, "00007", last)
	assert.Equal(t, "00008", NextNumber(last, 5))
}

func TestDocumentColumnsStayAligned(t *testing.T) {
	var row docRow
	cols := row.writable()
	seen := map[string]bool{}
	for _, col := range cols {
		require.False(t, seen[col.name], "duplicate column %s", col.name)
		seen[col.name] = true
		assert.NotPanics(t, func() { col.value() }, col.name)
	}
	assert.Contains(t, documentSelectList, "COALESCE(disposisi, '')")
	assert.Contains(t, documentSelectList, "tgl_surat")
}
