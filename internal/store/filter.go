package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Viewer identifies the user a document query runs for. It drives both the
// visibility scope and the ownership terms of the dibaca predicates.
type Viewer struct {
	UserID   int64
	KodeUser string
	Instansi string

	// InstitutionWide lists every document of Instansi. When false only
	// documents created by the viewer (by id or user code) are visible.
	InstitutionWide bool
}

// whereBuilder accumulates AND-ed SQL predicates with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []any
}

// arg registers a value and returns its placeholder.
func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *whereBuilder) add(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *whereBuilder) sql() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// visibility adds the role scope of v.
func (b *whereBuilder) visibility(v Viewer) {
	if v.InstitutionWide {
		b.add("id_instansi = " + b.arg(v.Instansi))
		return
	}
	b.add(fmt.Sprintf("(id_user = %s OR kode_user = %s)", b.arg(v.UserID), b.arg(v.KodeUser)))
}

// search adds a case-insensitive substring match over columns.
func (b *whereBuilder) search(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	p := b.arg("%" + escapeLike(term) + "%")
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+" ILIKE "+p)
	}
	b.add("(" + strings.Join(parts, " OR ") + ")")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// dibaca adds the read-status predicate for code.
func (b *whereBuilder) dibaca(code int, v Viewer) {
	b.add(dibacaPredicate(b, code, v))
}

// dibacaPredicate renders the SQL predicate for a dibaca filter code. The
// codes are opaque business rules and must stay exactly as listed; unknown
// codes compare dibaca with the literal value.
func dibacaPredicate(b *whereBuilder, code int, v Viewer) string {
	inst := func() string { return "id_instansi = " + b.arg(v.Instansi) }
	userCode := func() string { return "kode_user = " + b.arg(v.KodeUser) }
	owner := func() string {
		return fmt.Sprintf("(id_user = %s OR kode_user = %s)", b.arg(v.UserID), b.arg(v.KodeUser))
	}
	pimpinanCode := func() string { return "kode_user_pimpinan = " + b.arg(v.KodeUser) }
	inList := func(col string) string {
		return fmt.Sprintf("%s = ANY(string_to_array(COALESCE(%s, ''), ','))", b.arg(strconv.FormatInt(v.UserID, 10)), col)
	}

	switch code {
	case 1:
		return "(dibaca = 1 AND " + inst() + ")"
	case 2:
		return "(dibaca = 1 AND " + userCode() + ")"
	case 3:
		return "(dibaca = 3 OR id_status_rapat = 4)"
	case 4:
		return "(dibaca = 1 OR dibaca = 8)"
	case 5:
		return "dibaca = 2"
	case 6:
		return "id_status_rapat = 2"
	case 7:
		return "(dibaca = 2 AND (" + pimpinanCode() + " OR dibaca_pimpinan = 1))"
	case 8:
		return "(dibaca = 8 AND " + pimpinanCode() + ")"
	case 9:
		return "((id_status_rapat = 2 AND dibaca = 7) OR " + pimpinanCode() + ")"
	case 10:
		return "((dibaca = 1 OR dibaca = 2) AND " + inst() + ")"
	case 11:
		return "((dibaca = 1 OR dibaca = 2) AND " + userCode() + ")"
	case 12:
		return "((dibaca = 7 OR dibaca = 8) AND " + inst() + ")"
	case 13:
		return "((dibaca = 7 OR dibaca = 8) AND " + userCode() + ")"
	case 14:
		return "(dibaca = 3 AND " + inst() + ")"
	case 15:
		return "(dibaca = 3 AND " + owner() + ")"
	case 16:
		return "(dibaca = 0 AND " + inst() + ")"
	case 17:
		return "(dibaca = 0 AND " + owner() + ")"
	case 18:
		return "(dibaca = 20 AND " + inst() + ")"
	case 19:
		return "(dibaca = 20 AND " + owner() + ")"
	case 20:
		return "((dibaca = 3 AND status_instansi = 2 AND " + inList("id_user_disposisi_leader") + ") OR (dibaca = 3 AND " + inList("disposisi_ktu_leader") + "))"
	default:
		return "dibaca = " + b.arg(code)
	}
}
