package services

import (
	"github.com/esurat/apiserver/internal/store"
	"github.com/esurat/apiserver/types"
)

// Actor is the authenticated user performing an operation, with the request
// details recorded in the activity log.
type Actor struct {
	User      types.User
	IP        string
	UserAgent string
}

// viewer derives the document visibility scope of u.
func viewer(u types.User) store.Viewer {
	v := store.Viewer{UserID: u.ID, KodeUser: u.KodeUser, Instansi: u.Instansi}
	switch u.Role {
	case types.RoleAdmin, types.RolePimpinan:
		v.InstitutionWide = true
	case types.RoleUser:
		v.InstitutionWide = false
	}
	return v
}

func isCreator(u types.User, d types.Document) bool {
	if d.IDUser == u.ID {
		return true
	}
	return d.KodeUser != "" && d.KodeUser == u.KodeUser
}

func sameInstitution(u types.User, d types.Document) bool {
	return u.Instansi != "" && d.IDInstansi == u.Instansi
}

// canView: admin and pimpinan see their institution, everyone sees what
// they created.
func canView(u types.User, d types.Document) bool {
	switch u.Role {
	case types.RoleAdmin, types.RolePimpinan:
		return sameInstitution(u, d) || isCreator(u, d)
	case types.RoleUser:
		return isCreator(u, d)
	default:
		return false
	}
}

// canEdit: admin within the institution, or the creator while the document
// is still in the Dokumen phase.
func canEdit(u types.User, d types.Document) bool {
	editableByCreator := isCreator(u, d) && d.Status == types.StatusDokumen
	switch u.Role {
	case types.RoleAdmin:
		return sameInstitution(u, d) || editableByCreator
	case types.RolePimpinan, types.RoleUser:
		return editableByCreator
	default:
		return false
	}
}

// canChangeStatus: admin within the institution, or any pimpinan.
func canChangeStatus(u types.User, d types.Document) bool {
	switch u.Role {
	case types.RoleAdmin:
		return sameInstitution(u, d)
	case types.RolePimpinan:
		return true
	case types.RoleUser:
		return false
	default:
		return false
	}
}

// normalizePage applies the default and the cap to a page request.
func normalizePage(p types.Page, def, max int) types.Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = def
	}
	if p.PerPage > max {
		p.PerPage = max
	}
	return p
}
