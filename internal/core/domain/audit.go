package domain

import "time"

type EntityKind string

const (
	EntityCompany        EntityKind = "COMPANY"
	EntityCorrespondence EntityKind = "CORRESPONDENCE"
)

func (k EntityKind) Valid() bool {
	return k == EntityCompany || k == EntityCorrespondence
}

func (k EntityKind) Label() string {
	switch k {
	case EntityCompany:
		return "company"
	case EntityCorrespondence:
		return "correspondence"
	default:
		return "entity"
	}
}

type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

func (a Action) Valid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// AuditEntry is append-only: nothing in the system mutates or deletes one.
type AuditEntry struct {
	ID         int64      `json:"id"`
	At         time.Time  `json:"dataHora"`
	EntityKind EntityKind `json:"entidade"`
	EntityID   int64      `json:"entidadeId"`
	Action     Action     `json:"acaoRealizada"`
	Detail     string     `json:"detalhe"`
	Actor      string     `json:"ator,omitempty"`
}

type AuditFilter struct {
	EntityKind EntityKind
	Action     Action
	EntityID   int64
	Page       PageRequest
}
