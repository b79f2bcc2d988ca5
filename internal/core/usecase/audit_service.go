package usecase

import (
	"cmp"
	"slices"
	"strings"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

type auditSource interface {
	AuditEntries() []domain.AuditEntry
}

type AuditService struct {
	source auditSource
}

func NewAuditService(source auditSource) *AuditService {
	return &AuditService{source: source}
}

// Page returns one page of the audit feed, newest first unless the filter
// asks otherwise.
func (s *AuditService) Page(filter domain.AuditFilter) (domain.Page[domain.AuditEntry], error) {
	if err := validateAuditFilter(filter); err != nil {
		return domain.Page[domain.AuditEntry]{}, err
	}

	req := filter.Page.Normalize(auditSortFields...)
	entries := s.filtered(filter)
	slices.SortStableFunc(entries, func(a, b domain.AuditEntry) int {
		var r int
		switch req.SortBy {
		case "dataHora":
			r = a.At.Compare(b.At)
		case "entidade":
			r = strings.Compare(string(a.EntityKind), string(b.EntityKind))
		case "acaoRealizada":
			r = strings.Compare(string(a.Action), string(b.Action))
		case "entidadeId":
			r = cmp.Compare(a.EntityID, b.EntityID)
		}
		if r == 0 {
			r = cmp.Compare(a.ID, b.ID)
		}
		return applyOrder(r, req.SortOrder)
	})
	return domain.Paginate(entries, req), nil
}

// All returns every matching entry in append order.
func (s *AuditService) All(filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if err := validateAuditFilter(filter); err != nil {
		return nil, err
	}
	return s.filtered(filter), nil
}

func validateAuditFilter(filter domain.AuditFilter) error {
	if filter.EntityKind != "" && !filter.EntityKind.Valid() {
		return domain.NewValidationError("entidade", "unknown entity kind "+string(filter.EntityKind))
	}
	if filter.Action != "" && !filter.Action.Valid() {
		return domain.NewValidationError("acaoRealizada", "unknown action "+string(filter.Action))
	}
	return nil
}

func (s *AuditService) filtered(filter domain.AuditFilter) []domain.AuditEntry {
	all := s.source.AuditEntries()
	out := all[:0]
	for _, e := range all {
		if filter.EntityKind != "" && e.EntityKind != filter.EntityKind {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityID != 0 && e.EntityID != filter.EntityID {
			continue
		}
		out = append(out, e)
	}
	return out
}
