package usecase

import (
	"cmp"
	"slices"
	"strings"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

var (
	companySortFields        = []string{"id", "nomeEmpresa", "createdAt"}
	correspondenceSortFields = []string{"id", "remetente", "nomeEmpresaConexa", "statusCorresp", "dataRecebimento", "dataAvisoConexa"}
	auditSortFields          = []string{"id", "dataHora", "entidade", "acaoRealizada", "entidadeId"}
)

type CompanyQuery struct {
	Search string
	Page   domain.PageRequest
}

type CorrespondenceQuery struct {
	Search string
	Status domain.Status
	Page   domain.PageRequest
}

func (m *Manager) Companies() []domain.Company {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.companies)
}

func (m *Manager) Correspondences() []domain.Correspondence {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.correspondences)
}

// AuditEntries returns the log in append order.
func (m *Manager) AuditEntries() []domain.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.audit)
}

func (m *Manager) Company(id int64) (domain.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx := m.companyIndex(id); idx >= 0 {
		return m.companies[idx], nil
	}
	return domain.Company{}, &domain.NotFoundError{Kind: domain.EntityCompany, ID: id}
}

func (m *Manager) Correspondence(id int64) (domain.Correspondence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx := m.correspondenceIndex(id); idx >= 0 {
		return m.correspondences[idx], nil
	}
	return domain.Correspondence{}, &domain.NotFoundError{Kind: domain.EntityCorrespondence, ID: id}
}

// FindCompanyByName matches on the display name first and the sender alias
// second.
func (m *Manager) FindCompanyByName(name string) (domain.Company, bool) {
	if strings.TrimSpace(name) == "" {
		return domain.Company{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.companies {
		if c.MatchesName(name) {
			return c, true
		}
	}
	for _, c := range m.companies {
		if c.MatchesAlias(name) {
			return c, true
		}
	}
	return domain.Company{}, false
}

func (m *Manager) ListCompanies(q CompanyQuery) domain.Page[domain.Company] {
	req := q.Page.Normalize(companySortFields...)
	search := strings.ToLower(strings.TrimSpace(q.Search))

	items := make([]domain.Company, 0)
	for _, c := range m.Companies() {
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		items = append(items, c)
	}

	slices.SortStableFunc(items, func(a, b domain.Company) int {
		var r int
		switch req.SortBy {
		case "nomeEmpresa":
			r = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "createdAt":
			r = a.CreatedAt.Compare(b.CreatedAt)
		}
		if r == 0 {
			r = cmp.Compare(a.ID, b.ID)
		}
		return applyOrder(r, req.SortOrder)
	})
	return domain.Paginate(items, req)
}

func (m *Manager) ListCorrespondences(q CorrespondenceQuery) domain.Page[domain.Correspondence] {
	req := q.Page.Normalize(correspondenceSortFields...)
	search := strings.ToLower(strings.TrimSpace(q.Search))

	items := make([]domain.Correspondence, 0)
	for _, c := range m.Correspondences() {
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Sender), search) &&
			!strings.Contains(strings.ToLower(c.CompanyName), search) {
			continue
		}
		items = append(items, c)
	}

	slices.SortStableFunc(items, func(a, b domain.Correspondence) int {
		var r int
		switch req.SortBy {
		case "remetente":
			r = strings.Compare(strings.ToLower(a.Sender), strings.ToLower(b.Sender))
		case "nomeEmpresaConexa":
			r = strings.Compare(strings.ToLower(a.CompanyName), strings.ToLower(b.CompanyName))
		case "statusCorresp":
			r = strings.Compare(string(a.Status), string(b.Status))
		case "dataRecebimento":
			r = a.ReceivedAt.Compare(b.ReceivedAt)
		case "dataAvisoConexa":
			r = compareOptionalTime(a, b)
		}
		if r == 0 {
			r = cmp.Compare(a.ID, b.ID)
		}
		return applyOrder(r, req.SortOrder)
	})
	return domain.Paginate(items, req)
}

func compareOptionalTime(a, b domain.Correspondence) int {
	switch {
	case a.NotifiedAt == nil && b.NotifiedAt == nil:
		return 0
	case a.NotifiedAt == nil:
		return -1
	case b.NotifiedAt == nil:
		return 1
	default:
		return a.NotifiedAt.Compare(*b.NotifiedAt)
	}
}

func applyOrder(r int, order domain.SortOrder) int {
	if order == domain.SortDesc {
		return -r
	}
	return r
}
