package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
)

// Manager owns the in-memory companies, correspondences and audit entries of
// one application instance. Every mutation appends exactly one audit entry
// after the mutation has been applied, then writes through to the state
// store. A failed write-through is logged and memory is kept as is.
type Manager struct {
	store  ports.StateStore
	bus    *Bus
	policy TransitionPolicy
	log    logrus.FieldLogger
	now    func() time.Time

	// writeMu serializes mutations end to end (memory, write-through, audit).
	// mu guards the collections so readers never wait on the store.
	writeMu sync.Mutex
	mu      sync.RWMutex

	companies       []domain.Company
	correspondences []domain.Correspondence
	audit           []domain.AuditEntry

	lastCompanyID        int64
	lastCorrespondenceID int64
	lastAuditID          int64
}

type ManagerOption func(*Manager)

// WithStateStore sets the write-through side channel. Without one the manager
// is purely in-memory.
func WithStateStore(store ports.StateStore) ManagerOption {
	return func(m *Manager) { m.store = store }
}

func WithBus(bus *Bus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

func WithTransitionPolicy(policy TransitionPolicy) ManagerOption {
	return func(m *Manager) {
		if policy != nil {
			m.policy = policy
		}
	}
}

func WithLogger(log logrus.FieldLogger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		policy: AllowAnyTransition,
		log:    logrus.StandardLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hydrate replaces the collections with what the state store holds. Legacy
// correspondence statuses are migrated to the canonical set on the way in.
func (m *Manager) Hydrate(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	snap, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	for i := range snap.Correspondences {
		c := &snap.Correspondences[i]
		status, err := domain.ParseStatus(string(c.Status))
		if err != nil {
			m.log.WithFields(logrus.Fields{
				"correspondence_id": c.ID,
				"status":            c.Status,
			}).Warn("unknown stored status, treating as received")
			status = domain.StatusReceived
		}
		c.Status = status
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.companies = snap.Companies
	m.correspondences = snap.Correspondences
	m.audit = snap.Audit
	m.lastCompanyID = maxCompanyID(m.companies)
	m.lastCorrespondenceID = 0
	for _, c := range m.correspondences {
		m.lastCorrespondenceID = max(m.lastCorrespondenceID, c.ID)
	}
	m.lastAuditID = 0
	for _, e := range m.audit {
		m.lastAuditID = max(m.lastAuditID, e.ID)
	}

	m.log.WithFields(logrus.Fields{
		"companies":       len(m.companies),
		"correspondences": len(m.correspondences),
		"audit_entries":   len(m.audit),
	}).Info("state hydrated")
	return nil
}

// ReplaceCompanies swaps in a freshly fetched company collection. It is a
// refresh, not a mutation, so no audit entry is written.
func (m *Manager) ReplaceCompanies(companies []domain.Company) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.replaceCompanies(companies)
}

// RefreshCompanies re-reads the company collection from source and swaps it
// in. Mutations wait for the fetch, so none lands between the read and the
// swap. On error memory is left as is.
func (m *Manager) RefreshCompanies(ctx context.Context, source ports.CompanySource) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	companies, err := source.ListCompanies(ctx)
	if err != nil {
		return 0, err
	}
	m.replaceCompanies(companies)
	return len(companies), nil
}

func (m *Manager) replaceCompanies(companies []domain.Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies = append([]domain.Company(nil), companies...)
	m.lastCompanyID = max(m.lastCompanyID, maxCompanyID(m.companies))
}

func (m *Manager) CreateCompany(ctx context.Context, in domain.NewCompany) (domain.Company, error) {
	return m.createCompany(ctx, in, false)
}

func (m *Manager) createCompany(ctx context.Context, in domain.NewCompany, implicit bool) (domain.Company, error) {
	if err := in.Validate(); err != nil {
		return domain.Company{}, err
	}

	m.writeMu.Lock()
	m.mu.Lock()
	m.lastCompanyID++
	company := domain.Company{
		ID:          m.lastCompanyID,
		Name:        strings.TrimSpace(in.Name),
		SenderAlias: strings.TrimSpace(in.SenderAlias),
		LogoRef:     in.LogoRef,
		Email:       strings.TrimSpace(in.Email),
		Status:      in.Status,
		Situation:   in.Situation,
		Message:     in.Message,
		CreatedAt:   m.now(),
	}
	m.companies = append(m.companies, company)
	m.mu.Unlock()

	m.writeThrough(ctx, "save company", func(ctx context.Context, s ports.StateStore) error {
		return s.SaveCompany(ctx, company)
	})
	detail := fmt.Sprintf("Company %s created", company.Name)
	if implicit {
		detail = fmt.Sprintf("Company %s created from correspondence intake", company.Name)
	}
	entry := m.appendAudit(ctx, domain.EntityCompany, company.ID, domain.ActionCreate, detail, company)
	m.writeMu.Unlock()

	m.publish(ctx, domain.Event{Type: domain.EventCompanyCreated, Company: &company, Audit: entry, Implicit: implicit})
	return company, nil
}

// DeleteCompany removes the company if present and reports whether it was.
// An unknown id is not an error and leaves the audit log untouched.
func (m *Manager) DeleteCompany(ctx context.Context, id int64) bool {
	m.writeMu.Lock()
	m.mu.Lock()
	idx := m.companyIndex(id)
	if idx < 0 {
		m.mu.Unlock()
		m.writeMu.Unlock()
		return false
	}
	company := m.companies[idx]
	m.companies = append(m.companies[:idx], m.companies[idx+1:]...)
	m.mu.Unlock()

	m.writeThrough(ctx, "delete company", func(ctx context.Context, s ports.StateStore) error {
		return s.DeleteCompany(ctx, id)
	})
	entry := m.appendAudit(ctx, domain.EntityCompany, id, domain.ActionDelete, fmt.Sprintf("Company %s deleted", company.Name), company)
	m.writeMu.Unlock()

	m.publish(ctx, domain.Event{Type: domain.EventCompanyDeleted, Company: &company, Audit: entry})
	return true
}

func (m *Manager) UpdateCompanyStatus(ctx context.Context, id int64, patch domain.CompanyStatusPatch) (domain.Company, error) {
	if patch.Empty() {
		return domain.Company{}, domain.NewValidationError("", "at least one of statusEmpresa, situacao, mensagem is required")
	}

	m.writeMu.Lock()
	m.mu.Lock()
	idx := m.companyIndex(id)
	if idx < 0 {
		m.mu.Unlock()
		m.writeMu.Unlock()
		return domain.Company{}, &domain.NotFoundError{Kind: domain.EntityCompany, ID: id}
	}
	patch.Apply(&m.companies[idx])
	company := m.companies[idx]
	m.mu.Unlock()

	m.writeThrough(ctx, "save company", func(ctx context.Context, s ports.StateStore) error {
		return s.SaveCompany(ctx, company)
	})
	entry := m.appendAudit(ctx, domain.EntityCompany, id, domain.ActionUpdate, companyStatusDetail(company), company)
	m.writeMu.Unlock()

	m.publish(ctx, domain.Event{Type: domain.EventCompanyUpdated, Company: &company, Audit: entry})
	return company, nil
}

func (m *Manager) CreateCorrespondence(ctx context.Context, in domain.NewCorrespondence) (domain.Correspondence, error) {
	if err := in.Validate(); err != nil {
		return domain.Correspondence{}, err
	}

	m.writeMu.Lock()
	m.mu.Lock()
	m.lastCorrespondenceID++
	corr := domain.Correspondence{
		ID:          m.lastCorrespondenceID,
		Sender:      strings.TrimSpace(in.Sender),
		CompanyName: strings.TrimSpace(in.CompanyName),
		ReceivedAt:  in.ReceivedAt.UTC(),
		PhotoRef:    in.PhotoRef,
		Status:      in.Status,
	}
	if in.ReceivedAt.IsZero() {
		corr.ReceivedAt = m.now()
	}
	if in.NotifiedAt != nil {
		t := in.NotifiedAt.UTC()
		corr.NotifiedAt = &t
	}
	if corr.Status == "" {
		corr.Status = domain.StatusReceived
	}
	m.correspondences = append(m.correspondences, corr)
	m.mu.Unlock()

	m.writeThrough(ctx, "save correspondence", func(ctx context.Context, s ports.StateStore) error {
		return s.SaveCorrespondence(ctx, corr)
	})
	entry := m.appendAudit(ctx, domain.EntityCorrespondence, corr.ID, domain.ActionCreate,
		fmt.Sprintf("Correspondence from %s registered", corr.Sender), corr)
	m.writeMu.Unlock()

	m.publish(ctx, domain.Event{Type: domain.EventCorrespondenceCreated, Correspondence: &corr, Audit: entry})
	return corr, nil
}

// UpdateCorrespondenceStatus merges status and patch into the record in
// place. Whether the move is allowed is up to the transition policy; the
// default accepts any pair.
func (m *Manager) UpdateCorrespondenceStatus(ctx context.Context, id int64, status domain.Status, patch domain.CorrespondencePatch) (domain.Correspondence, error) {
	if !status.Valid() {
		return domain.Correspondence{}, domain.NewValidationError("statusCorresp", "unknown status "+string(status))
	}

	m.writeMu.Lock()
	m.mu.Lock()
	idx := m.correspondenceIndex(id)
	if idx < 0 {
		m.mu.Unlock()
		m.writeMu.Unlock()
		return domain.Correspondence{}, &domain.NotFoundError{Kind: domain.EntityCorrespondence, ID: id}
	}
	previous := m.correspondences[idx].Status
	if err := m.policy(previous, status); err != nil {
		m.mu.Unlock()
		m.writeMu.Unlock()
		return domain.Correspondence{}, err
	}
	patch.Apply(&m.correspondences[idx])
	m.correspondences[idx].Status = status
	corr := m.correspondences[idx]
	m.mu.Unlock()

	m.writeThrough(ctx, "save correspondence", func(ctx context.Context, s ports.StateStore) error {
		return s.SaveCorrespondence(ctx, corr)
	})
	entry := m.appendAudit(ctx, domain.EntityCorrespondence, id, domain.ActionUpdate,
		fmt.Sprintf("Status changed from %s to %s", previous, status), corr)
	m.writeMu.Unlock()

	m.publish(ctx, domain.Event{Type: domain.EventCorrespondenceUpdated, Correspondence: &corr, Audit: entry})
	return corr, nil
}

// DeleteCorrespondence follows the same silent-miss policy as DeleteCompany.
func (m *Manager) DeleteCorrespondence(ctx context.Context, id int64) bool {
	m.writeMu.Lock()
	m.mu.Lock()
	idx := m.correspondenceIndex(id)
	if idx < 0 {
		m.mu.Unlock()
		m.writeMu.Unlock()
		return false
	}
	corr := m.correspondences[idx]
	m.correspondences = append(m.correspondences[:idx], m.correspondences[idx+1:]...)
	m.mu.Unlock()

	m.writeThrough(ctx, "delete correspondence", func(ctx context.Context, s ports.StateStore) error {
		return s.DeleteCorrespondence(ctx, id)
	})
	entry := m.appendAudit(ctx, domain.EntityCorrespondence, id, domain.ActionDelete,
		fmt.Sprintf("Correspondence from %s deleted", corr.Sender), corr)
	m.writeMu.Unlock()

	m.publish(ctx, domain.Event{Type: domain.EventCorrespondenceDeleted, Correspondence: &corr, Audit: entry})
	return true
}

// AppendAuditEntry is the bare append. It assigns id and timestamp and never
// fails; a store failure is logged.
func (m *Manager) AppendAuditEntry(ctx context.Context, kind domain.EntityKind, entityID int64, action domain.Action, detail string) domain.AuditEntry {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.appendAudit(ctx, kind, entityID, action, detail, nil)
}

// appendAudit must be called with writeMu held.
func (m *Manager) appendAudit(ctx context.Context, kind domain.EntityKind, entityID int64, action domain.Action, detail string, subject any) domain.AuditEntry {
	m.mu.Lock()
	m.lastAuditID++
	entry := domain.AuditEntry{
		ID:         m.lastAuditID,
		At:         m.now(),
		EntityKind: kind,
		EntityID:   entityID,
		Action:     action,
		Detail:     detail,
		Actor:      ActorFromContext(ctx),
	}
	m.audit = append(m.audit, entry)
	m.mu.Unlock()

	payload := json.RawMessage(`{}`)
	if subject != nil {
		if b, err := json.Marshal(subject); err == nil {
			payload = b
		}
	}
	m.writeThrough(ctx, "append audit", func(ctx context.Context, s ports.StateStore) error {
		return s.AppendAudit(ctx, entry, payload)
	})
	return entry
}

func (m *Manager) writeThrough(ctx context.Context, op string, fn func(context.Context, ports.StateStore) error) {
	if m.store == nil {
		return
	}
	// The in-memory change is already visible; a cancelled request must not
	// drop its write-through.
	if err := fn(context.WithoutCancel(ctx), m.store); err != nil {
		m.log.WithError(err).WithField("op", op).Error("write-through failed, keeping in-memory state")
	}
}

func (m *Manager) publish(ctx context.Context, event domain.Event) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, event)
}

func (m *Manager) companyIndex(id int64) int {
	for i := range m.companies {
		if m.companies[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) correspondenceIndex(id int64) int {
	for i := range m.correspondences {
		if m.correspondences[i].ID == id {
			return i
		}
	}
	return -1
}

func maxCompanyID(companies []domain.Company) int64 {
	var id int64
	for _, c := range companies {
		id = max(id, c.ID)
	}
	return id
}

func companyStatusDetail(c domain.Company) string {
	parts := make([]string, 0, 3)
	if c.Status != "" {
		parts = append(parts, "status="+c.Status)
	}
	if c.Situation != "" {
		parts = append(parts, "situacao="+c.Situation)
	}
	if c.Message != "" {
		parts = append(parts, "mensagem="+c.Message)
	}
	return fmt.Sprintf("Company %s annotations updated: %s", c.Name, strings.Join(parts, ", "))
}
