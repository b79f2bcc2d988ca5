package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/mailroom/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
)

// StateStore persists the manager's collections. Rows are keyed by the ids
// the manager assigns, so saves are upserts.
type StateStore struct {
	db *gormsqlite.DB
}

var (
	_ ports.StateStore    = (*StateStore)(nil)
	_ ports.CompanySource = (*StateStore)(nil)
)

func NewStateStore(db *gormsqlite.DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Load(ctx context.Context) (domain.Snapshot, error) {
	var (
		companies []companyModel
		corrs     []correspondenceModel
		audit     []auditEntryModel
	)
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Order("id ASC").Find(&companies).Error; err != nil {
			return fmt.Errorf("load companies: %w", err)
		}
		if err := tx.Order("id ASC").Find(&corrs).Error; err != nil {
			return fmt.Errorf("load correspondences: %w", err)
		}
		if err := tx.Order("id ASC").Find(&audit).Error; err != nil {
			return fmt.Errorf("load audit entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{
		Companies:       make([]domain.Company, 0, len(companies)),
		Correspondences: make([]domain.Correspondence, 0, len(corrs)),
		Audit:           make([]domain.AuditEntry, 0, len(audit)),
	}
	for _, m := range companies {
		snap.Companies = append(snap.Companies, m.toDomain())
	}
	for _, m := range corrs {
		snap.Correspondences = append(snap.Correspondences, m.toDomain())
	}
	for _, m := range audit {
		snap.Audit = append(snap.Audit, m.toDomain())
	}
	return snap, nil
}

func (s *StateStore) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	var rows []companyModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Order("id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	out := make([]domain.Company, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *StateStore) SaveCompany(ctx context.Context, company domain.Company) error {
	model := companyFromDomain(company)
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return upsert(tx.DB, &model)
	})
	if err != nil {
		return fmt.Errorf("save company %d: %w", company.ID, err)
	}
	return nil
}

func (s *StateStore) DeleteCompany(ctx context.Context, id int64) error {
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).Delete(&companyModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete company %d: %w", id, err)
	}
	return nil
}

func (s *StateStore) SaveCorrespondence(ctx context.Context, corr domain.Correspondence) error {
	model := correspondenceFromDomain(corr)
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return upsert(tx.DB, &model)
	})
	if err != nil {
		return fmt.Errorf("save correspondence %d: %w", corr.ID, err)
	}
	return nil
}

func (s *StateStore) DeleteCorrespondence(ctx context.Context, id int64) error {
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).Delete(&correspondenceModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete correspondence %d: %w", id, err)
	}
	return nil
}

// AppendAudit inserts the entry and its outbox row in one transaction.
func (s *StateStore) AppendAudit(ctx context.Context, entry domain.AuditEntry, payload json.RawMessage) error {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return insertAuditAndOutbox(tx.DB, entry, payload)
	})
	if err != nil {
		return fmt.Errorf("append audit %d: %w", entry.ID, err)
	}
	return nil
}

func insertAuditAndOutbox(tx *gorm.DB, entry domain.AuditEntry, payload json.RawMessage) error {
	at := entry.At.UTC()
	audit := auditEntryModel{
		ID:         entry.ID,
		OccurredAt: at,
		EntityKind: string(entry.EntityKind),
		EntityID:   entry.EntityID,
		Action:     string(entry.Action),
		Detail:     entry.Detail,
		Actor:      entry.Actor,
	}
	if err := tx.Create(&audit).Error; err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	eventType := domain.EventTypeFor(entry.EntityKind, entry.Action)
	envelope := domain.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     string(eventType),
		SchemaVersion: domain.CurrentEventSchemaVersion,
		AggregateType: entry.EntityKind.Label(),
		AggregateID:   entry.EntityID,
		AuditID:       entry.ID,
		OccurredAt:    at,
		Actor:         entry.Actor,
		Payload:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	outbox := outboxEventModel{
		EventID:       envelope.EventID,
		Topic:         "events." + envelope.EventType,
		PayloadJSON:   string(body),
		Status:        domain.OutboxPending,
		NextAttemptAt: at,
		CreatedAt:     at,
	}
	if err := tx.Create(&outbox).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func upsert(tx *gorm.DB, model any) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
}
