package sqlite

import (
	"time"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

type companyModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name        string    `gorm:"column:name;not null"`
	SenderAlias string    `gorm:"column:sender_alias;not null"`
	LogoRef     string    `gorm:"column:logo_ref;not null"`
	Email       string    `gorm:"column:email;not null"`
	Status      string    `gorm:"column:status;not null"`
	Situation   string    `gorm:"column:situation;not null"`
	Message     string    `gorm:"column:message;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
}

func (companyModel) TableName() string {
	return "companies"
}

func companyFromDomain(c domain.Company) companyModel {
	return companyModel{
		ID:          c.ID,
		Name:        c.Name,
		SenderAlias: c.SenderAlias,
		LogoRef:     c.LogoRef,
		Email:       c.Email,
		Status:      c.Status,
		Situation:   c.Situation,
		Message:     c.Message,
		CreatedAt:   c.CreatedAt.UTC(),
	}
}

func (m companyModel) toDomain() domain.Company {
	return domain.Company{
		ID:          m.ID,
		Name:        m.Name,
		SenderAlias: m.SenderAlias,
		LogoRef:     m.LogoRef,
		Email:       m.Email,
		Status:      m.Status,
		Situation:   m.Situation,
		Message:     m.Message,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type correspondenceModel struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement:false"`
	Sender      string     `gorm:"column:sender;not null"`
	CompanyName string     `gorm:"column:company_name;not null"`
	ReceivedAt  time.Time  `gorm:"column:received_at;not null"`
	NotifiedAt  *time.Time `gorm:"column:notified_at"`
	PhotoRef    string     `gorm:"column:photo_ref;not null"`
	Status      string     `gorm:"column:status;not null"`
}

func (correspondenceModel) TableName() string {
	return "correspondences"
}

func correspondenceFromDomain(c domain.Correspondence) correspondenceModel {
	m := correspondenceModel{
		ID:          c.ID,
		Sender:      c.Sender,
		CompanyName: c.CompanyName,
		ReceivedAt:  c.ReceivedAt.UTC(),
		PhotoRef:    c.PhotoRef,
		Status:      string(c.Status),
	}
	if c.NotifiedAt != nil {
		t := c.NotifiedAt.UTC()
		m.NotifiedAt = &t
	}
	return m
}

// toDomain returns the status as stored; the manager maps legacy values.
func (m correspondenceModel) toDomain() domain.Correspondence {
	c := domain.Correspondence{
		ID:          m.ID,
		Sender:      m.Sender,
		CompanyName: m.CompanyName,
		ReceivedAt:  m.ReceivedAt.UTC(),
		PhotoRef:    m.PhotoRef,
		Status:      domain.Status(m.Status),
	}
	if m.NotifiedAt != nil {
		t := m.NotifiedAt.UTC()
		c.NotifiedAt = &t
	}
	return c
}

type auditEntryModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement:false"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null"`
	EntityKind string    `gorm:"column:entity_kind;not null"`
	EntityID   int64     `gorm:"column:entity_id;not null"`
	Action     string    `gorm:"column:action;not null"`
	Detail     string    `gorm:"column:detail;not null"`
	Actor      string    `gorm:"column:actor;not null"`
}

func (auditEntryModel) TableName() string {
	return "audit_entries"
}

func (m auditEntryModel) toDomain() domain.AuditEntry {
	return domain.AuditEntry{
		ID:         m.ID,
		At:         m.OccurredAt.UTC(),
		EntityKind: domain.EntityKind(m.EntityKind),
		EntityID:   m.EntityID,
		Action:     domain.Action(m.Action),
		Detail:     m.Detail,
		Actor:      m.Actor,
	}
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

type apiKeyModel struct {
	TokenHash  string     `gorm:"column:token_hash;primaryKey"`
	Name       string     `gorm:"column:name;not null"`
	Active     bool       `gorm:"column:active;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;not null"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
}

func (m apiKeyModel) toDomain() domain.APIKey {
	key := domain.APIKey{
		TokenHash: m.TokenHash,
		Name:      m.Name,
		Active:    m.Active,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.LastUsedAt != nil {
		t := m.LastUsedAt.UTC()
		key.LastUsedAt = &t
	}
	return key
}

func (apiKeyModel) TableName() string {
	return "api_keys"
}
