package domain

import (
	"strings"
	"time"
)

type Status string

const (
	StatusReceived  Status = "RECEIVED"
	StatusNotified  Status = "NOTIFIED"
	StatusWithdrawn Status = "WITHDRAWN"
	StatusReturned  Status = "RETURNED"
)

// Values written by older deployments. They are accepted on input and mapped
// onto the canonical set; they are never emitted.
const (
	legacyStatusAnnounced   = "ANNOUNCED"
	legacyStatusMisuse      = "MISUSE"
	legacyStatusUnderReview = "UNDER_REVIEW"
)

var legacyStatuses = map[string]Status{
	legacyStatusAnnounced:   StatusNotified,
	legacyStatusUnderReview: StatusReceived,
	legacyStatusMisuse:      StatusReturned,
}

func Statuses() []Status {
	return []Status{StatusReceived, StatusNotified, StatusWithdrawn, StatusReturned}
}

func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusNotified, StatusWithdrawn, StatusReturned:
		return true
	}
	return false
}

// ParseStatus accepts canonical and legacy values, case-insensitively, and
// returns the canonical status.
func ParseStatus(raw string) (Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if s := Status(normalized); s.Valid() {
		return s, nil
	}
	if s, ok := legacyStatuses[normalized]; ok {
		return s, nil
	}
	return "", NewValidationError("statusCorresp", "unknown status "+raw)
}

type Correspondence struct {
	ID          int64      `json:"id"`
	Sender      string     `json:"remetente"`
	CompanyName string     `json:"nomeEmpresaConexa"`
	ReceivedAt  time.Time  `json:"dataRecebimento"`
	NotifiedAt  *time.Time `json:"dataAvisoConexa,omitempty"`
	PhotoRef    string     `json:"fotoCorrespondencia,omitempty"`
	Status      Status     `json:"statusCorresp"`
}

type NewCorrespondence struct {
	Sender      string
	CompanyName string
	ReceivedAt  time.Time
	NotifiedAt  *time.Time
	PhotoRef    string
	Status      Status
}

func (c NewCorrespondence) Validate() error {
	if strings.TrimSpace(c.Sender) == "" {
		return NewValidationError("remetente", "sender is required")
	}
	if c.Status != "" && !c.Status.Valid() {
		return NewValidationError("statusCorresp", "unknown status "+string(c.Status))
	}
	return nil
}

// CorrespondencePatch holds the extra fields merged alongside a status change.
type CorrespondencePatch struct {
	Sender      *string
	CompanyName *string
	NotifiedAt  *time.Time
	PhotoRef    *string
}

func (p CorrespondencePatch) Apply(c *Correspondence) {
	if p.Sender != nil {
		c.Sender = *p.Sender
	}
	if p.CompanyName != nil {
		c.CompanyName = *p.CompanyName
	}
	if p.NotifiedAt != nil {
		t := p.NotifiedAt.UTC()
		c.NotifiedAt = &t
	}
	if p.PhotoRef != nil {
		c.PhotoRef = *p.PhotoRef
	}
}
