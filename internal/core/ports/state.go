package ports

import (
	"context"
	"encoding/json"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

// StateStore is the persistence side channel the lifecycle manager writes
// through to after each in-memory mutation.
type StateStore interface {
	Load(ctx context.Context) (domain.Snapshot, error)
	SaveCompany(ctx context.Context, company domain.Company) error
	DeleteCompany(ctx context.Context, id int64) error
	SaveCorrespondence(ctx context.Context, corr domain.Correspondence) error
	DeleteCorrespondence(ctx context.Context, id int64) error
	// AppendAudit stores the entry together with an outbox row carrying
	// payload, atomically.
	AppendAudit(ctx context.Context, entry domain.AuditEntry, payload json.RawMessage) error
}

// CompanySource is where a delayed refresh re-reads the company collection.
type CompanySource interface {
	ListCompanies(ctx context.Context) ([]domain.Company, error)
}
