package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

type APIKeyRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error)
	// Upsert replaces the key registered under the same name, so re-issuing
	// a name invalidates its previous token.
	Upsert(ctx context.Context, key domain.APIKey) error
	TouchLastUsed(ctx context.Context, tokenHash string, at time.Time) error
	Deactivate(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.APIKey, error)
}
