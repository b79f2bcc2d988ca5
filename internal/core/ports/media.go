package ports

import (
	"context"
	"io"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

type PhotoStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
}

// Notifier tells a company that mail has arrived for it.
type Notifier interface {
	NotifyCorrespondence(ctx context.Context, company domain.Company, corr domain.Correspondence) error
}
