package usecase

import "github.com/atvirokodosprendimai/mailroom/internal/core/domain"

// TransitionPolicy decides whether a correspondence may move from one status
// to another. A non-nil error rejects the update before anything changes.
type TransitionPolicy func(from, to domain.Status) error

// AllowAnyTransition accepts every pair, including moving a withdrawn item
// back to received.
func AllowAnyTransition(_, _ domain.Status) error {
	return nil
}
