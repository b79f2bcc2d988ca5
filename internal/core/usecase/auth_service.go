package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
	"github.com/atvirokodosprendimai/mailroom/internal/core/ports"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	defaultBootstrapKeyName = "bootstrap"
	tokenPrefix             = "mr_"
	// lastUsedResolution bounds how often a busy key writes its last-use time.
	lastUsedResolution = time.Minute
)

// AuthService manages operator API keys. The key name is recorded as the
// audit actor for every mutation made with it.
type AuthService struct {
	repo ports.APIKeyRepository
	now  func() time.Time
}

func NewAuthService(repo ports.APIKeyRepository) *AuthService {
	return &AuthService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.APIKey{}, ErrUnauthorized
	}

	key, err := s.repo.FindByTokenHash(ctx, HashToken(token))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.APIKey{}, ErrUnauthorized
	case err != nil:
		return domain.APIKey{}, err
	case !key.Active:
		return domain.APIKey{}, ErrUnauthorized
	}

	now := s.now()
	if key.LastUsedAt == nil || now.Sub(*key.LastUsedAt) >= lastUsedResolution {
		// A failed usage update does not reject the request.
		if s.repo.TouchLastUsed(ctx, key.TokenHash, now) == nil {
			key.LastUsedAt = &now
		}
	}
	return key, nil
}

// Bootstrap registers token under name so a fresh deployment can be reached.
// An empty token is a no-op.
func (s *AuthService) Bootstrap(ctx context.Context, token, name string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		name = defaultBootstrapKeyName
	}
	return s.register(ctx, token, name)
}

// Issue generates a new token for name, replacing any token the name held.
// The plain token is only ever returned here.
func (s *AuthService) Issue(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError("name", "key name is required")
	}
	token := tokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.register(ctx, token, name); err != nil {
		return "", err
	}
	return token, nil
}

func (s *AuthService) Revoke(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewValidationError("name", "key name is required")
	}
	return s.repo.Deactivate(ctx, name)
}

func (s *AuthService) Keys(ctx context.Context) ([]domain.APIKey, error) {
	return s.repo.List(ctx)
}

func (s *AuthService) register(ctx context.Context, token, name string) error {
	return s.repo.Upsert(ctx, domain.APIKey{
		TokenHash: HashToken(token),
		Name:      name,
		Active:    true,
		CreatedAt: s.now(),
	})
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
