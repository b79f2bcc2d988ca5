package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

// memoryKeys follows the SQLite repository: one token per name.
type memoryKeys struct {
	mu      sync.Mutex
	byHash  map[string]domain.APIKey
	findErr error
	touches int
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{byHash: map[string]domain.APIKey{}}
}

func (m *memoryKeys) FindByTokenHash(_ context.Context, tokenHash string) (domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return domain.APIKey{}, m.findErr
	}
	key, ok := m.byHash[tokenHash]
	if !ok {
		return domain.APIKey{}, domain.ErrNotFound
	}
	return key, nil
}

func (m *memoryKeys) Upsert(_ context.Context, key domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, k := range m.byHash {
		if k.Name == key.Name && hash != key.TokenHash {
			delete(m.byHash, hash)
		}
	}
	if old, ok := m.byHash[key.TokenHash]; ok {
		key.CreatedAt, key.LastUsedAt = old.CreatedAt, old.LastUsedAt
	}
	m.byHash[key.TokenHash] = key
	return nil
}

func (m *memoryKeys) TouchLastUsed(_ context.Context, tokenHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.byHash[tokenHash]
	key.LastUsedAt = &at
	m.byHash[tokenHash] = key
	m.touches++
	return nil
}

func (m *memoryKeys) Deactivate(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, k := range m.byHash {
		if k.Name == name {
			k.Active = false
			m.byHash[hash] = k
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memoryKeys) List(context.Context) ([]domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]domain.APIKey, 0, len(m.byHash))
	for _, k := range m.byHash {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys, nil
}

func newAuthFixture() (*AuthService, *memoryKeys, *testClock) {
	clock := &testClock{t: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)}
	repo := newMemoryKeys()
	svc := NewAuthService(repo)
	svc.now = clock.now
	return svc, repo, clock
}

func TestAuthenticateResolvesKeyName(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx, "token-1", "front-desk"))

	key, err := svc.Authenticate(ctx, " token-1 ")
	require.NoError(t, err)
	assert.Equal(t, "front-desk", key.Name)
	assert.Equal(t, HashToken("token-1"), key.TokenHash)
}

func TestAuthenticateRejects(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx, "retired-token", "retired"))
	require.NoError(t, svc.Revoke(ctx, "retired"))

	for _, token := range []string{"", "   ", "unknown", "retired-token"} {
		_, err := svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrUnauthorized, token)
	}

	boom := errors.New("db down")
	repo.findErr = boom
	_, err := svc.Authenticate(ctx, "token")
	assert.ErrorIs(t, err, boom)
}

func TestAuthenticateThrottlesLastUsed(t *testing.T) {
	svc, repo, clock := newAuthFixture()
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx, "token", "desk"))

	key, err := svc.Authenticate(ctx, "token")
	require.NoError(t, err)
	require.NotNil(t, key.LastUsedAt)
	assert.Equal(t, clock.now(), *key.LastUsedAt)

	clock.advance(30 * time.Second)
	_, err = svc.Authenticate(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.touches)

	clock.advance(30 * time.Second)
	_, err = svc.Authenticate(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.touches)
}

func TestBootstrap(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, "", "ignored"))
	assert.Empty(t, repo.byHash)

	require.NoError(t, svc.Bootstrap(ctx, "secret", " "))
	key := repo.byHash[HashToken("secret")]
	assert.Equal(t, "bootstrap", key.Name)
	assert.True(t, key.Active)
}

func TestIssueReplacesPreviousToken(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	first, err := svc.Issue(ctx, "night-shift")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, "mr_"))

	second, err := svc.Issue(ctx, "night-shift")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = svc.Authenticate(ctx, first)
	assert.ErrorIs(t, err, ErrUnauthorized)
	key, err := svc.Authenticate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "night-shift", key.Name)

	keys, err := svc.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestIssueAndRevokeNeedAName(t *testing.T) {
	svc, _, _ := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Issue(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, svc.Revoke(ctx, ""), domain.ErrValidation)
	assert.ErrorIs(t, svc.Revoke(ctx, "nobody"), domain.ErrNotFound)
}
