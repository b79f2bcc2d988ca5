package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/mailroom/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

type APIKeyRepository struct {
	db *gormsqlite.DB
}

func NewAPIKeyRepository(db *gormsqlite.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error) {
	var model apiKeyModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("token_hash = ?", tokenHash).Take(&model).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.APIKey{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.APIKey{}, fmt.Errorf("find api key: %w", err)
	}
	return model.toDomain(), nil
}

// Upsert registers key under its name. A row with the same token keeps its
// creation and last-use times; any other token held by that name is dropped.
func (r *APIKeyRepository) Upsert(ctx context.Context, key domain.APIKey) error {
	model := apiKeyModel{
		TokenHash: key.TokenHash,
		Name:      key.Name,
		Active:    key.Active,
		CreatedAt: key.CreatedAt.UTC(),
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var existing apiKeyModel
		err := tx.Where("token_hash = ?", key.TokenHash).Take(&existing).Error
		switch {
		case err == nil:
			model.CreatedAt = existing.CreatedAt
			model.LastUsedAt = existing.LastUsedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if err := tx.Where("name = ? OR token_hash = ?", key.Name, key.TokenHash).Delete(&apiKeyModel{}).Error; err != nil {
			return err
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert api key %q: %w", key.Name, err)
	}
	return nil
}

func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, tokenHash string, at time.Time) error {
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Model(&apiKeyModel{}).Where("token_hash = ?", tokenHash).Update("last_used_at", at.UTC()).Error
	})
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// Deactivate keeps the row so the name stays visible in listings.
func (r *APIKeyRepository) Deactivate(ctx context.Context, name string) error {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Model(&apiKeyModel{}).Where("name = ?", name).Update("active", false)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("deactivate api key %q: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("api key %q: %w", name, domain.ErrNotFound)
	}
	return nil
}

func (r *APIKeyRepository) List(ctx context.Context) ([]domain.APIKey, error) {
	var models []apiKeyModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Order("name").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	keys := make([]domain.APIKey, 0, len(models))
	for _, m := range models {
		keys = append(keys, m.toDomain())
	}
	return keys, nil
}
