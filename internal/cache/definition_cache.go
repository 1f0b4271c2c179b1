package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

const definitionKeyPrefix = "test_definition:"

// CachedTestDefinitionRepository is a read-through cache in front of a
// TestDefinitionRepository. Definitions never change once attempts exist,
// so entries only expire by TTL. Cache failures fall back to the store.
type CachedTestDefinitionRepository struct {
	next   repositories.TestDefinitionRepository
	cache  CacheService
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedTestDefinitionRepository(next repositories.TestDefinitionRepository, cache CacheService, ttl time.Duration, logger *slog.Logger) *CachedTestDefinitionRepository {
	return &CachedTestDefinitionRepository{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

var _ repositories.TestDefinitionRepository = (*CachedTestDefinitionRepository)(nil)

func (c *CachedTestDefinitionRepository) Create(ctx context.Context, def *models.TestDefinition) error {
	if err := c.next.Create(ctx, def); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, definitionKey(def.ID), def, c.ttl); err != nil {
		c.logger.Warn("Failed to cache test definition", "test_definition_id", def.ID, "error", err)
	}
	return nil
}

func (c *CachedTestDefinitionRepository) GetByID(ctx context.Context, id string) (*models.TestDefinition, error) {
	var def models.TestDefinition
	err := c.cache.Get(ctx, definitionKey(id), &def)
	if err == nil {
		return &def, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("Test definition cache read failed", "test_definition_id", id, "error", err)
	}

	fresh, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, definitionKey(id), fresh, c.ttl); err != nil {
		c.logger.Warn("Failed to cache test definition", "test_definition_id", id, "error", err)
	}
	return fresh, nil
}

// GetIDsByCreator is not cached; new definitions must show up immediately.
func (c *CachedTestDefinitionRepository) GetIDsByCreator(ctx context.Context, createdBy string) ([]string, error) {
	return c.next.GetIDsByCreator(ctx, createdBy)
}

func definitionKey(id string) string {
	return definitionKeyPrefix + id
}
