package postgres

import (
	"errors"

	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"gorm.io/gorm"
)

const activePairIndex = "idx_test_attempts_active_pair"

// SharedHelpers holds query helpers reused by the postgres repositories.
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplyPagination applies limit/offset when set
func (h *SharedHelpers) ApplyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// translateNotFound maps gorm's not-found error to the repository sentinel.
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}
