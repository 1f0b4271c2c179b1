package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/validator"
	"github.com/google/uuid"
)

type testDefinitionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewTestDefinitionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) TestDefinitionService {
	return &testDefinitionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

func (s *testDefinitionService) Create(ctx context.Context, principal models.Principal, req *CreateTestDefinitionRequest) (*models.TestDefinition, error) {
	if !principal.CanAuthor() {
		return nil, NewPermissionError(principal.ID, req.ID, "test_definition", "create", "only teachers and admins can create tests")
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	now := s.now()
	def := &models.TestDefinition{
		ID:          strings.TrimSpace(req.ID),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Duration:    *req.Duration,
		CreatedBy:   principal.ID,
		Questions:   req.Questions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	if err := s.validator.ValidateDefinition(def); err != nil {
		return nil, err
	}

	if err := s.repo.TestDefinition().Create(ctx, def); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, ErrTestDefinitionExists
		}
		return nil, fmt.Errorf("failed to create test definition: %w", err)
	}

	s.logger.Info("Test definition created",
		"test_definition_id", def.ID,
		"created_by", principal.ID,
		"questions", def.QuestionCount())

	return def, nil
}

// GetByID exposes the full definition, correct answers included, so only
// its author and admins may read it.
func (s *testDefinitionService) GetByID(ctx context.Context, id string, principal models.Principal) (*models.TestDefinition, error) {
	def, err := s.repo.TestDefinition().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestDefinitionNotFound
		}
		return nil, fmt.Errorf("failed to get test definition: %w", err)
	}

	if principal.Role != models.RoleAdmin && def.CreatedBy != principal.ID {
		return nil, ErrTestDefinitionNotFound
	}
	return def, nil
}
