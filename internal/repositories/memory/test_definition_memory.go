package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

type TestDefinitionMemory struct {
	mu          sync.RWMutex
	definitions map[string]*models.TestDefinition
}

func NewTestDefinitionMemory(defs ...*models.TestDefinition) *TestDefinitionMemory {
	m := &TestDefinitionMemory{definitions: make(map[string]*models.TestDefinition)}
	for _, d := range defs {
		m.definitions[d.ID] = cloneDefinition(d)
	}
	return m
}

var _ repositories.TestDefinitionRepository = (*TestDefinitionMemory)(nil)

func (m *TestDefinitionMemory) Create(ctx context.Context, def *models.TestDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.definitions[def.ID]; exists {
		return repositories.ErrAlreadyExists
	}
	m.definitions[def.ID] = cloneDefinition(def)
	return nil
}

func (m *TestDefinitionMemory) GetByID(ctx context.Context, id string) (*models.TestDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.definitions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneDefinition(d), nil
}

func (m *TestDefinitionMemory) GetIDsByCreator(ctx context.Context, createdBy string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := []string{}
	for id, d := range m.definitions {
		if d.CreatedBy == createdBy {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneDefinition(d *models.TestDefinition) *models.TestDefinition {
	c := *d
	c.Questions = make([]models.Question, len(d.Questions))
	for i, q := range d.Questions {
		q.Options = append([]string(nil), q.Options...)
		c.Questions[i] = q
	}
	return &c
}
