// Package memory is an in-process storage.Storage. Tests run the reference
// handlers over it.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aanand-mishra/students-client/internal/storage"
	"github.com/aanand-mishra/students-client/internal/types"
	"github.com/google/uuid"
)

// Memory keeps students in insertion order.
type Memory struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]types.Student
}

var _ storage.Storage = (*Memory)(nil)

// New returns an empty store.
func New() *Memory {
	return &Memory{byID: make(map[string]types.Student)}
}

func (m *Memory) CreateStudent(_ context.Context, in types.StudentInput) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := in.WithID(uuid.New().String())
	m.byID[s.ID] = s
	m.order = append(m.order, s.ID)

	return s, nil
}

func (m *Memory) GetStudentByID(_ context.Context, id string) (types.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byID[id]
	if !ok {
		return types.Student{}, fmt.Errorf("no student found with id: %s: %w", id, storage.ErrNotFound)
	}
	return s, nil
}

func (m *Memory) GetStudents(ctx context.Context) ([]types.Student, error) {
	return m.SearchStudents(ctx, "")
}

func (m *Memory) SearchStudents(_ context.Context, query string) ([]types.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	students := make([]types.Student, 0, len(m.order))
	for _, id := range m.order {
		if s := m.byID[id]; storage.Matches(s, query) {
			students = append(students, s)
		}
	}
	return students, nil
}

func (m *Memory) UpdateStudentByID(_ context.Context, id string, in types.StudentInput) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return types.Student{}, fmt.Errorf("no student found with id: %s: %w", id, storage.ErrNotFound)
	}

	s := in.WithID(id)
	m.byID[id] = s
	return s, nil
}

func (m *Memory) DeleteStudentByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("no student found with id: %s: %w", id, storage.ErrNotFound)
	}

	delete(m.byID, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
