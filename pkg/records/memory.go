package records

import (
	"context"
	"sort"
	"sync"

	"github.com/xhad/campus/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStudents keeps students in process. It is used when no database
// is configured.
type MemoryStudents struct {
	mu       sync.RWMutex
	students []models.Student
}

func NewMemoryStudents(students ...models.Student) *MemoryStudents {
	m := &MemoryStudents{}
	for _, s := range students {
		m.Add(context.Background(), s)
	}
	return m
}

func (m *MemoryStudents) All(context.Context) ([]models.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Student{}, m.students...), nil
}

func (m *MemoryStudents) Add(_ context.Context, s models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = primitive.NewObjectID()
	m.students = append(m.students, s)
	return nil
}

type MemoryEvents struct {
	mu     sync.RWMutex
	events []models.Event
}

func NewMemoryEvents() *MemoryEvents {
	return &MemoryEvents{}
}

func (m *MemoryEvents) All(context.Context) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := append([]models.Event{}, m.events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })
	return events, nil
}

func (m *MemoryEvents) Add(_ context.Context, e models.Event) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = primitive.NewObjectID()
	m.events = append(m.events, e)
	return e.ID.Hex(), nil
}

func (m *MemoryEvents) Delete(_ context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.events {
		if e.ID == oid {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
