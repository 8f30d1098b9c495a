package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opencourse/grader/internal/grading"
)

// MemoryStore is an in-memory Store for offline use and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Record // key: student|course|module
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]Record{}}
}

func memKey(studentID, courseID, moduleKey string) string {
	return studentID + "|" + courseID + "|" + moduleKey
}

func (m *MemoryStore) LookupState(_ context.Context, studentID, courseID, moduleKey string) (*grading.ModuleState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.rows[memKey(studentID, courseID, moduleKey)]
	if !ok {
		return nil, nil
	}
	return &grading.ModuleState{Grade: rec.Grade, MaxGrade: rec.MaxGrade, State: rec.State}, nil
}

func (m *MemoryStore) HasStateFor(_ context.Context, studentID, courseID string, moduleKeys []string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, key := range moduleKeys {
		if _, ok := m.rows[memKey(studentID, courseID, key)]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) SubmittedProblems(_ context.Context, courseID string, fn func(grading.SubmittedRow) error) error {
	m.mu.RLock()
	rows := make([]Record, 0, len(m.rows))
	for _, rec := range m.rows {
		if rec.CourseID == courseID && rec.ModuleType == "problem" && rec.Grade != nil {
			rows = append(rows, rec)
		}
	}
	m.mu.RUnlock()

	for _, rec := range rows {
		if err := fn(grading.SubmittedRow{
			ID:        rec.ID,
			StudentID: rec.StudentID,
			ModuleKey: rec.ModuleKey,
			State:     rec.State,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().Unix()
	key := memKey(rec.StudentID, rec.CourseID, rec.ModuleKey)
	if existing, ok := m.rows[key]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = now
	}
	if rec.ModuleType == "" {
		rec.ModuleType = "problem"
	}
	if rec.State == "" {
		rec.State = "{}"
	}
	rec.ModifiedAt = now
	m.rows[key] = rec
	return rec, nil
}

// View has no transaction to scope in memory; fn just reads the live store.
func (m *MemoryStore) View(_ context.Context, fn func(grading.StateReader) error) error {
	return fn(m)
}
