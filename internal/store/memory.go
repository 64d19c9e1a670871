package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

// MemoryStore keeps farmer records in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]registration.FarmerRecord
	byInstance map[string]string
	failErr    error
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]registration.FarmerRecord),
		byInstance: make(map[string]string),
	}
}

// FailWith makes every following call fail with err until called with nil.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// SaveFarmerRecord implements FarmerRepository.
func (m *MemoryStore) SaveFarmerRecord(ctx context.Context, record registration.FarmerRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", registration.ErrPersistenceUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return "", fmt.Errorf("%w: %v", registration.ErrPersistenceUnavailable, m.failErr)
	}
	if record.SessionInstance != "" {
		if id, ok := m.byInstance[record.SessionInstance]; ok {
			return id, nil
		}
		m.byInstance[record.SessionInstance] = record.ID
	}
	m.records[record.ID] = record
	return record.ID, nil
}

// GetFarmer implements FarmerRepository.
func (m *MemoryStore) GetFarmer(_ context.Context, id string) (registration.FarmerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failErr != nil {
		return registration.FarmerRecord{}, fmt.Errorf("%w: %v", registration.ErrPersistenceUnavailable, m.failErr)
	}
	record, ok := m.records[id]
	if !ok {
		return registration.FarmerRecord{}, ErrFarmerNotFound
	}
	return record, nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Ping implements FarmerRepository.
func (m *MemoryStore) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return fmt.Errorf("%w: %v", registration.ErrPersistenceUnavailable, m.failErr)
	}
	return nil
}

// Close implements FarmerRepository.
func (m *MemoryStore) Close() error {
	return nil
}
