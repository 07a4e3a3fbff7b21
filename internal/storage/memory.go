package storage

import (
	"sync"

	"github.com/ppiankov/guardscan/internal/models"
)

// MemoryLabelStore is a LabelStore that keeps everything in memory
type MemoryLabelStore struct {
	mu     sync.Mutex
	labels map[string]models.LabelRecord
	audit  []models.LabelAudit
}

// NewMemoryLabelStore creates an empty in-memory label store
func NewMemoryLabelStore() *MemoryLabelStore {
	return &MemoryLabelStore{labels: make(map[string]models.LabelRecord)}
}

func (m *MemoryLabelStore) LoadLabels() (map[string]models.LabelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.LabelRecord, len(m.labels))
	for k, v := range m.labels {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryLabelStore) SaveLabels(labels map[string]models.LabelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labels = make(map[string]models.LabelRecord, len(labels))
	for k, v := range labels {
		m.labels[k] = v
	}
	return nil
}

func (m *MemoryLabelStore) AppendAudit(entry models.LabelAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// Audit returns a copy of the recorded audit trail
func (m *MemoryLabelStore) Audit() []models.LabelAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LabelAudit(nil), m.audit...)
}
