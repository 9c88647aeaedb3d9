package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"sproutling/internal/domain"
)

// Memory is an in-process document store used for tests and for local runs
// without a configured database.
type Memory struct {
	mu   sync.RWMutex
	now  func() time.Time
	docs map[string]map[string]domain.Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:  time.Now,
		docs: make(map[string]map[string]domain.Record),
	}
}

// Create upserts a record; creating an existing id leaves it untouched.
func (s *Memory) Create(ctx context.Context, collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.docs[collection]
	if col == nil {
		col = make(map[string]domain.Record)
		s.docs[collection] = col
	}
	if _, exists := col[id]; exists {
		return
	}
	now := s.now()
	col[id] = domain.Record{
		ID:        id,
		Fields:    copyFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Update merges fields into an existing record. Missing records are ignored.
func (s *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.docs[collection]
	rec, ok := col[id]
	if !ok {
		return
	}
	merged := copyFields(rec.Fields)
	for k, v := range fields {
		merged[k] = v
	}
	rec.Fields = merged
	rec.UpdatedAt = s.now()
	col[id] = rec
}

// Get fetches a record copy by id.
func (s *Memory) Get(ctx context.Context, collection, id string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[collection][id]
	if !ok {
		return domain.Record{}, false
	}
	rec.Fields = copyFields(rec.Fields)
	return rec, true
}

// Query returns records whose field equals value, newest first.
func (s *Memory) Query(ctx context.Context, collection, field string, value any, limit int) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []domain.Record
	for _, rec := range s.docs[collection] {
		if rec.Fields[field] != value {
			continue
		}
		rec.Fields = copyFields(rec.Fields)
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
