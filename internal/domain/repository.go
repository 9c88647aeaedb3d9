package domain

import (
	"context"
	"time"
)

// Record is one document held by a DocumentStore: a JSON-like field map plus
// bookkeeping timestamps. Field values are scalars, nested maps and slices.
type Record struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentStore is the persistence boundary of the orchestration core.
// Implementations must degrade rather than fail: when the backing store is
// unavailable, writes become no-ops, Get reports absence and Query returns an
// empty slice. None of the methods return an error; persistence is
// best-effort and the pipelines keep running without it.
type DocumentStore interface {
	// Create upserts the record identified by id. Idempotent.
	Create(ctx context.Context, collection, id string, fields map[string]any)
	// Update merges the given fields into an existing record and refreshes
	// its updated_at timestamp.
	Update(ctx context.Context, collection, id string, fields map[string]any)
	// Get returns the record and true, or false when missing or unavailable.
	Get(ctx context.Context, collection, id string) (Record, bool)
	// Query returns up to limit records whose field equals value, newest
	// first. A limit of zero or less means no limit.
	Query(ctx context.Context, collection, field string, value any, limit int) []Record
}
