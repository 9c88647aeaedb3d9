package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"sproutling/internal/domain"
	"sproutling/internal/sqlinline"
)

// PG is the PostgreSQL-backed document store. Records live in a single
// documents table keyed by (collection, id) with a jsonb field map.
//
// A nil pool is a supported configuration: every operation degrades to a
// no-op, an absent record or an empty result. The same applies to runtime
// store errors, which are logged and swallowed so that stage processing keeps
// running with best-effort persistence.
type PG struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPG wraps the given pool. pool may be nil for the degraded mode.
func NewPG(pool *pgxpool.Pool, logger zerolog.Logger) *PG {
	return &PG{pool: pool, logger: logger}
}

// Available reports whether a backing pool is configured.
func (s *PG) Available() bool {
	return s != nil && s.pool != nil
}

// Create upserts a record. Replaying a create for an existing id is a no-op.
func (s *PG) Create(ctx context.Context, collection, id string, fields map[string]any) {
	if !s.Available() {
		return
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		s.warn(err, collection, id, "create encode")
		return
	}
	if _, err := s.pool.Exec(ctx, sqlinline.QInsertDocument, collection, id, payload); err != nil {
		s.warn(err, collection, id, "create")
	}
}

// Update merges fields into an existing record.
func (s *PG) Update(ctx context.Context, collection, id string, fields map[string]any) {
	if !s.Available() {
		return
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		s.warn(err, collection, id, "update encode")
		return
	}
	if _, err := s.pool.Exec(ctx, sqlinline.QMergeDocumentFields, collection, id, payload); err != nil {
		s.warn(err, collection, id, "update")
	}
}

// Get fetches a record, reporting absence for missing rows and store failures
// alike.
func (s *PG) Get(ctx context.Context, collection, id string) (domain.Record, bool) {
	if !s.Available() {
		return domain.Record{}, false
	}
	rec := domain.Record{ID: id}
	var payload []byte
	row := s.pool.QueryRow(ctx, sqlinline.QSelectDocument, collection, id)
	if err := row.Scan(&payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.warn(err, collection, id, "get")
		}
		return domain.Record{}, false
	}
	if err := json.Unmarshal(payload, &rec.Fields); err != nil {
		s.warn(err, collection, id, "get decode")
		return domain.Record{}, false
	}
	return rec, true
}

// Query returns records whose field equals value, newest first.
func (s *PG) Query(ctx context.Context, collection, field string, value any, limit int) []domain.Record {
	if !s.Available() {
		return nil
	}
	q := sqlinline.QSelectDocumentsByField
	args := []any{collection, field, fmt.Sprint(value)}
	if limit > 0 {
		q += "limit $4"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		s.warn(err, collection, "", "query")
		return nil
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		var payload []byte
		if err := rows.Scan(&rec.ID, &payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			s.warn(err, collection, rec.ID, "query scan")
			continue
		}
		if err := json.Unmarshal(payload, &rec.Fields); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (s *PG) warn(err error, collection, id, op string) {
	s.logger.Warn().Err(err).
		Str("collection", collection).
		Str("doc_id", id).
		Str("op", op).
		Msg("store: degraded to no-op")
}
