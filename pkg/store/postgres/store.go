package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/echoscribe/pkg/types"
)

// Store is the PostgreSQL-backed transcript store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
//
// Persistence is write-once per transcript: saving the same transcript ID
// again replaces its lines atomically. Store failures never modify the
// in-memory [types.Transcript] passed in.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the text-embedding
// model used for line embeddings (e.g., 1536 for text-embedding-3-small).
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// SaveTranscript persists t and its lines in one transaction. embeddings is
// optional: when non-nil it must have one vector per line (nil elements are
// stored as NULL) and enables semantic search over those lines.
func (s *Store) SaveTranscript(ctx context.Context, t *types.Transcript, embeddings [][]float32) error {
	if embeddings != nil && len(embeddings) != len(t.Lines) {
		return fmt.Errorf("postgres store: %d embeddings for %d lines", len(embeddings), len(t.Lines))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertTranscript = `
		INSERT INTO transcripts (id, source, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
		    source     = EXCLUDED.source,
		    created_at = EXCLUDED.created_at`
	if _, err := tx.Exec(ctx, upsertTranscript, t.ID, t.Source, t.CreatedAt); err != nil {
		return fmt.Errorf("postgres store: save transcript %s: %w", t.ID, err)
	}

	// Replace rather than merge so a re-save of a re-run never leaves stale
	// lines behind.
	if _, err := tx.Exec(ctx, `DELETE FROM transcript_lines WHERE transcript_id = $1`, t.ID); err != nil {
		return fmt.Errorf("postgres store: clear lines %s: %w", t.ID, err)
	}

	const insertLine = `
		INSERT INTO transcript_lines
		    (transcript_id, line_index, speaker, start_ns, end_ns, text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i, line := range t.Lines {
		var vec any
		if embeddings != nil && embeddings[i] != nil {
			vec = pgvector.NewVector(embeddings[i])
		}
		if _, err := tx.Exec(ctx, insertLine,
			t.ID, i, line.Speaker, int64(line.Start), int64(line.End), line.Text, vec,
		); err != nil {
			return fmt.Errorf("postgres store: save line %s/%d: %w", t.ID, i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres store: commit %s: %w", t.ID, err)
	}
	return nil
}

// GetTranscript loads one transcript with all its lines in index order.
// Returns pgx.ErrNoRows wrapped if the ID is unknown.
func (s *Store) GetTranscript(ctx context.Context, id string) (*types.Transcript, error) {
	t := &types.Transcript{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT source, created_at FROM transcripts WHERE id = $1`, id,
	).Scan(&t.Source, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get transcript %s: %w", id, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT speaker, start_ns, end_ns, text
		FROM   transcript_lines
		WHERE  transcript_id = $1
		ORDER  BY line_index`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get lines %s: %w", id, err)
	}

	t.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.TranscriptLine, error) {
		var (
			line           types.TranscriptLine
			startNS, endNS int64
		)
		if err := row.Scan(&line.Speaker, &startNS, &endNS, &line.Text); err != nil {
			return types.TranscriptLine{}, err
		}
		line.Start, line.End = durationNS(startNS), durationNS(endNS)
		return line, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan lines %s: %w", id, err)
	}
	return t, nil
}

// Ping verifies database connectivity. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}
