package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/echoscribe/pkg/types"
)

// SearchOpts filters a search over transcript lines.
type SearchOpts struct {
	// Speaker restricts results to lines attributed to this speaker display
	// name. Callers resolving fuzzy speaker queries should do so before
	// searching (see the segment registry's Resolve).
	Speaker string

	// Source restricts results to transcripts of one source recording.
	Source string

	// Limit caps the number of results. Zero or negative means 20.
	Limit int
}

// SearchResult is one matching transcript line with its provenance.
type SearchResult struct {
	// TranscriptID identifies the transcript the line belongs to.
	TranscriptID string

	// Source is the transcript's source recording.
	Source string

	// Line is the matching line.
	Line types.TranscriptLine

	// Score is the match quality: ts_rank for full-text search, cosine
	// distance (lower is better) for semantic search.
	Score float64
}

const defaultSearchLimit = 20

// Search performs a full-text search over transcript line text. The query
// uses websearch syntax: bare words, quoted phrases, and OR / - operators.
// Results are ordered by descending rank.
func (s *Store) Search(ctx context.Context, query string, opts SearchOpts) ([]SearchResult, error) {
	args := []any{query} // $1 = FTS query string
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{
		"to_tsvector('simple', l.text) @@ websearch_to_tsquery('simple', $1)",
	}
	if opts.Speaker != "" {
		conditions = append(conditions, "l.speaker = "+next(opts.Speaker))
	}
	if opts.Source != "" {
		conditions = append(conditions, "t.source = "+next(opts.Source))
	}

	args = append(args, limitOf(opts))
	q := fmt.Sprintf(`
		SELECT t.id, t.source, l.speaker, l.start_ns, l.end_ns, l.text,
		       ts_rank(to_tsvector('simple', l.text), websearch_to_tsquery('simple', $1)) AS rank
		FROM   transcript_lines l
		JOIN   transcripts t ON t.id = l.transcript_id
		WHERE  %s
		ORDER  BY rank DESC
		LIMIT  $%d`, strings.Join(conditions, "\n  AND  "), len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: search: %w", err)
	}
	return collectResults(rows)
}

// SemanticSearch finds the transcript lines whose embeddings are closest
// (cosine distance) to the supplied query embedding. Lines stored without an
// embedding are never returned. Results are ordered by ascending distance
// (most similar first).
func (s *Store) SemanticSearch(ctx context.Context, embedding []float32, opts SearchOpts) ([]SearchResult, error) {
	args := []any{pgvector.NewVector(embedding)} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"l.embedding IS NOT NULL"}
	if opts.Speaker != "" {
		conditions = append(conditions, "l.speaker = "+next(opts.Speaker))
	}
	if opts.Source != "" {
		conditions = append(conditions, "t.source = "+next(opts.Source))
	}

	args = append(args, limitOf(opts))
	q := fmt.Sprintf(`
		SELECT t.id, t.source, l.speaker, l.start_ns, l.end_ns, l.text,
		       l.embedding <=> $1 AS distance
		FROM   transcript_lines l
		JOIN   transcripts t ON t.id = l.transcript_id
		WHERE  %s
		ORDER  BY distance
		LIMIT  $%d`, strings.Join(conditions, "\n  AND  "), len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: semantic search: %w", err)
	}
	return collectResults(rows)
}

// collectResults scans search rows sharing the common result column layout.
func collectResults(rows pgx.Rows) ([]SearchResult, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchResult, error) {
		var (
			sr             SearchResult
			startNS, endNS int64
		)
		if err := row.Scan(
			&sr.TranscriptID,
			&sr.Source,
			&sr.Line.Speaker,
			&startNS,
			&endNS,
			&sr.Line.Text,
			&sr.Score,
		); err != nil {
			return SearchResult{}, err
		}
		sr.Line.Start, sr.Line.End = durationNS(startNS), durationNS(endNS)
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan results: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

func limitOf(opts SearchOpts) int {
	if opts.Limit > 0 {
		return opts.Limit
	}
	return defaultSearchLimit
}

func durationNS(ns int64) time.Duration { return time.Duration(ns) }
