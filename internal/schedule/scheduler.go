// Package schedule implements the transcription scheduler: it feeds the
// ordered segment sequence through the batch ASR capability, recovers from
// batch failures, and drives the periodic memory-reclamation cadence.
//
// Batches of one run execute strictly in order with at most one in flight,
// because downstream assembly depends on positional alignment with segment
// sequence indexes and the reclamation cadence is defined over the
// cumulative processed count — parallel or out-of-order completion would
// make both non-deterministic. Independent runs may schedule concurrently;
// each carries its own Reclaimer handle.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/echoscribe/internal/observe"
	"github.com/MrWong99/echoscribe/pkg/audio"
	"github.com/MrWong99/echoscribe/pkg/capability/asr"
	"github.com/MrWong99/echoscribe/pkg/types"
)

const (
	defaultBatchSize = 8
	defaultMaxChunk  = 30 * time.Second
	defaultCadence   = 16
)

// ConfigurationViolationError is fatal: a segment that exceeds the maximum
// chunk duration reached the scheduler, meaning the upstream split invariant
// was broken. The scheduler fails fast rather than silently truncating
// audio.
type ConfigurationViolationError struct {
	// Index is the sequence index of the offending segment.
	Index int

	// Duration is the segment's span duration.
	Duration time.Duration

	// Limit is the configured maximum chunk duration.
	Limit time.Duration
}

func (e *ConfigurationViolationError) Error() string {
	return fmt.Sprintf("schedule: segment %d duration %v exceeds max chunk duration %v", e.Index, e.Duration, e.Limit)
}

// Scheduler batches segments for a batch ASR capability. Read-only after
// construction; one Scheduler may serve concurrent runs because all per-run
// state lives on the Transcribe stack.
type Scheduler struct {
	transcriber asr.Transcriber
	reclaimer   Reclaimer
	metrics     *observe.Metrics

	batchSize int
	maxChunk  time.Duration
	cadence   int
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithBatchSize sets how many segments are grouped per ASR call. Default: 8.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) { s.batchSize = n }
}

// WithMaxChunk sets the maximum per-segment audio duration the ASR backend
// accepts. Segments longer than this trigger a ConfigurationViolationError.
// Default: 30s.
func WithMaxChunk(d time.Duration) Option {
	return func(s *Scheduler) { s.maxChunk = d }
}

// WithCadence sets the reclamation cadence in processed segments. The
// reclamation hook fires exactly floor(processed/cadence) times per run,
// independent of batch boundaries. Default: 16.
func WithCadence(n int) Option {
	return func(s *Scheduler) { s.cadence = n }
}

// WithMetrics overrides the metrics instance used for batch and reclamation
// counters. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New returns a Scheduler using transcriber for ASR calls and reclaimer as
// the per-run reclamation hook. A nil reclaimer disables reclamation.
func New(transcriber asr.Transcriber, reclaimer Reclaimer, opts ...Option) *Scheduler {
	s := &Scheduler{
		transcriber: transcriber,
		reclaimer:   reclaimer,
		batchSize:   defaultBatchSize,
		maxChunk:    defaultMaxChunk,
		cadence:     defaultCadence,
	}
	for _, o := range opts {
		o(s)
	}
	if s.reclaimer == nil {
		s.reclaimer = NopReclaimer{}
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Transcribe runs every segment through the ASR capability and returns one
// TranscriptionResult per segment in sequence-index order.
//
// Failure policy: a failed batch is retried segment by segment once; a
// segment whose singleton retry also fails yields a result with empty text
// and Failed set — per-segment failures never abort the run. Cancellation
// between batches returns the completed in-order prefix together with
// ctx.Err(); completed results are never discarded or reordered.
func (s *Scheduler) Transcribe(ctx context.Context, clip *audio.Clip, segments []types.Segment) ([]types.TranscriptionResult, error) {
	for _, seg := range segments {
		if seg.Span.Duration() > s.maxChunk {
			return nil, &ConfigurationViolationError{
				Index:    seg.Index,
				Duration: seg.Span.Duration(),
				Limit:    s.maxChunk,
			}
		}
	}

	results := make([]types.TranscriptionResult, 0, len(segments))
	processed, reclaimed := 0, 0

	for start := 0; start < len(segments); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := start + s.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[start:end]

		buffers := make([]asr.Buffer, len(batch))
		for i, seg := range batch {
			buffers[i] = asr.Buffer{
				PCM:        clip.Slice(seg.Span.Start, seg.Span.End),
				SampleRate: clip.SampleRate,
			}
		}

		texts, err := s.transcriber.TranscribeBatch(ctx, buffers)
		if err != nil {
			slog.Warn("schedule: batch failed, retrying segments individually",
				"batch_start", batch[0].Index,
				"batch_size", len(batch),
				"error", err,
			)
			s.metrics.RecordBatch(ctx, "retried")
			batchResults, retryErr := s.retrySingletons(ctx, batch, buffers)
			results = append(results, batchResults...)
			if retryErr != nil {
				return results, retryErr
			}
		} else {
			s.metrics.RecordBatch(ctx, "ok")
			for i, seg := range batch {
				results = append(results, types.TranscriptionResult{Index: seg.Index, Text: texts[i]})
			}
		}

		processed += len(batch)
		for s.cadence > 0 && reclaimed < processed/s.cadence {
			s.reclaimer.Reclaim(ctx)
			s.metrics.Reclaims.Add(ctx, 1)
			reclaimed++
		}
	}

	return results, nil
}

// retrySingletons re-submits each member of a failed batch on its own. The
// returned error is non-nil only for cancellation; ASR failures are folded
// into per-segment failed results.
func (s *Scheduler) retrySingletons(ctx context.Context, batch []types.Segment, buffers []asr.Buffer) ([]types.TranscriptionResult, error) {
	results := make([]types.TranscriptionResult, 0, len(batch))
	for i, seg := range batch {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		texts, err := s.transcriber.TranscribeBatch(ctx, buffers[i:i+1])
		if err != nil {
			slog.Warn("schedule: singleton retry failed, marking segment failed",
				"segment", seg.Index,
				"error", err,
			)
			results = append(results, types.TranscriptionResult{Index: seg.Index, Failed: true})
			continue
		}
		results = append(results, types.TranscriptionResult{Index: seg.Index, Text: texts[0]})
	}
	return results, nil
}
