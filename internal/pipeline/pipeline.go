// Package pipeline orchestrates one transcription run end to end: decode,
// silence trim, diarize, segment, transcribe, assemble, and persist.
//
// A run always yields a transcript once segmentation succeeds; downstream
// failures (per-segment transcription, artifact upload, store writes) are
// collected in the run's [Manifest] instead of aborting, and cancellation
// mid-transcription still yields the completed prefix as an explicitly
// partial transcript. Multiple source
// files run concurrently with a bounded worker count; the speaker registry
// is the only shared state and is read-only during runs.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/echoscribe/internal/assemble"
	"github.com/MrWong99/echoscribe/internal/observe"
	"github.com/MrWong99/echoscribe/internal/polish"
	"github.com/MrWong99/echoscribe/internal/schedule"
	"github.com/MrWong99/echoscribe/internal/segment"
	"github.com/MrWong99/echoscribe/pkg/audio"
	"github.com/MrWong99/echoscribe/pkg/capability/diarize"
	"github.com/MrWong99/echoscribe/pkg/storage"
	"github.com/MrWong99/echoscribe/pkg/textembed"
	"github.com/MrWong99/echoscribe/pkg/types"
)

// Failure records one non-fatal problem encountered during a run.
type Failure struct {
	// Stage names the pipeline stage that failed (diarize, transcribe,
	// polish, upload, persist).
	Stage string `json:"stage"`

	// Ref identifies what failed within the stage: a segment index, an
	// artifact path, or a transcript ID.
	Ref string `json:"ref"`

	// Err is the failure message.
	Err string `json:"error"`
}

// Manifest summarises one run for audit.
type Manifest struct {
	// Source is the input recording path as given.
	Source string `json:"source"`

	// Segments is the number of segments produced.
	Segments int `json:"segments"`

	// Partial marks a run cancelled mid-transcription: the transcript
	// covers only the completed segment prefix, in order.
	Partial bool `json:"partial,omitempty"`

	// Artifacts lists the storage URLs of every successfully uploaded
	// artifact.
	Artifacts []string `json:"artifacts,omitempty"`

	// Failures lists every non-fatal failure, in occurrence order.
	Failures []Failure `json:"failures,omitempty"`
}

// RunResult is the outcome of processing one source file.
type RunResult struct {
	Transcript *types.Transcript
	Manifest   Manifest
}

// TranscriptStore persists assembled transcripts.
// The postgres store satisfies this interface.
type TranscriptStore interface {
	SaveTranscript(ctx context.Context, t *types.Transcript, embeddings [][]float32) error
}

// Runner wires the pipeline stages together. Construct with [NewRunner];
// a Runner is read-only after construction and safe for concurrent runs.
type Runner struct {
	trimmer   *segment.Trimmer
	diarizer  diarize.Diarizer
	builder   *segment.Builder
	scheduler *schedule.Scheduler
	assembler *assemble.Assembler

	polisher *polish.Polisher
	putter   *storage.Putter
	store    TranscriptStore
	embedder textembed.Provider

	metrics     *observe.Metrics
	concurrency int
	now         func() time.Time
}

// RunnerOption is a functional option for configuring a Runner.
type RunnerOption func(*Runner)

// WithPolisher enables the LLM correction pass after assembly.
func WithPolisher(p *polish.Polisher) RunnerOption {
	return func(r *Runner) { r.polisher = p }
}

// WithPutter enables artifact upload through the given Putter.
func WithPutter(p *storage.Putter) RunnerOption {
	return func(r *Runner) { r.putter = p }
}

// WithStore enables transcript persistence.
func WithStore(s TranscriptStore) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithTextEmbedder enables line embeddings for semantic search. Only used
// when a store is also configured.
func WithTextEmbedder(e textembed.Provider) RunnerOption {
	return func(r *Runner) { r.embedder = e }
}

// WithConcurrency bounds the number of source files processed in parallel
// by [Runner.RunAll]. Default: 1.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMetrics overrides the metrics instance. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithClock overrides the artifact timestamp source. Default: time.Now.
func WithClock(f func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = f }
}

// NewRunner returns a Runner over the mandatory stages. Upload, persistence,
// and polishing are opt-in via options.
func NewRunner(trimmer *segment.Trimmer, diarizer diarize.Diarizer, builder *segment.Builder, scheduler *schedule.Scheduler, assembler *assemble.Assembler, opts ...RunnerOption) *Runner {
	r := &Runner{
		trimmer:     trimmer,
		diarizer:    diarizer,
		builder:     builder,
		scheduler:   scheduler,
		assembler:   assembler,
		concurrency: 1,
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// RunAll processes the given source files, at most the configured number in
// parallel. It returns one RunResult per source that produced a transcript —
// including explicitly partial cancelled runs — and the joined errors of the
// sources that failed or were cut short. Results are in completion order.
func (r *Runner) RunAll(ctx context.Context, paths []string) ([]*RunResult, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	results := make(chan *RunResult, len(paths))
	var mu sync.Mutex
	var errs []error

	for _, path := range paths {
		g.Go(func() error {
			res, err := r.Run(ctx, path)
			if res != nil {
				results <- res
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("pipeline: %s: %w", path, err))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	out := make([]*RunResult, 0, len(paths))
	for res := range results {
		out = append(out, res)
	}
	return out, errors.Join(errs...)
}

// Run processes one source file end to end. When ctx is cancelled
// mid-transcription, Run returns the assembled prefix as an explicitly
// partial RunResult together with the context error.
func (r *Runner) Run(ctx context.Context, path string) (result *RunResult, err error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()
	log := observe.Logger(ctx).With("source", path)

	r.metrics.ActiveRuns.Add(ctx, 1)
	defer r.metrics.ActiveRuns.Add(ctx, -1)

	manifest := Manifest{Source: path}

	// Decode.
	clip, err := r.decode(ctx, path)
	if err != nil {
		return nil, err
	}
	log.Info("decoded recording", "duration", clip.Duration())

	// Trim.
	speech := r.timed(ctx, "trim", func() []types.AudioSpan {
		return r.trimmer.SpeechRanges(clip, path)
	})

	// Diarize; a down model degrades to zero turns and the builder covers
	// all speech with the unknown speaker.
	start := r.now()
	turns, err := r.diarizer.Diarize(ctx, clip.PCM, clip.SampleRate)
	r.metrics.RecordStage(ctx, "diarize", time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, diarize.ErrModelUnavailable) {
			return nil, fmt.Errorf("diarize: %w", err)
		}
		log.Warn("diarization unavailable, degrading to unknown speaker", "error", err)
		manifest.Failures = append(manifest.Failures, Failure{Stage: "diarize", Ref: path, Err: err.Error()})
		turns = nil
	}

	// Segment.
	start = r.now()
	segments, err := r.builder.Build(ctx, clip, path, turns, speech)
	r.metrics.RecordStage(ctx, "segment", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	manifest.Segments = len(segments)
	r.metrics.SegmentsProduced.Add(ctx, int64(len(segments)))
	log.Info("segmented recording", "segments", len(segments))

	// Transcribe. Cancellation between batches is not fatal: the scheduler
	// hands back the completed in-order prefix, which still assembles into
	// an explicitly partial transcript.
	start = r.now()
	results, err := r.scheduler.Transcribe(ctx, clip, segments)
	r.metrics.RecordStage(ctx, "transcribe", time.Since(start).Seconds())
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	for _, res := range results {
		if res.Failed {
			r.metrics.TranscriptionFailures.Add(ctx, 1)
			manifest.Failures = append(manifest.Failures, Failure{
				Stage: "transcribe",
				Ref:   fmt.Sprintf("segment %d", res.Index),
				Err:   "transcription failed after retry",
			})
		}
	}
	if err != nil {
		manifest.Partial = true
		log.Warn("run cancelled, assembling partial transcript",
			"completed", len(results), "segments", len(segments))
		transcript, aerr := r.assembler.Assemble(path, segments[:len(results)], results)
		if aerr != nil {
			return nil, fmt.Errorf("assemble: %w", aerr)
		}
		return &RunResult{Transcript: transcript, Manifest: manifest}, fmt.Errorf("transcribe: %w", err)
	}

	// Assemble.
	start = r.now()
	transcript, err := r.assembler.Assemble(path, segments, results)
	r.metrics.RecordStage(ctx, "assemble", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	// Optional LLM polish; failures keep the assembled transcript.
	if r.polisher != nil {
		polished, corrections, perr := r.polisher.Polish(ctx, transcript)
		if perr != nil {
			log.Warn("polish failed, keeping assembled transcript", "error", perr)
			manifest.Failures = append(manifest.Failures, Failure{Stage: "polish", Ref: transcript.ID, Err: perr.Error()})
		} else {
			transcript = polished
			if len(corrections) > 0 {
				log.Info("polished transcript", "corrections", len(corrections))
			}
		}
	}

	// Artifacts and persistence never fail the run.
	if r.putter != nil {
		r.uploadArtifacts(ctx, clip, path, segments, transcript, &manifest)
	}
	if r.store != nil {
		r.persist(ctx, transcript, &manifest)
	}

	return &RunResult{Transcript: transcript, Manifest: manifest}, nil
}

// decode reads and decodes the source WAV file.
func (r *Runner) decode(ctx context.Context, path string) (*audio.Clip, error) {
	start := r.now()
	defer func() { r.metrics.RecordStage(ctx, "decode", time.Since(start).Seconds()) }()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return clip, nil
}

// timed runs fn and records its duration under the given stage name.
func (r *Runner) timed(ctx context.Context, stage string, fn func() []types.AudioSpan) []types.AudioSpan {
	start := r.now()
	defer func() { r.metrics.RecordStage(ctx, stage, time.Since(start).Seconds()) }()
	return fn()
}

// uploadArtifacts mirrors the original recording, the per-segment clips, and
// the transcript renderings into object storage. Each artifact fails
// independently.
func (r *Runner) uploadArtifacts(ctx context.Context, clip *audio.Clip, path string, segments []types.Segment, transcript *types.Transcript, manifest *Manifest) {
	start := r.now()
	defer func() { r.metrics.RecordStage(ctx, "upload", time.Since(start).Seconds()) }()

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dir := fmt.Sprintf("%s_%s", base, r.now().Format("20060102_150405"))

	put := func(kind, objectPath string, data []byte) {
		url, err := r.putter.Put(ctx, objectPath, data)
		if err != nil {
			r.metrics.RecordUploadFailure(ctx, kind)
			manifest.Failures = append(manifest.Failures, Failure{Stage: "upload", Ref: objectPath, Err: err.Error()})
			return
		}
		manifest.Artifacts = append(manifest.Artifacts, url)
	}

	// Original recording, re-encoded from the decoded clip.
	var buf bytes.Buffer
	if err := audio.EncodeWAV(&buf, clip.PCM, clip.SampleRate); err == nil {
		put("original", dir+"/"+filepath.Base(path), buf.Bytes())
	}

	// Per-segment clips.
	for _, seg := range segments {
		var sb bytes.Buffer
		pcm := clip.Slice(seg.Span.Start, seg.Span.End)
		if err := audio.EncodeWAV(&sb, pcm, clip.SampleRate); err != nil {
			manifest.Failures = append(manifest.Failures, Failure{
				Stage: "upload",
				Ref:   fmt.Sprintf("segment %d", seg.Index),
				Err:   err.Error(),
			})
			continue
		}
		name := fmt.Sprintf("%s/segments/segment_%03d_%.1fs_%s.wav",
			dir, seg.Index, seg.Span.Start.Seconds(), seg.Speaker.Display())
		put("segment", name, sb.Bytes())
	}

	// Transcript renderings.
	put("transcript", dir+"/transcript.txt", []byte(transcript.Render()))
	if js, err := json.MarshalIndent(transcript, "", "  "); err == nil {
		put("transcript", dir+"/transcript.json", js)
	}

	// Run manifest, uploaded last so it reflects every artifact outcome
	// above.
	if js, err := json.MarshalIndent(manifest, "", "  "); err == nil {
		put("manifest", dir+"/manifest.json", js)
	}
}

// persist saves the transcript to the store, embedding non-empty lines when
// a text embedder is configured.
func (r *Runner) persist(ctx context.Context, transcript *types.Transcript, manifest *Manifest) {
	start := r.now()
	defer func() { r.metrics.RecordStage(ctx, "persist", time.Since(start).Seconds()) }()

	var embeddings [][]float32
	if r.embedder != nil {
		embeddings = r.embedLines(ctx, transcript, manifest)
	}

	if err := r.store.SaveTranscript(ctx, transcript, embeddings); err != nil {
		observe.Logger(ctx).Warn("transcript persistence failed", "transcript", transcript.ID, "error", err)
		manifest.Failures = append(manifest.Failures, Failure{Stage: "persist", Ref: transcript.ID, Err: err.Error()})
	}
}

// embedLines embeds all non-empty line texts in one batch. On failure the
// transcript is persisted without embeddings.
func (r *Runner) embedLines(ctx context.Context, transcript *types.Transcript, manifest *Manifest) [][]float32 {
	texts := make([]string, 0, len(transcript.Lines))
	indexes := make([]int, 0, len(transcript.Lines))
	for i, line := range transcript.Lines {
		if line.Text != "" {
			texts = append(texts, line.Text)
			indexes = append(indexes, i)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		observe.Logger(ctx).Warn("line embedding failed, persisting without embeddings", "error", err)
		manifest.Failures = append(manifest.Failures, Failure{Stage: "persist", Ref: transcript.ID, Err: err.Error()})
		return nil
	}

	embeddings := make([][]float32, len(transcript.Lines))
	for i, vec := range vecs {
		embeddings[indexes[i]] = vec
	}
	return embeddings
}
