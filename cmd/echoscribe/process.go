package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/spf13/cobra"

	"github.com/MrWong99/echoscribe/internal/assemble"
	"github.com/MrWong99/echoscribe/internal/config"
	"github.com/MrWong99/echoscribe/internal/health"
	"github.com/MrWong99/echoscribe/internal/observe"
	"github.com/MrWong99/echoscribe/internal/pipeline"
	"github.com/MrWong99/echoscribe/internal/polish"
	"github.com/MrWong99/echoscribe/internal/resilience"
	"github.com/MrWong99/echoscribe/internal/sanitize"
	"github.com/MrWong99/echoscribe/internal/schedule"
	"github.com/MrWong99/echoscribe/internal/segment"
	"github.com/MrWong99/echoscribe/pkg/audio"
	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed"
	"github.com/MrWong99/echoscribe/pkg/storage"
	s3storage "github.com/MrWong99/echoscribe/pkg/storage/s3"
	"github.com/MrWong99/echoscribe/pkg/store/postgres"
)

var processCmd = &cobra.Command{
	Use:   "process <recording.wav> [more recordings...]",
	Short: "Transcribe one or more recordings",
	Long: `Process runs the full pipeline over each given WAV file: silence
trimming, diarization, speaker identification against the enrolled reference
samples, batched transcription, transcript assembly, and the configured
artifact upload and search indexing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	runner, checkers, cleanup, err := buildRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Pipeline.OpsAddr != "" {
		go func() {
			if err := health.New(checkers...).Serve(ctx, cfg.Pipeline.OpsAddr); err != nil {
				slog.Warn("ops server error", "err", err)
			}
		}()
	}

	results, err := runner.RunAll(ctx, args)
	for _, res := range results {
		reportResult(res)
		if cfg.Pipeline.ArtifactDir != "" {
			if werr := writeLocalArtifacts(cfg.Pipeline.ArtifactDir, res); werr != nil {
				slog.Warn("local artifact write failed", "source", res.Manifest.Source, "err", werr)
			}
		}
	}
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return errors.New("no recordings were processed")
	}
	return nil
}

// buildRunner instantiates every configured stage and returns the assembled
// pipeline, the readiness checks for the ops endpoints, and a cleanup closing
// the stateful backends.
func buildRunner(ctx context.Context, cfg *config.Config) (*pipeline.Runner, []health.Checker, func(), error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	var (
		closers  []func()
		checkers []health.Checker
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*pipeline.Runner, []health.Checker, func(), error) {
		cleanup()
		return nil, nil, nil, err
	}

	transcriber, err := reg.CreateASR(cfg.ASR)
	if err != nil {
		return fail(fmt.Errorf("create asr provider %q: %w", cfg.ASR.Provider, err))
	}
	if c, ok := transcriber.(io.Closer); ok {
		closers = append(closers, func() { _ = c.Close() })
	}

	if cfg.ASR.FallbackModelPath != "" {
		fbCfg := cfg.ASR
		fbCfg.ModelPath = cfg.ASR.FallbackModelPath
		fallbackTranscriber, err := reg.CreateASR(fbCfg)
		if err != nil {
			return fail(fmt.Errorf("create asr fallback model: %w", err))
		}
		if c, ok := fallbackTranscriber.(io.Closer); ok {
			closers = append(closers, func() { _ = c.Close() })
		}
		chain := resilience.NewASRFallback(transcriber, cfg.ASR.ModelPath, resilience.FallbackConfig{})
		chain.AddFallback(cfg.ASR.FallbackModelPath, fallbackTranscriber)
		transcriber = chain
		slog.Info("asr fallback model enabled", "primary", cfg.ASR.ModelPath, "fallback", cfg.ASR.FallbackModelPath)
	}

	diarizeEntry := cfg.Diarize
	if diarizeEntry.Name == "" {
		diarizeEntry.Name = "energy"
	}
	diarizer, err := reg.CreateDiarizer(diarizeEntry)
	if err != nil {
		return fail(fmt.Errorf("create diarize provider %q: %w", diarizeEntry.Name, err))
	}

	embedEntry := cfg.SpeakerEmbed
	if embedEntry.Name == "" {
		embedEntry.Name = "energy"
	}
	speakerEmbedder, err := reg.CreateSpeakerEmbedder(embedEntry)
	if err != nil {
		return fail(fmt.Errorf("create speaker_embed provider %q: %w", embedEntry.Name, err))
	}

	registry, err := enrollSpeakers(ctx, speakerEmbedder, cfg.Speakers)
	if err != nil {
		return fail(err)
	}
	slog.Info("speakers enrolled", "count", registry.Len())

	var trimOpts []segment.TrimmerOption
	if cfg.Trim.RMSThreshold > 0 {
		trimOpts = append(trimOpts, segment.WithRMSThreshold(cfg.Trim.RMSThreshold))
	}
	if cfg.Trim.Window > 0 {
		trimOpts = append(trimOpts, segment.WithWindow(cfg.Trim.Window.Std()))
	}
	if cfg.Trim.MinSilence > 0 {
		trimOpts = append(trimOpts, segment.WithMinSilence(cfg.Trim.MinSilence.Std()))
	}
	trimmer := segment.NewTrimmer(trimOpts...)

	var matchOpts []segment.MatcherOption
	if cfg.Segmentation.MatchThreshold > 0 {
		matchOpts = append(matchOpts, segment.WithMatchThreshold(cfg.Segmentation.MatchThreshold))
	}
	if cfg.Segmentation.AmbiguityMargin > 0 {
		matchOpts = append(matchOpts, segment.WithAmbiguityMargin(cfg.Segmentation.AmbiguityMargin))
	}

	var builderOpts []segment.BuilderOption
	if cfg.Segmentation.MinMergeGap > 0 {
		builderOpts = append(builderOpts, segment.WithMergeGap(cfg.Segmentation.MinMergeGap.Std()))
	}
	if cfg.Segmentation.MaxSegmentDuration > 0 {
		builderOpts = append(builderOpts, segment.WithMaxSegment(cfg.Segmentation.MaxSegmentDuration.Std()))
	}
	builder := segment.NewBuilder(speakerEmbedder, segment.NewMatcher(matchOpts...), registry, builderOpts...)

	var schedOpts []schedule.Option
	if cfg.ASR.BatchSize > 0 {
		schedOpts = append(schedOpts, schedule.WithBatchSize(cfg.ASR.BatchSize))
	}
	if cfg.ASR.MaxChunkDuration > 0 {
		schedOpts = append(schedOpts, schedule.WithMaxChunk(cfg.ASR.MaxChunkDuration.Std()))
	}
	if cfg.ASR.ReclaimCadence > 0 {
		schedOpts = append(schedOpts, schedule.WithCadence(cfg.ASR.ReclaimCadence))
	}
	scheduler := schedule.New(transcriber, schedule.RuntimeReclaimer{}, schedOpts...)

	runnerOpts := []pipeline.RunnerOption{
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
	}

	if cfg.Storage.Bucket != "" {
		uploader, err := s3storage.NewFromDefaultConfig(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix, cfg.Storage.Region)
		if err != nil {
			return fail(fmt.Errorf("create s3 uploader: %w", err))
		}
		var sanOpts []sanitize.Option
		if len(cfg.Storage.SafeExtensions) > 0 {
			sanOpts = append(sanOpts, sanitize.WithExtensions(cfg.Storage.SafeExtensions))
		}
		runnerOpts = append(runnerOpts, pipeline.WithPutter(storage.NewPutter(uploader, sanitize.New(sanOpts...))))
		slog.Info("artifact upload enabled", "bucket", cfg.Storage.Bucket, "prefix", cfg.Storage.Prefix)
	}

	if cfg.Search.PostgresDSN != "" {
		dims := cfg.Search.EmbeddingDimensions
		if dims <= 0 {
			dims = 1536
		}
		store, err := postgres.NewStore(ctx, cfg.Search.PostgresDSN, dims)
		if err != nil {
			return fail(fmt.Errorf("connect transcript store: %w", err))
		}
		closers = append(closers, store.Close)
		checkers = append(checkers, health.Checker{Name: "transcript_store", Check: store.Ping})
		runnerOpts = append(runnerOpts, pipeline.WithStore(store))

		if name := cfg.Search.Embeddings.Name; name != "" {
			embedder, err := reg.CreateTextEmbedder(cfg.Search.Embeddings)
			if err != nil {
				return fail(fmt.Errorf("create embeddings provider %q: %w", name, err))
			}
			runnerOpts = append(runnerOpts, pipeline.WithTextEmbedder(embedder))
		}
	}

	if cfg.Polish.Enabled {
		entry := cfg.Polish.Provider
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		completer, err := polish.NewAnyLLM(entry.Name, entry.Model, opts...)
		if err != nil {
			return fail(fmt.Errorf("create polish provider %q: %w", entry.Name, err))
		}
		runnerOpts = append(runnerOpts, pipeline.WithPolisher(polish.New(completer)))
	}

	runner := pipeline.NewRunner(trimmer, diarizer, builder, scheduler, assemble.New(), runnerOpts...)
	return runner, checkers, cleanup, nil
}

// enrollSpeakers decodes each reference sample and builds the speaker
// registry through the configured embedder.
func enrollSpeakers(ctx context.Context, embedder speakerembed.Embedder, speakers []config.SpeakerConfig) (*segment.Registry, error) {
	samples := make([]segment.ReferenceSample, 0, len(speakers))
	for _, spk := range speakers {
		f, err := os.Open(spk.Sample)
		if err != nil {
			return nil, fmt.Errorf("speaker %q: open sample: %w", spk.ID, err)
		}
		clip, err := audio.DecodeWAV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("speaker %q: decode sample %q: %w", spk.ID, spk.Sample, err)
		}
		samples = append(samples, segment.ReferenceSample{
			ID:          spk.ID,
			DisplayName: spk.DisplayName,
			PCM:         clip.PCM,
			SampleRate:  clip.SampleRate,
		})
	}
	return segment.Enroll(ctx, embedder, samples)
}

// reportResult prints a per-run summary and the rendered transcript.
func reportResult(res *pipeline.RunResult) {
	slog.Info("run complete",
		"source", res.Manifest.Source,
		"segments", res.Manifest.Segments,
		"lines", len(res.Transcript.Lines),
		"artifacts", len(res.Manifest.Artifacts),
		"failures", len(res.Manifest.Failures),
	)
	for _, f := range res.Manifest.Failures {
		slog.Warn("run failure", "stage", f.Stage, "ref", f.Ref, "err", f.Err)
	}
	fmt.Println(res.Transcript.Render())
}

// writeLocalArtifacts mirrors the rendered transcript and the run manifest
// into dir for runs where no object storage is configured.
func writeLocalArtifacts(dir string, res *pipeline.RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(res.Manifest.Source), filepath.Ext(res.Manifest.Source))
	base = sanitize.Sanitize(base)

	if err := os.WriteFile(filepath.Join(dir, base+"_transcript.txt"), []byte(res.Transcript.Render()), 0o644); err != nil {
		return err
	}
	manifest, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, base+"_manifest.json"), manifest, 0o644)
}
