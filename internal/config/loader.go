package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"asr":           {"whisper-native"},
	"diarize":       {"energy"},
	"speaker_embed": {"energy"},
	"embeddings":    {"openai"},
	"llm":           {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Segmentation
	seg := cfg.Segmentation
	if seg.MatchThreshold < 0 || seg.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("segmentation.match_threshold %.2f is out of range [0, 1]", seg.MatchThreshold))
	}
	if seg.AmbiguityMargin < 0 || seg.AmbiguityMargin > 1 {
		errs = append(errs, fmt.Errorf("segmentation.ambiguity_margin %.2f is out of range [0, 1]", seg.AmbiguityMargin))
	}
	if seg.MinMergeGap < 0 {
		errs = append(errs, fmt.Errorf("segmentation.min_merge_gap must not be negative"))
	}
	if seg.MaxSegmentDuration < 0 {
		errs = append(errs, fmt.Errorf("segmentation.max_segment_duration must not be negative"))
	}

	// Capability providers
	validateProviderName("asr", cfg.ASR.Provider)
	validateProviderName("diarize", cfg.Diarize.Name)
	validateProviderName("speaker_embed", cfg.SpeakerEmbed.Name)
	if cfg.ASR.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("asr.batch_size must not be negative"))
	}
	if cfg.ASR.ReclaimCadence < 0 {
		errs = append(errs, fmt.Errorf("asr.reclaim_cadence must not be negative"))
	}

	// Segment shaping ↔ backend limit cross-validation. A segment cap above
	// the chunk limit would make every oversized segment a scheduler
	// configuration violation instead of being split upstream.
	if seg.MaxSegmentDuration > 0 && cfg.ASR.MaxChunkDuration > 0 &&
		seg.MaxSegmentDuration > cfg.ASR.MaxChunkDuration {
		errs = append(errs, fmt.Errorf(
			"segmentation.max_segment_duration %v exceeds asr.max_chunk_duration %v; segments would be rejected by the transcription backend",
			seg.MaxSegmentDuration.Std(), cfg.ASR.MaxChunkDuration.Std()))
	}

	// Speakers
	idsSeen := make(map[string]int, len(cfg.Speakers))
	for i, spk := range cfg.Speakers {
		prefix := fmt.Sprintf("speakers[%d]", i)
		if spk.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := idsSeen[spk.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of speakers[%d]", prefix, spk.ID, prev))
			}
			idsSeen[spk.ID] = i
		}
		if spk.Sample == "" {
			errs = append(errs, fmt.Errorf("%s.sample is required", prefix))
		}
	}

	// Search / embeddings
	validateProviderName("embeddings", cfg.Search.Embeddings.Name)
	if cfg.Search.Embeddings.Name != "" && cfg.Search.EmbeddingDimensions <= 0 {
		slog.Warn("search.embeddings is configured but search.embedding_dimensions is not set; defaulting to 1536")
	}
	if cfg.Search.PostgresDSN == "" {
		slog.Warn("search.postgres_dsn is empty; transcripts will not be persisted or searchable")
	}

	// Storage
	if cfg.Storage.Bucket == "" && cfg.Storage.Prefix != "" {
		errs = append(errs, fmt.Errorf("storage.prefix is set but storage.bucket is empty"))
	}

	// Polish
	if cfg.Polish.Enabled {
		validateProviderName("llm", cfg.Polish.Provider.Name)
		if cfg.Polish.Provider.Name == "" {
			errs = append(errs, fmt.Errorf("polish.enabled is true but polish.provider.name is not configured"))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
