package main

import (
	"log/slog"
	"time"

	"github.com/MrWong99/echoscribe/internal/config"
	"github.com/MrWong99/echoscribe/pkg/capability/asr"
	"github.com/MrWong99/echoscribe/pkg/capability/asr/whisper"
	"github.com/MrWong99/echoscribe/pkg/capability/diarize"
	diarizeenergy "github.com/MrWong99/echoscribe/pkg/capability/diarize/energy"
	"github.com/MrWong99/echoscribe/pkg/capability/speakerembed"
	embedenergy "github.com/MrWong99/echoscribe/pkg/capability/speakerembed/energy"
	"github.com/MrWong99/echoscribe/pkg/textembed"
	oaembed "github.com/MrWong99/echoscribe/pkg/textembed/openai"
)

// builtinProviders maps capability kinds to the implementations that ship
// with Echoscribe. Used for startup logging.
var builtinProviders = map[string][]string{
	"asr":           {"whisper-native"},
	"diarize":       {"energy"},
	"speaker_embed": {"energy"},
	"embeddings":    {"openai"},
}

// registerBuiltinProviders wires all built-in capability factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterASR("whisper-native", func(cfg config.ASRConfig) (asr.Transcriber, error) {
		var opts []whisper.Option
		if cfg.Language != "" {
			opts = append(opts, whisper.WithLanguage(cfg.Language))
		}
		return whisper.New(cfg.ModelPath, opts...)
	})

	reg.RegisterDiarizer("energy", func(entry config.ProviderEntry) (diarize.Diarizer, error) {
		var opts []diarizeenergy.Option
		if v := optFloat(entry.Options, "threshold"); v > 0 {
			opts = append(opts, diarizeenergy.WithThreshold(v))
		}
		if v := optFloat(entry.Options, "level_step"); v > 0 {
			opts = append(opts, diarizeenergy.WithLevelStep(v))
		}
		if s := optString(entry.Options, "min_gap"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, err
			}
			opts = append(opts, diarizeenergy.WithMinGap(d))
		}
		return diarizeenergy.New(opts...), nil
	})

	reg.RegisterSpeakerEmbedder("energy", func(entry config.ProviderEntry) (speakerembed.Embedder, error) {
		var opts []embedenergy.Option
		if s := optString(entry.Options, "window"); s != "" {
			d, err := time.ParseDuration(s)
			if err != nil {
				return nil, err
			}
			opts = append(opts, embedenergy.WithWindow(d))
		}
		return embedenergy.New(opts...), nil
	})

	reg.RegisterTextEmbedder("openai", func(entry config.ProviderEntry) (textembed.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}
