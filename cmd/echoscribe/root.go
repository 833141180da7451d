package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/echoscribe/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "echoscribe",
	Short: "Speaker-attributed transcription for recorded lessons",
	Long: `Echoscribe turns long recordings into speaker-attributed transcripts:
it trims silence, diarizes and identifies enrolled speakers, transcribes in
memory-bounded batches, uploads run artifacts to object storage, and indexes
the result for full-text and semantic search.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	rootCmd.AddCommand(processCmd, searchCmd, versionCmd)
}

// loadConfig reads the configured YAML file and installs the default logger
// at the configured level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", configPath)
		}
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.LogLevel))
	return cfg, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// numbers as int or float64 depending on their spelling.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
