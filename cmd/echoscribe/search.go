package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/echoscribe/internal/config"
	"github.com/MrWong99/echoscribe/internal/segment"
	"github.com/MrWong99/echoscribe/pkg/store/postgres"
	"github.com/MrWong99/echoscribe/pkg/types"
)

var (
	searchSpeaker  string
	searchSource   string
	searchLimit    int
	searchSemantic bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed transcripts",
	Long: `Search runs a full-text query over all indexed transcript lines.
With --semantic the query is embedded through the configured embeddings
provider and matched by vector similarity instead. Speaker filters are
fuzzy: "giam doc" finds lines by "Giám Đốc Đức" even though stored names
went through path sanitisation.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchSpeaker, "speaker", "", "restrict results to one enrolled speaker (fuzzy matched)")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "restrict results to one source recording")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchSemantic, "semantic", false, "vector similarity search instead of full-text")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Search.PostgresDSN == "" {
		return errors.New("search.postgres_dsn is not configured")
	}

	ctx := cmd.Context()
	dims := cfg.Search.EmbeddingDimensions
	if dims <= 0 {
		dims = 1536
	}
	store, err := postgres.NewStore(ctx, cfg.Search.PostgresDSN, dims)
	if err != nil {
		return fmt.Errorf("connect transcript store: %w", err)
	}
	defer store.Close()

	opts := postgres.SearchOpts{Source: searchSource, Limit: searchLimit}
	if searchSpeaker != "" {
		opts.Speaker, err = resolveSpeaker(cfg, searchSpeaker)
		if err != nil {
			return err
		}
	}

	var results []postgres.SearchResult
	if searchSemantic {
		results, err = semanticSearch(ctx, cfg, store, args[0], opts)
	} else {
		results, err = store.Search(ctx, args[0], opts)
	}
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%6.3f  %s  %s\n", r.Score, r.Source, r.Line.String())
	}
	return nil
}

// semanticSearch embeds the query through the configured provider and ranks
// lines by vector distance.
func semanticSearch(ctx context.Context, cfg *config.Config, store *postgres.Store, query string, opts postgres.SearchOpts) ([]postgres.SearchResult, error) {
	if cfg.Search.Embeddings.Name == "" {
		return nil, errors.New("--semantic requires search.embeddings to be configured")
	}
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	embedder, err := reg.CreateTextEmbedder(cfg.Search.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", cfg.Search.Embeddings.Name, err)
	}
	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return store.SemanticSearch(ctx, vec, opts)
}

// resolveSpeaker fuzzy-matches name against the configured speakers and
// returns the stored display form.
func resolveSpeaker(cfg *config.Config, name string) (string, error) {
	labels := make([]*types.SpeakerLabel, 0, len(cfg.Speakers))
	for _, spk := range cfg.Speakers {
		labels = append(labels, &types.SpeakerLabel{ID: spk.ID, DisplayName: spk.DisplayName})
	}
	registry, err := segment.NewRegistry(labels)
	if err != nil {
		return "", err
	}
	label, score, ok := registry.Resolve(name)
	if !ok {
		known := make([]string, 0, len(labels))
		for _, l := range labels {
			known = append(known, l.Display())
		}
		return "", fmt.Errorf("no enrolled speaker matches %q; known speakers: %s", name, strings.Join(known, ", "))
	}
	slog.Debug("speaker resolved", "query", name, "speaker", label.Display(), "score", score)
	return label.Display(), nil
}
