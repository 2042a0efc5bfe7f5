package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"horse.fit/glossian/internal/cli"
	"horse.fit/glossian/internal/config"
	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/dispatch"
	"horse.fit/glossian/internal/logging"
	"horse.fit/glossian/internal/store"
	"horse.fit/glossian/internal/surface"
	"horse.fit/glossian/internal/translation"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(value)
}

func writeTable(headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// loadRuntime loads the env file, config and logger shared by every command.
// engineOverride replaces TRANSLATION_ENGINE when non-empty.
func loadRuntime(envLoader *cli.EnvLoader, engineOverride string) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	if engine := strings.TrimSpace(engineOverride); engine != "" {
		cfg.TranslationEngine = engine
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// pipeline is the fully wired translation path: store, engines, one dispatcher
// per kind and the in-memory surface they write to.
type pipeline struct {
	pool        *db.Pool
	cache       *store.Cache
	registry    *translation.Registry
	dispatchers *dispatch.Set
	surface     *surface.MemorySurface
}

func openPipeline(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pipeline, error) {
	registry, err := translation.NewRegistryFromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure translation engines: %w", err)
	}
	provider, err := registry.Default()
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cache, err := store.New(pool, logger)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	if err := cache.Preload(ctx); err != nil {
		// Kinds that failed to load are retried lazily on first lookup.
		logger.Warn().Err(err).Msg("translation cache preload incomplete")
	}

	mem := surface.NewMemorySurface()
	dispatchers, err := dispatch.NewSet(dispatch.Options{
		Provider:           provider,
		Store:              cache,
		Surface:            mem,
		SourceLang:         cfg.SourceLang,
		TargetLang:         cfg.TargetLang,
		MatchEngine:        cfg.MatchEngine(),
		CopyToClipboard:    cfg.CopyToClipboard,
		SkipTargetLanguage: cfg.SkipTargetLanguageText,
		MaxInFlight:        cfg.DispatchMaxInFlight,
		Logger:             logger,
	}, db.AllKinds())
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	logger.Info().
		Str("engine", provider.Engine().String()).
		Str("source_lang", cfg.SourceLang).
		Str("target_lang", cfg.TargetLang).
		Bool("match_engine", cfg.MatchEngine()).
		Msg("translation pipeline ready")

	return &pipeline{
		pool:        pool,
		cache:       cache,
		registry:    registry,
		dispatchers: dispatchers,
		surface:     mem,
	}, nil
}

// Close drains in-flight dispatches before closing the store.
func (p *pipeline) Close() {
	if p == nil {
		return
	}
	p.dispatchers.Close()
	_ = p.pool.Close()
}
