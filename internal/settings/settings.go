// Package settings resolves runtime configuration for the command line and desktop
// entry points: config.json, an optional .env file and BIOSCAN_* overrides.
package settings

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"yashubustudio/bioscan/bioscan"
)

// Environment variables that override config.json.
const (
	EnvConfigPath    = "BIOSCAN_CONFIG"
	EnvEmbedderKind  = "BIOSCAN_EMBEDDER"
	EnvOrtLibrary    = "BIOSCAN_ORT_LIB"
	EnvModelPath     = "BIOSCAN_MODEL_PATH"
	EnvTokenizerPath = "BIOSCAN_TOKENIZER_PATH"
	EnvCacheDir      = "BIOSCAN_CACHE_DIR"
	EnvCacheSize     = "BIOSCAN_CACHE_SIZE"
	EnvSeedsPath     = "BIOSCAN_SEEDS"
	EnvLogLevel      = "BIOSCAN_LOG_LEVEL"
	EnvReportDir     = "BIOSCAN_REPORT_DIR"
)

// Load reads envFiles (".env" when none are given; missing files are skipped),
// then the config file and finally applies BIOSCAN_* overrides.
// Variables already present in the process environment win over .env values.
func Load(configPath string, envFiles ...string) (bioscan.Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return bioscan.Config{}, err
	}
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	cfg, err := bioscan.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func applyEnv(cfg *bioscan.Config) error {
	if v, ok := lookup(EnvEmbedderKind); ok {
		kind := bioscan.EmbedderKind(strings.ToLower(v))
		switch kind {
		case bioscan.EmbedderONNX, bioscan.EmbedderComposition:
			cfg.Embedder.Kind = kind
		default:
			return fmt.Errorf("%s: unknown embedder kind %q", EnvEmbedderKind, v)
		}
	}
	if v, ok := lookup(EnvOrtLibrary); ok {
		cfg.Embedder.OrtDLL = v
	}
	if v, ok := lookup(EnvModelPath); ok {
		cfg.Embedder.ModelPath = v
	}
	if v, ok := lookup(EnvTokenizerPath); ok {
		cfg.Embedder.TokenizerPath = v
	}
	if v, ok := lookup(EnvCacheDir); ok {
		cfg.Embedder.CacheDir = v
	}
	if v, ok := lookup(EnvCacheSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: want a positive integer, got %q", EnvCacheSize, v)
		}
		cfg.Embedder.CacheSize = n
	}
	if v, ok := lookup(EnvSeedsPath); ok {
		cfg.SeedsPath = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookup(EnvReportDir); ok {
		cfg.ReportDir = v
	}
	cfg.ApplyDefaults()
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown names yield info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger builds a text logger writing to w at the named level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewEmbedder constructs the signature provider named by cfg. The ONNX provider is
// returned unloaded; callers run Load on a goroutine of their choosing.
func NewEmbedder(cfg bioscan.Config, logger *slog.Logger, metrics *bioscan.Metrics) (bioscan.Embedder, error) {
	switch cfg.Embedder.Kind {
	case bioscan.EmbedderComposition:
		return bioscan.CompositionEmbedder{}, nil
	case bioscan.EmbedderONNX, "":
		return bioscan.NewOrtEmbedder(cfg.Embedder,
			bioscan.WithLogger(logger),
			bioscan.WithMetrics(metrics),
		)
	default:
		return nil, fmt.Errorf("unknown embedder kind %q", cfg.Embedder.Kind)
	}
}

// NewRegistry seeds the built-in receptors and then adds every record of
// cfg.SeedsPath, when set.
func NewRegistry(cfg bioscan.Config, metrics *bioscan.Metrics) (*bioscan.Registry, error) {
	reg, err := bioscan.NewSeededRegistry(bioscan.DefaultReceptors())
	if err != nil {
		return nil, err
	}
	if cfg.SeedsPath != "" {
		entries, err := bioscan.LoadReceptorFile(cfg.SeedsPath)
		if err != nil {
			return nil, fmt.Errorf("load seeds: %w", err)
		}
		if err := reg.AddAll(entries); err != nil {
			return nil, fmt.Errorf("load seeds: %w", err)
		}
	}
	reg.Instrument(metrics)
	return reg, nil
}
