package settings

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yashubustudio/bioscan/bioscan"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigPath, EnvEmbedderKind, EnvOrtLibrary, EnvModelPath, EnvTokenizerPath,
		EnvCacheDir, EnvCacheSize, EnvSeedsPath, EnvLogLevel, EnvReportDir,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, bioscan.SaveConfig(cfgPath, bioscan.Config{LogLevel: "warn"}))

	t.Setenv(EnvEmbedderKind, "Composition")
	t.Setenv(EnvCacheDir, filepath.Join(dir, "cache"))
	t.Setenv(EnvCacheSize, "64")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(cfgPath, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, bioscan.EmbedderComposition, cfg.Embedder.Kind)
	assert.Equal(t, 64, cfg.Embedder.CacheSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "cache"), cfg.Embedder.CacheDir)
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("BIOSCAN_MODEL_PATH=/opt/esm/model.onnx\nBIOSCAN_REPORT_DIR=out\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv(EnvModelPath)
		os.Unsetenv(EnvReportDir)
	})
	// godotenv does not override variables that already exist.
	os.Unsetenv(EnvModelPath)
	os.Unsetenv(EnvReportDir)

	cfg, err := Load(filepath.Join(dir, "config.json"), envPath)
	require.NoError(t, err)
	assert.Equal(t, "/opt/esm/model.onnx", cfg.Embedder.ModelPath)
	assert.Equal(t, "out", cfg.ReportDir)
}

func TestLoadRejectsBadOverrides(t *testing.T) {
	clearEnv(t)
	cfgPath := filepath.Join(t.TempDir(), "config.json")

	t.Setenv(EnvEmbedderKind, "tpu")
	_, err := Load(cfgPath, "")
	assert.ErrorContains(t, err, EnvEmbedderKind)

	t.Setenv(EnvEmbedderKind, "")
	t.Setenv(EnvCacheSize, "lots")
	_, err = Load(cfgPath, "")
	assert.ErrorContains(t, err, EnvCacheSize)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(bioscan.Config{Embedder: bioscan.EmbedderConfig{Kind: bioscan.EmbedderComposition}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "composition", e.ModelID())

	e, err = NewEmbedder(bioscan.Config{Embedder: bioscan.EmbedderConfig{Kind: bioscan.EmbedderONNX, ModelPath: "m/model.onnx"}}, nil, nil)
	require.NoError(t, err)
	loader, ok := e.(bioscan.Loader)
	require.True(t, ok)
	assert.Equal(t, bioscan.ProviderNotLoaded, loader.State())

	_, err = NewEmbedder(bioscan.Config{Embedder: bioscan.EmbedderConfig{Kind: "gpu"}}, nil, nil)
	assert.Error(t, err)
}

func TestNewRegistryAddsSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.fasta")
	require.NoError(t, os.WriteFile(path, []byte(">TLR4\nMMSASRLAGTLIPAMAFLSCVRP\n"), 0o644))
	m := bioscan.NewMetrics(prometheus.NewRegistry())

	reg, err := NewRegistry(bioscan.Config{SeedsPath: path}, m)
	require.NoError(t, err)
	assert.Equal(t, len(bioscan.DefaultReceptors())+1, reg.Len())
	_, err = reg.Get("TLR4")
	assert.NoError(t, err)

	_, err = NewRegistry(bioscan.Config{SeedsPath: filepath.Join(t.TempDir(), "none.fasta")}, nil)
	assert.Error(t, err)
}
