package bioscan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEncoder struct {
	calls  atomic.Int64
	closed atomic.Bool
	err    error
}

func (f *fakeEncoder) Encode(seq string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return CompositionEmbedder{}.Embed(context.Background(), seq)
}

func (f *fakeEncoder) Dim() int { return compositionDim }

func (f *fakeEncoder) MaxSeqLen() int { return 1024 }

func (f *fakeEncoder) Close() { f.closed.Store(true) }

func newFakeEmbedder(t *testing.T, cfg EmbedderConfig, enc *fakeEncoder, loadErr error, opts ...EmbedderOption) (*OrtEmbedder, *atomic.Int64) {
	t.Helper()
	var loads atomic.Int64
	factory := func(EmbedderConfig) (encoder, error) {
		loads.Add(1)
		if loadErr != nil {
			return nil, loadErr
		}
		return enc, nil
	}
	if cfg.ModelPath == "" {
		cfg.ModelPath = "models/esm2_t6_8M_UR50D/model.onnx"
	}
	o, err := newOrtEmbedder(cfg, factory, opts...)
	require.NoError(t, err)
	return o, &loads
}

func TestOrtEmbedderNotReadyBeforeLoad(t *testing.T) {
	o, _ := newFakeEmbedder(t, EmbedderConfig{}, &fakeEncoder{}, nil)
	assert.Equal(t, ProviderNotLoaded, o.State())
	assert.ErrorIs(t, o.Err(), ErrNotReady)

	_, err := o.Embed(context.Background(), "MKVLLPAAAAAA")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, ErrLoad)
}

func TestOrtEmbedderDerivesModelID(t *testing.T) {
	o, _ := newFakeEmbedder(t, EmbedderConfig{}, &fakeEncoder{}, nil)
	assert.Equal(t, "esm2_t6_8M_UR50D/model.onnx", o.ModelID())

	o, _ = newFakeEmbedder(t, EmbedderConfig{ModelID: "custom"}, &fakeEncoder{}, nil)
	assert.Equal(t, "custom", o.ModelID())
}

func TestOrtEmbedderLoadFailure(t *testing.T) {
	o, loads := newFakeEmbedder(t, EmbedderConfig{}, nil, errors.New("no such file"))

	err := o.Load(context.Background())
	require.ErrorIs(t, err, ErrLoad)
	assert.Contains(t, err.Error(), "no such file")
	assert.Equal(t, ProviderFailed, o.State())
	assert.Equal(t, err, o.Err())

	assert.Equal(t, err, o.Load(context.Background()))
	assert.Equal(t, int64(1), loads.Load())

	_, embedErr := o.Embed(context.Background(), "MKVLLPAAAAAA")
	assert.ErrorIs(t, embedErr, ErrLoad)
}

func TestOrtEmbedderLogsModelShape(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	o, _ := newFakeEmbedder(t, EmbedderConfig{}, &fakeEncoder{}, nil, WithLogger(logger))
	require.NoError(t, o.Load(context.Background()))

	assert.Contains(t, buf.String(), "embedding model ready")
	assert.Contains(t, buf.String(), fmt.Sprintf("dim=%d", compositionDim))
	assert.Contains(t, buf.String(), "max_tokens=1024")
}

func TestOrtEmbedderLoadsOnce(t *testing.T) {
	o, loads := newFakeEmbedder(t, EmbedderConfig{}, &fakeEncoder{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, o.Load(context.Background()))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), loads.Load())
	assert.Equal(t, ProviderReady, o.State())
	assert.NoError(t, o.Err())
}

func TestOrtEmbedderMemoryCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	enc := &fakeEncoder{}
	o, _ := newFakeEmbedder(t, EmbedderConfig{}, enc, nil, WithMetrics(m))
	require.NoError(t, o.Load(context.Background()))

	first, err := o.Embed(context.Background(), "MKVLLPAAAAAA")
	require.NoError(t, err)
	first[0] = 42

	second, err := o.Embed(context.Background(), "MKVLLPAAAAAA")
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), second[0])
	assert.Equal(t, int64(1), enc.calls.Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeds.WithLabelValues("model")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeds.WithLabelValues("memory")))
}

func TestOrtEmbedderDiskCacheSurvivesRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cfg := EmbedderConfig{CacheDir: dir}

	enc := &fakeEncoder{}
	o, _ := newFakeEmbedder(t, cfg, enc, nil)
	require.NoError(t, o.Load(context.Background()))
	want, err := o.Embed(context.Background(), "MKVLLPAAAAAA")
	require.NoError(t, err)
	require.NoError(t, o.Close())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".bin", filepath.Ext(files[0].Name()))

	enc2 := &fakeEncoder{}
	o2, _ := newFakeEmbedder(t, cfg, enc2, nil)
	require.NoError(t, o2.Load(context.Background()))
	got, err := o2.Embed(context.Background(), "MKVLLPAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, enc2.calls.Load())
}

func TestOrtEmbedderCacheKeyDependsOnModel(t *testing.T) {
	a, _ := newFakeEmbedder(t, EmbedderConfig{ModelID: "a"}, &fakeEncoder{}, nil)
	b, _ := newFakeEmbedder(t, EmbedderConfig{ModelID: "b"}, &fakeEncoder{}, nil)
	assert.NotEqual(t, a.cacheKey("MKV"), b.cacheKey("MKV"))
	assert.Equal(t, a.cacheKey("MKV"), a.cacheKey("MKV"))
}

func TestOrtEmbedderInferenceError(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("bad tensor")}
	o, _ := newFakeEmbedder(t, EmbedderConfig{}, enc, nil)
	require.NoError(t, o.Load(context.Background()))

	_, err := o.Embed(context.Background(), "MKVLLPAAAAAA")
	assert.EqualError(t, err, "bad tensor")
}

func TestOrtEmbedderRejectsEmptySequence(t *testing.T) {
	o, _ := newFakeEmbedder(t, EmbedderConfig{}, &fakeEncoder{}, nil)
	require.NoError(t, o.Load(context.Background()))
	_, err := o.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrtEmbedderCloseReleasesEncoder(t *testing.T) {
	enc := &fakeEncoder{}
	o, _ := newFakeEmbedder(t, EmbedderConfig{}, enc, nil)
	require.NoError(t, o.Load(context.Background()))
	require.NoError(t, o.Close())
	assert.True(t, enc.closed.Load())
	assert.Equal(t, ProviderNotLoaded, o.State())

	_, err := o.Embed(context.Background(), "MKVLLPAAAAAA")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSerialEmbedderNeverOverlaps(t *testing.T) {
	inner := &scriptedEmbedder{}
	s := &serialEmbedder{next: inner}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Embed(context.Background(), "MKVLLPAAAAAA")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(16), inner.calls.Load())
	assert.Equal(t, int64(1), inner.maxActive.Load())
}

func TestCompositionEmbedder(t *testing.T) {
	vec, err := CompositionEmbedder{}.Embed(context.Background(), "AAB")
	require.NoError(t, err)
	require.Len(t, vec, 26)
	assert.InDelta(t, 2.0/3.0, vec[0], 1e-6)
	assert.InDelta(t, 1.0/3.0, vec[1], 1e-6)

	_, err = CompositionEmbedder{}.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrValidation)
}
