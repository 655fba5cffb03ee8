package bioscan

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"yashubustudio/bioscan/emb"
)

// Embedder turns a cleaned sequence into its signature.
type Embedder interface {
	Embed(ctx context.Context, seq string) ([]float32, error)
	ModelID() string
	Close() error
}

// Loader is implemented by embedders that must be loaded before use.
// Err is nil once ready, ErrNotReady while loading and the load error after a failure.
type Loader interface {
	Load(ctx context.Context) error
	State() ProviderState
	Err() error
}

// ProviderState is the load lifecycle of an embedder.
type ProviderState int

const (
	ProviderNotLoaded ProviderState = iota
	ProviderLoading
	ProviderReady
	ProviderFailed
)

func (s ProviderState) String() string {
	switch s {
	case ProviderNotLoaded:
		return "not loaded"
	case ProviderLoading:
		return "loading"
	case ProviderReady:
		return "ready"
	case ProviderFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type encoder interface {
	Encode(seq string) ([]float32, error)
	Dim() int
	MaxSeqLen() int
	Close()
}

func newOrtEncoder(cfg EmbedderConfig) (encoder, error) {
	enc := &emb.Encoder{}
	if err := enc.Init(emb.Config{
		OrtDLL:        cfg.OrtDLL,
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		MaxSeqLen:     cfg.MaxSeqLen,
	}); err != nil {
		return nil, err
	}
	return enc, nil
}

// EmbedderOption customizes an OrtEmbedder.
type EmbedderOption func(*OrtEmbedder)

// WithLogger sets the embedder logger.
func WithLogger(logger *slog.Logger) EmbedderOption {
	return func(o *OrtEmbedder) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records cache hits and inference latency.
func WithMetrics(m *Metrics) EmbedderOption {
	return func(o *OrtEmbedder) { o.metrics = m }
}

// OrtEmbedder wraps emb.Encoder with a load lifecycle, a single inference lock,
// an LRU memory cache and an optional on-disk cache.
type OrtEmbedder struct {
	cfg        EmbedderConfig
	logger     *slog.Logger
	metrics    *Metrics
	newEncoder func(EmbedderConfig) (encoder, error)

	loadOnce sync.Once
	stateMu  sync.RWMutex
	state    ProviderState
	loadErr  error

	inferMu  sync.Mutex
	enc      encoder
	memCache *lru.Cache[string, []float32]
	group    singleflight.Group
}

// NewOrtEmbedder prepares cache directories. The model is not loaded until Load.
func NewOrtEmbedder(cfg EmbedderConfig, opts ...EmbedderOption) (*OrtEmbedder, error) {
	return newOrtEmbedder(cfg, newOrtEncoder, opts...)
}

func newOrtEmbedder(cfg EmbedderConfig, factory func(EmbedderConfig) (encoder, error), opts ...EmbedderOption) (*OrtEmbedder, error) {
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = emb.DefaultMaxSeqLen
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.ModelID == "" && cfg.ModelPath != "" {
		cfg.ModelID = filepath.Base(filepath.Dir(cfg.ModelPath)) + "/" + filepath.Base(cfg.ModelPath)
	}
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create signature cache: %w", err)
	}
	o := &OrtEmbedder{
		cfg:        cfg,
		logger:     slog.New(slog.DiscardHandler),
		newEncoder: factory,
		memCache:   cache,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Load initializes the encoder exactly once. Later calls return the first result.
func (o *OrtEmbedder) Load(ctx context.Context) error {
	o.loadOnce.Do(func() {
		o.setState(ProviderLoading, nil)
		if err := ctx.Err(); err != nil {
			o.setState(ProviderFailed, fmt.Errorf("%w: %v", ErrLoad, err))
			return
		}
		start := time.Now()
		o.logger.Info("loading embedding model", "model", o.cfg.ModelID, "path", o.cfg.ModelPath)
		enc, err := o.newEncoder(o.cfg)
		if err != nil {
			o.logger.Error("embedding model failed to load", "error", err)
			o.setState(ProviderFailed, fmt.Errorf("%w: %v", ErrLoad, err))
			return
		}
		o.inferMu.Lock()
		o.enc = enc
		o.inferMu.Unlock()
		o.setState(ProviderReady, nil)
		o.logger.Info("embedding model ready",
			"model", o.cfg.ModelID,
			"dim", enc.Dim(),
			"max_tokens", enc.MaxSeqLen(),
			"elapsed", time.Since(start),
		)
	})
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.loadErr
}

// State reports the load lifecycle position.
func (o *OrtEmbedder) State() ProviderState {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

// Err reports why the embedder cannot serve requests, or nil when it is ready.
func (o *OrtEmbedder) Err() error {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	switch o.state {
	case ProviderReady:
		return nil
	case ProviderFailed:
		return o.loadErr
	default:
		return ErrNotReady
	}
}

func (o *OrtEmbedder) setState(state ProviderState, err error) {
	o.stateMu.Lock()
	o.state = state
	o.loadErr = err
	o.stateMu.Unlock()
}

// Close releases ORT resources.
func (o *OrtEmbedder) Close() error {
	if o == nil {
		return nil
	}
	o.inferMu.Lock()
	defer o.inferMu.Unlock()
	if o.enc != nil {
		o.enc.Close()
		o.enc = nil
	}
	o.memCache.Purge()
	o.stateMu.Lock()
	if o.state == ProviderReady {
		o.state = ProviderNotLoaded
	}
	o.stateMu.Unlock()
	return nil
}

// ModelID returns the identifier used for cache keys.
func (o *OrtEmbedder) ModelID() string {
	return o.cfg.ModelID
}

// Embed returns the signature of a cleaned sequence, consulting the caches first.
func (o *OrtEmbedder) Embed(ctx context.Context, seq string) ([]float32, error) {
	if seq == "" {
		return nil, validationErrorf("empty sequence")
	}
	o.stateMu.RLock()
	state, loadErr := o.state, o.loadErr
	o.stateMu.RUnlock()
	switch state {
	case ProviderReady:
	case ProviderFailed:
		return nil, loadErr
	default:
		return nil, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := o.cacheKey(seq)
	if vec, ok := o.memCache.Get(key); ok {
		o.metrics.observeEmbed("memory", 0)
		return cloneVector(vec), nil
	}
	if vec, err := o.loadFromDisk(key); err == nil {
		o.memCache.Add(key, vec)
		o.metrics.observeEmbed("disk", 0)
		return cloneVector(vec), nil
	}
	v, err, _ := o.group.Do(key, func() (any, error) {
		o.inferMu.Lock()
		defer o.inferMu.Unlock()
		if o.enc == nil {
			return nil, ErrNotReady
		}
		start := time.Now()
		vec, err := o.enc.Encode(seq)
		if err != nil {
			return nil, err
		}
		elapsed := time.Since(start)
		o.metrics.observeEmbed("model", elapsed)
		o.logger.Debug("sequence embedded", "residues", len(seq), "dim", len(vec), "elapsed", elapsed)
		o.memCache.Add(key, vec)
		if err := o.saveToDisk(key, vec); err != nil {
			o.logger.Warn("signature cache save failed", "error", err)
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneVector(v.([]float32)), nil
}

func (o *OrtEmbedder) cacheKey(seq string) string {
	h := sha1.New()
	_, _ = io.WriteString(h, o.cfg.ModelID)
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, strconv.Itoa(o.cfg.MaxSeqLen))
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, seq)
	return hex.EncodeToString(h.Sum(nil))
}

func (o *OrtEmbedder) loadFromDisk(key string) ([]float32, error) {
	if o.cfg.CacheDir == "" {
		return nil, os.ErrNotExist
	}
	path := filepath.Join(o.cfg.CacheDir, key+".bin")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("cache file too small: %s", path)
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, fmt.Errorf("cache length mismatch: %s", path)
	}
	vec := make([]float32, length)
	for i := 0; i < length; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}

func (o *OrtEmbedder) saveToDisk(key string, vec []float32) error {
	if o.cfg.CacheDir == "" {
		return nil
	}
	path := filepath.Join(o.cfg.CacheDir, key+".bin")
	tmp := path + ".tmp"
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// serialEmbedder funnels every call through one lock so an injected provider
// never sees concurrent inference.
type serialEmbedder struct {
	mu   sync.Mutex
	next Embedder
}

func (s *serialEmbedder) Embed(ctx context.Context, seq string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Embed(ctx, seq)
}

func (s *serialEmbedder) ModelID() string { return s.next.ModelID() }

func (s *serialEmbedder) Close() error { return s.next.Close() }

func cloneVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
