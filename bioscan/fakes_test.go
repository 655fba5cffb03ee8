package bioscan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// scriptedEmbedder wraps CompositionEmbedder with failure injection, an optional
// gate that blocks every call, and concurrency accounting.
type scriptedEmbedder struct {
	failOn  map[string]error
	gate    chan struct{}
	entered chan struct{}

	calls     atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64

	mu  sync.Mutex
	got []string
}

func (s *scriptedEmbedder) Embed(ctx context.Context, seq string) ([]float32, error) {
	s.calls.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		cur := s.maxActive.Load()
		if n <= cur || s.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	s.mu.Lock()
	s.got = append(s.got, seq)
	s.mu.Unlock()
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := s.failOn[seq]; ok {
		return nil, err
	}
	return CompositionEmbedder{}.Embed(ctx, seq)
}

func (s *scriptedEmbedder) ModelID() string { return "scripted" }

func (s *scriptedEmbedder) Close() error { return nil }

// fixedEmbedder returns preset vectors per sequence.
type fixedEmbedder map[string][]float32

func (f fixedEmbedder) Embed(_ context.Context, seq string) ([]float32, error) {
	v, ok := f[seq]
	if !ok {
		return nil, errors.New("no vector for " + seq)
	}
	return v, nil
}

func (f fixedEmbedder) ModelID() string { return "fixed" }

func (f fixedEmbedder) Close() error { return nil }

// stubLoader is an embedder with a controllable load state.
type stubLoader struct {
	CompositionEmbedder
	state ProviderState
	err   error
}

func (s *stubLoader) Load(context.Context) error { return s.err }

func (s *stubLoader) State() ProviderState { return s.state }

func (s *stubLoader) Err() error {
	switch s.state {
	case ProviderReady:
		return nil
	case ProviderFailed:
		return s.err
	default:
		return ErrNotReady
	}
}
