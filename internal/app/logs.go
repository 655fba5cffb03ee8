package app

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	logDebounceInterval = 150 * time.Millisecond
	logLineLimit        = 200
)

// logBuffer keeps the tail of the log output and republishes it, debounced,
// to the log pane. It is an io.Writer so a slog text handler can feed it.
type logBuffer struct {
	mu       sync.Mutex
	lines    []string
	limit    int
	updateCh chan struct{}
}

func newLogBuffer(limit int) *logBuffer {
	if limit <= 0 {
		limit = logLineLimit
	}
	return &logBuffer{limit: limit, updateCh: make(chan struct{}, 1)}
}

func (b *logBuffer) Write(p []byte) (int, error) {
	text := strings.ReplaceAll(string(p), "\r\n", "\n")
	b.mu.Lock()
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.lines = append(b.lines, line)
	}
	if len(b.lines) > b.limit {
		b.lines = b.lines[len(b.lines)-b.limit:]
	}
	b.mu.Unlock()

	select {
	case b.updateCh <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Text returns the retained lines joined by newlines.
func (b *logBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}

// run calls flush with the current text once writes have been quiet for
// logDebounceInterval. It returns when ctx ends.
func (b *logBuffer) run(ctx context.Context, flush func(string)) {
	timer := time.NewTimer(logDebounceInterval)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-b.updateCh:
			timer.Reset(logDebounceInterval)
		case <-timer.C:
			flush(b.Text())
		}
	}
}
