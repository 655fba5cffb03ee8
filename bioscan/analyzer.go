package bioscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome is delivered once per job: either a Result or an error.
type Outcome struct {
	Result Result
	Err    error
}

// Job is a handle on a started analysis.
type Job struct {
	ID        string
	Query     string
	Selection Selection
	done      chan Outcome
}

// Done yields the job outcome exactly once.
func (j *Job) Done() <-chan Outcome {
	return j.done
}

// Wait blocks until the job finishes or ctx ends. Ending ctx does not stop the job.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case out := <-j.done:
		return out.Result, out.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// AnalyzerOption customizes an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithAnalyzerLogger sets the orchestrator logger.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAnalyzerMetrics records outcomes and rejections.
func WithAnalyzerMetrics(m *Metrics) AnalyzerOption {
	return func(a *Analyzer) { a.metrics = m }
}

// Analyzer runs one analysis at a time: Idle -> Running -> Completed|Failed -> Idle.
type Analyzer struct {
	registry *Registry
	embedder Embedder
	loader   Loader
	ranker   *Ranker
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time

	mu      sync.Mutex
	state   State
	current string
	subs    map[int]chan StatusEvent
	nextSub int
	wg      sync.WaitGroup
}

// NewAnalyzer wires the registry and embedder. Every embed call made through the
// analyzer is serialized. If the embedder implements Loader, analyses are refused
// until it reports ProviderReady.
func NewAnalyzer(registry *Registry, embedder Embedder, opts ...AnalyzerOption) (*Analyzer, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	serial := &serialEmbedder{next: embedder}
	a := &Analyzer{
		registry: registry,
		embedder: serial,
		ranker:   NewRanker(serial),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		subs:     make(map[int]chan StatusEvent),
	}
	if l, ok := embedder.(Loader); ok {
		a.loader = l
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Registry returns the registry the analyzer reads targets from.
func (a *Analyzer) Registry() *Registry {
	return a.registry
}

// State returns the current lifecycle state.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Subscribe returns a channel of status events. Sends never block: a full buffer
// drops events. The returned func unsubscribes and closes the channel.
func (a *Analyzer) Subscribe(buffer int) (<-chan StatusEvent, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan StatusEvent, buffer)
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, id)
			a.mu.Unlock()
			close(ch)
		})
	}
}

// Start validates the request synchronously and runs it on a worker goroutine.
// Rejections (ErrValidation, ErrNotFound, ErrNotReady, ErrBusy) leave the state untouched.
func (a *Analyzer) Start(ctx context.Context, rawQuery string, sel Selection) (*Job, error) {
	query := NormalizeSequence(rawQuery)
	if !ValidSequence(query) {
		a.metrics.observeRejected("validation")
		return nil, validationErrorf("query has %d residues, need more than %d", len(query), MinSequenceLength)
	}
	targets, err := a.resolve(sel)
	if err != nil {
		a.metrics.observeRejected("not_found")
		return nil, err
	}
	if a.loader != nil && a.loader.State() != ProviderReady {
		a.metrics.observeRejected("not_ready")
		if err := a.loader.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotReady
	}

	job := &Job{
		ID:        uuid.NewString(),
		Query:     query,
		Selection: sel,
		done:      make(chan Outcome, 1),
	}
	a.mu.Lock()
	if a.state == StateRunning {
		a.mu.Unlock()
		a.metrics.observeRejected("busy")
		return nil, ErrBusy
	}
	a.setStateLocked(job.ID, StateRunning, nil)
	a.wg.Add(1)
	a.mu.Unlock()

	a.logger.Info("analysis started", "job", job.ID, "residues", len(query), "targets", len(targets), "selection", sel.String())
	go a.run(ctx, job, targets)
	return job, nil
}

// Analyze starts an analysis and waits for its outcome.
func (a *Analyzer) Analyze(ctx context.Context, rawQuery string, sel Selection) (Result, error) {
	job, err := a.Start(ctx, rawQuery, sel)
	if err != nil {
		return Result{}, err
	}
	return job.Wait(ctx)
}

// Wait blocks until no analysis is in flight.
func (a *Analyzer) Wait() {
	a.wg.Wait()
}

func (a *Analyzer) resolve(sel Selection) ([]ReceptorEntry, error) {
	if sel.All {
		return a.registry.All(), nil
	}
	entry, err := a.registry.Get(sel.Name)
	if err != nil {
		return nil, err
	}
	return []ReceptorEntry{entry}, nil
}

func (a *Analyzer) run(ctx context.Context, job *Job, targets []ReceptorEntry) {
	defer a.wg.Done()
	start := a.now()
	result, err := a.execute(ctx, job, targets)
	elapsed := a.now().Sub(start)

	a.mu.Lock()
	if err != nil {
		a.setStateLocked(job.ID, StateFailed, err)
	} else {
		result.Elapsed = elapsed
		result.CompletedAt = a.now()
		a.setStateLocked(job.ID, StateCompleted, nil)
	}
	a.setStateLocked("", StateIdle, nil)
	a.mu.Unlock()

	if err != nil {
		a.metrics.observeAnalysis("failed", elapsed)
		a.logger.Error("analysis failed", "job", job.ID, "error", err, "elapsed", elapsed)
		job.done <- Outcome{Err: err}
		return
	}
	a.metrics.observeAnalysis("completed", elapsed)
	a.logger.Info("analysis completed", "job", job.ID, "scores", len(result.Scores), "elapsed", elapsed)
	job.done <- Outcome{Result: result}
}

func (a *Analyzer) execute(ctx context.Context, job *Job, targets []ReceptorEntry) (Result, error) {
	qvec, err := a.embedder.Embed(ctx, job.Query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &InferenceError{Target: "query", Err: err}
	}
	scores, err := a.ranker.Rank(ctx, qvec, targets)
	if err != nil {
		return Result{}, fmt.Errorf("rank %d targets: %w", len(targets), err)
	}
	return Result{
		ID:        job.ID,
		Query:     job.Query,
		Selection: job.Selection,
		Scores:    scores,
		ModelID:   a.embedder.ModelID(),
	}, nil
}

// setStateLocked must be called with a.mu held.
func (a *Analyzer) setStateLocked(jobID string, state State, err error) {
	a.state = state
	if state == StateRunning {
		a.current = jobID
	}
	if jobID == "" {
		jobID = a.current
	}
	if state == StateIdle {
		a.current = ""
	}
	ev := StatusEvent{JobID: jobID, State: state, Err: err, At: a.now()}
	for _, ch := range a.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
