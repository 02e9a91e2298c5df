package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/upsetlens/internal/adapters/mq/queue"
	"github.com/okian/upsetlens/internal/adapters/repository"
	"github.com/okian/upsetlens/pkg/logger"
	"github.com/okian/upsetlens/pkg/metrics"
)

const (
	defaultQueueSize      = 256
	persistTimeout        = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
	outcomeOK             = "ok"
	outcomeError          = "error"
	outcomeSessionMissing = "session_missing"
)

// Sessions looks up the session a command targets.
type Sessions interface {
	Get(ctx context.Context, id string) (*repository.Session, error)
}

// Persister stores a session after it changed.
type Persister interface {
	Save(ctx context.Context, snap repository.Snapshot) error
}

// Queue defines how workers receive commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Command
}

// Worker applies commands from one queue.
type Worker interface {
	// Run consumes commands until the queue is closed or ctx is done.
	Run(ctx context.Context)
	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker applies commands one at a time.
type InMemoryWorker struct {
	queue     Queue
	sessions  Sessions
	persister Persister
	name      string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, sessions Sessions, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		sessions: sessions,
		name:     "worker",
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run implements Worker. Commands already queued when the queue closes are
// still applied.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	for cmd := range w.queue.Dequeue(ctx) {
		cmd.Reply <- w.process(ctx, cmd)
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, cmd queue.Command) error {
	defer func() {
		metrics.RecordCommandLatency(float64(time.Since(cmd.Enqueued).Microseconds()) / 1000)
	}()

	sess, err := w.sessions.Get(ctx, cmd.SessionID)
	if err != nil {
		metrics.RecordSelectionAction(cmd.Name, outcomeSessionMissing)
		return err
	}

	if err := cmd.Apply(sess); err != nil {
		metrics.RecordSelectionAction(cmd.Name, outcomeError)
		w.logger.Debug(ctx, "command rejected",
			logger.String("session_id", cmd.SessionID),
			logger.String("command", cmd.Name),
			logger.Error(err),
		)
		return err
	}
	metrics.RecordSelectionAction(cmd.Name, outcomeOK)

	if w.persister != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		perr := w.persister.Save(pctx, sess.Snapshot())
		cancel()
		metrics.RecordSnapshotSave(perr)
		if perr != nil {
			metrics.RecordErrorByComponent("worker", "snapshot_save")
			w.logger.Error(ctx, "snapshot save failed",
				logger.String("session_id", cmd.SessionID),
				logger.Error(perr),
			)
		}
	}
	return nil
}

// Pool owns one queue and one worker per shard. A session always maps to
// the same shard, so its commands apply in arrival order.
type Pool struct {
	shardCount int
	queueSize  int
	persister  Persister
	sessions   Sessions

	queues  []*queue.InMemoryQueue
	workers []*InMemoryWorker

	mu      sync.RWMutex
	started bool
	stopped bool

	logger logger.Logger
}

// NewPool creates a pool. Call Start before Submit.
func NewPool(sessions Sessions, opts ...PoolOption) *Pool {
	p := &Pool{
		shardCount: runtime.NumCPU(),
		queueSize:  defaultQueueSize,
		sessions:   sessions,
		logger:     logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.queues = make([]*queue.InMemoryQueue, p.shardCount)
	p.workers = make([]*InMemoryWorker, p.shardCount)
	for i := range p.shardCount {
		name := strconv.Itoa(i)
		p.queues[i] = queue.NewInMemoryQueue(queue.WithCapacity(p.queueSize), queue.WithName(name))
		p.workers[i] = NewInMemoryWorker(p.queues[i], sessions,
			WithName("shard-"+name),
			WithPersister(p.persister),
			WithLogger(p.logger),
		)
	}
	return p
}

// Start launches the shard workers.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("shards", p.shardCount))
}

// Shard returns the shard index sessionID is pinned to.
func (p *Pool) Shard(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(p.shardCount))
}

// Submit enqueues cmd on its session's shard and waits for the result.
// Commands that never run yield ErrNotApplied wrapped with
// queue.ErrBackpressure when the shard is full, queue.ErrStopped once the
// pool or queue is shut down, or the context error. A context that ends
// after the command was queued yields ErrAbandoned.
func (p *Pool) Submit(ctx context.Context, cmd queue.Command) error {
	p.mu.RLock()
	if p.stopped || !p.started {
		p.mu.RUnlock()
		return fmt.Errorf("%w: %w", ErrNotApplied, queue.ErrStopped)
	}
	if cmd.Reply == nil {
		cmd.Reply = make(chan error, 1)
	}
	if cmd.Enqueued.IsZero() {
		cmd.Enqueued = time.Now()
	}
	err := p.queues[p.Shard(cmd.SessionID)].Enqueue(ctx, cmd)
	p.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotApplied, err)
	}

	select {
	case err := <-cmd.Reply:
		if errors.Is(err, queue.ErrStopped) {
			return fmt.Errorf("%w: %w", ErrNotApplied, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrAbandoned, ctx.Err())
	}
}

// Len returns the number of commands pending across shards.
func (p *Pool) Len(ctx context.Context) int {
	n := 0
	for _, q := range p.queues {
		n += q.Len(ctx)
	}
	return n
}

// Shutdown stops accepting commands, lets pending ones finish and waits for
// the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	for _, q := range p.queues {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	if !started {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	var errs []error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("shard", i))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
