package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"consultas-gateway/internal/blobstore"
	"consultas-gateway/internal/metrics"
	"consultas-gateway/pkg/logging/logging"
)

// Persister defaults applied to zero PersisterConfig fields.
const (
	DefaultPersistWorkers   = 4
	DefaultPersistQueueSize = 256
	DefaultPersistTimeout   = 60 * time.Second
)

// ErrPersisterClosed is reported for tasks submitted after Close.
var ErrPersisterClosed = errors.New("persister closed")

// Task is one fetched result waiting to be stored.
type Task struct {
	ID         string
	Request    Request
	Body       []byte
	EnqueuedAt time.Time
}

// Outcome reports how a task ended. Key is empty when nothing was written.
type Outcome struct {
	Task Task
	Kind Kind
	Key  string
	Err  error
}

// PersisterConfig bounds the background writer.
type PersisterConfig struct {
	// Workers bounds how many tasks run at once (default 4).
	Workers int
	// QueueSize bounds how many tasks may wait; a full queue drops new tasks
	// (default 256).
	QueueSize int
	// TaskTimeout bounds one task, download and write included (default 60s).
	TaskTimeout time.Duration
	// OnDone, if set, is called after each task with its outcome.
	OnDone func(Outcome)
}

type queuedTask struct {
	ctx  context.Context
	task Task
}

// Persister stores fetched results in the background. Submit never blocks
// the caller; failures are logged, counted and reported to OnDone only.
type Persister struct {
	store blobstore.Store
	media *Downloader
	cfg   PersisterConfig

	mu     sync.RWMutex
	closed bool
	queue  chan queuedTask

	group      *taskgroup.Group
	start      func(taskgroup.Task)
	dispatched chan struct{}
}

// NewPersister starts the dispatcher. With a nil store Submit is a no-op.
func NewPersister(store blobstore.Store, media *Downloader, cfg PersisterConfig) *Persister {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPersistWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultPersistQueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultPersistTimeout
	}
	if media == nil {
		media = NewDownloader(nil, 0, 0)
	}

	p := &Persister{
		store:      store,
		media:      media,
		cfg:        cfg,
		queue:      make(chan queuedTask, cfg.QueueSize),
		dispatched: make(chan struct{}),
	}
	p.group, p.start = taskgroup.New(nil).Limit(cfg.Workers)

	go p.dispatch()
	return p
}

// Submit queues body for persistence under req. It reports whether the task
// was accepted. ctx only carries the logger: the task runs detached from it.
func (p *Persister) Submit(ctx context.Context, req Request, body []byte) bool {
	if p == nil || p.store == nil {
		return false
	}

	task := Task{
		ID:         uuid.NewString(),
		Request:    req,
		Body:       body,
		EnqueuedAt: time.Now(),
	}
	logger := logging.L(ctx).With(zap.String("task_id", task.ID), zap.String("route", req.Route))

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		logger.Warn("persist_rejected_closed")
		p.report(Outcome{Task: task, Err: ErrPersisterClosed})
		return false
	}

	select {
	case p.queue <- queuedTask{ctx: logging.WithLogger(context.Background(), logger), task: task}:
		metrics.PersistQueueDepth.Inc()
		return true
	default:
		metrics.PersistTotal.WithLabelValues("dropped", "error").Inc()
		logger.Warn("persist_queue_full", zap.Int("queue_size", p.cfg.QueueSize))
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or for ctx
// to end, whichever is first.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-p.dispatched
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persister) dispatch() {
	defer close(p.dispatched)
	for q := range p.queue {
		metrics.PersistQueueDepth.Dec()
		p.start(func() error {
			p.run(q)
			return nil
		})
	}
}

func (p *Persister) run(q queuedTask) {
	ctx, cancel := context.WithTimeout(q.ctx, p.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	out := p.persist(ctx, q.task)
	logger := logging.L(ctx).With(
		zap.String("kind", out.Kind.String()),
		zap.Duration("queued", start.Sub(q.task.EnqueuedAt)),
		zap.Duration("duration", time.Since(start)),
	)

	if out.Err != nil {
		metrics.PersistTotal.WithLabelValues(out.Kind.String(), "error").Inc()
		logger.Error("persist_failed", zap.Error(out.Err))
	} else {
		metrics.PersistTotal.WithLabelValues(out.Kind.String(), "ok").Inc()
		logger.Info("persist_stored", zap.String("key", out.Key))
	}
	p.report(out)
}

func (p *Persister) persist(ctx context.Context, task Task) Outcome {
	req := task.Request
	c := Classify(task.Body)
	out := Outcome{Task: task, Kind: c.Kind}

	obj := blobstore.Object{
		ContentType: c.ContentType,
		Metadata: map[string]string{
			"route":       req.Route,
			"param_name":  req.ParamName,
			"param_value": req.ParamValue,
			"task_id":     task.ID,
		},
	}

	switch c.Kind {
	case KindMedia:
		data, err := p.media.Download(ctx, c.URL)
		if err != nil {
			out.Err = err
			return out
		}
		obj.Key = DeriveMediaKey(req.Route, req.ParamName, req.ParamValue, c.Ext)
		obj.Payload = data
		obj.Metadata["source_url"] = c.URL
	default:
		obj.Key = DeriveJSONKey(req.Route, req.ParamName, req.ParamValue)
		obj.Payload = c.Payload
	}

	if err := p.store.Put(ctx, obj); err != nil {
		out.Err = err
		return out
	}
	out.Key = obj.Key
	return out
}

func (p *Persister) report(out Outcome) {
	if p.cfg.OnDone != nil {
		p.cfg.OnDone(out)
	}
}

// Pending returns how many tasks wait in the queue.
func (p *Persister) Pending() int {
	return len(p.queue)
}
