// Package dispatch decouples message processing from the chat transport's
// latency and failure characteristics: handlers enqueue outbound side effects
// as plain task values, and a single worker executes them in FIFO order with
// bounded retries.
//
// A full queue fails fast: the enqueue is dropped (logged and counted) rather
// than blocking the producer, so a stalled transport can never cascade into
// blocking inbound handling.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/palatki-dv/warden/transport"
)

var ErrQueueFull = errors.New("dispatch queue full")

const (
	defaultCapacity  = 50
	defaultMaxTries  = 5
	perCallTimeout   = 30 * time.Second
	shutdownDeadline = 10 * time.Second
)

type Queue struct {
	logger   *slog.Logger
	tx       transport.Transport
	tasks    chan Task
	pacer    *rate.Limiter
	maxTries int
}

type Options struct {
	// Capacity bounds the queue; zero means the default (50).
	Capacity int
	// MaxTries bounds execution attempts per task, counting the first; zero
	// means the default (5).
	MaxTries int
	// SendsPerSecond paces outbound calls; zero disables pacing.
	SendsPerSecond float64
}

func NewQueue(tx transport.Transport, logger *slog.Logger, opts Options) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	maxTries := opts.MaxTries
	if maxTries <= 0 {
		maxTries = defaultMaxTries
	}
	var pacer *rate.Limiter
	if opts.SendsPerSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(opts.SendsPerSecond), 1)
	}
	return &Queue{
		logger:   logger.With("system", "dispatch"),
		tx:       tx,
		tasks:    make(chan Task, capacity),
		pacer:    pacer,
		maxTries: maxTries,
	}
}

// Enqueue hands a task to the worker. Never blocks: returns ErrQueueFull
// (and records the drop) when the queue is at capacity.
func (q *Queue) Enqueue(t Task) error {
	select {
	case q.tasks <- t:
		return nil
	default:
		tasksDropped.Inc()
		q.logger.Warn("dropping task, queue full", "kind", t.Kind.String(), "chat", t.Chat)
		return ErrQueueFull
	}
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}

// Run is the worker loop. It pulls one task at a time and executes it,
// retrying transient failures with capped backoff. A task that keeps failing
// is abandoned with a log line; the loop itself never stops on task errors.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.drain()
			return nil
		case t := <-q.tasks:
			q.process(ctx, t)
		}
	}
}

// drain executes whatever is still queued at shutdown, best-effort with a
// hard deadline and no retries.
func (q *Queue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()
	for {
		select {
		case t := <-q.tasks:
			if err := q.execute(ctx, t); err != nil {
				q.logger.Warn("dropping task during shutdown drain", "kind", t.Kind.String(), "err", err)
			}
		default:
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, t Task) {
	var err error
	for attempt := 0; attempt < q.maxTries; attempt++ {
		if attempt > 0 {
			taskRetries.Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleepForBackoff(attempt)):
			}
		}
		err = q.execute(ctx, t)
		if err == nil {
			tasksProcessed.WithLabelValues(t.Kind.String()).Inc()
			return
		}
		if !transport.IsTransient(err) {
			// non-retryable: report and move on, one bad task must not stall
			// the queue
			break
		}
		q.logger.Warn("transient dispatch failure", "kind", t.Kind.String(), "attempt", attempt+1, "err", err)
	}
	tasksFailed.WithLabelValues(t.Kind.String()).Inc()
	q.logger.Error("abandoning dispatch task", "kind", t.Kind.String(), "err", err)
}

func (q *Queue) execute(ctx context.Context, t Task) error {
	if q.pacer != nil {
		if err := q.pacer.Wait(ctx); err != nil {
			return err
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, perCallTimeout)
	defer cancel()

	switch t.Kind {
	case TaskSendMessage:
		var opts *transport.SendOpts
		if t.Keyboard != nil || t.ReplyTo != 0 {
			opts = &transport.SendOpts{Keyboard: t.Keyboard, ReplyTo: t.ReplyTo}
		}
		ref, err := q.tx.SendMessage(callCtx, t.Chat, t.Text, opts)
		if err != nil {
			return err
		}
		if t.DeleteAfter > 0 {
			q.scheduleDelete(ref, t.DeleteAfter)
		}
		return nil
	case TaskDeleteMessage:
		return q.tx.DeleteMessage(callCtx, t.Ref)
	case TaskBanUser:
		return q.tx.BanUser(callCtx, t.Chat, t.User)
	case TaskNotifyAdmin:
		_, err := q.tx.SendMessage(callCtx, transport.ChatID(t.User), t.Text, nil)
		return err
	default:
		return transport.NewBadRequestError("unknown task kind")
	}
}

// scheduleDelete re-enqueues a delete task after the delay. If the queue is
// full at that point the delete is dropped like any other overflow.
func (q *Queue) scheduleDelete(ref transport.MessageRef, after time.Duration) {
	time.AfterFunc(after, func() {
		if err := q.Enqueue(Task{Kind: TaskDeleteMessage, Ref: ref}); err != nil {
			q.logger.Warn("scheduled deletion dropped", "chat", ref.Chat, "message", ref.ID)
		}
	})
}

func sleepForBackoff(b int) time.Duration {
	if b == 0 {
		return 0
	}
	if b < 5 {
		return (time.Duration(b) * time.Second) + (time.Millisecond * time.Duration(rand.Intn(500)))
	}
	return time.Second * 10
}
