package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/scenegov/internal/metrics"
	"github.com/example/scenegov/internal/ports/secondary"
)

// Dispatch errors.
var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrClosed    = errors.New("notification dispatcher is closed")
)

// NotifierResolver maps a channel name onto the notifier serving it.
type NotifierResolver interface {
	Resolve(channel string) (secondary.Notifier, error)
}

// ResultHandler receives every delivery result on the dispatcher's result goroutine.
type ResultHandler func(secondary.DeliveryResult)

// DispatcherOptions configures a Dispatcher. Zero values select defaults.
type DispatcherOptions struct {
	QueueSize   int
	Timeout     time.Duration
	MaxParallel int
	OnResult    ResultHandler
	Metrics     *metrics.Metrics
}

// Dispatcher delivers notification payloads in the background.
// Dispatch only enqueues; a worker goroutine fans each payload out to its
// channels and reports every outcome on a separate result channel.
type Dispatcher struct {
	resolver NotifierResolver
	logger   *zap.Logger
	opts     DispatcherOptions

	queue   chan secondary.NotificationPayload
	results chan secondary.DeliveryResult
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ secondary.NotificationDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher and starts its goroutines. Call Close to drain them.
func NewDispatcher(resolver NotifierResolver, logger *zap.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 4
	}

	d := &Dispatcher{
		resolver: resolver,
		logger:   logger,
		opts:     opts,
		queue:    make(chan secondary.NotificationPayload, opts.QueueSize),
		results:  make(chan secondary.DeliveryResult, opts.QueueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	go d.collect()
	return d
}

// Dispatch enqueues a payload without waiting for delivery.
func (d *Dispatcher) Dispatch(p secondary.NotificationPayload) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- p:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting payloads and waits until every queued payload was
// delivered and its results handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}

func (d *Dispatcher) run() {
	for p := range d.queue {
		d.fanOut(p)
	}
	close(d.results)
}

func (d *Dispatcher) fanOut(p secondary.NotificationPayload) {
	var g errgroup.Group
	g.SetLimit(d.opts.MaxParallel)

	for _, channel := range p.Channels {
		g.Go(func() error {
			err := d.deliver(channel, p)
			d.results <- secondary.DeliveryResult{Channel: channel, Payload: p, Err: err}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		d.logger.Debug("notification fan-out finished with failures",
			zap.String("trace_id", p.TraceID),
			zap.Error(err))
	}
}

func (d *Dispatcher) deliver(channel string, p secondary.NotificationPayload) error {
	n, err := d.resolver.Resolve(channel)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()
	return n.Notify(ctx, p)
}

func (d *Dispatcher) collect() {
	defer close(d.done)

	for r := range d.results {
		status := "delivered"
		if r.Err != nil {
			status = "failed"
			d.logger.Warn("auto-degrade notification failed",
				zap.String("trace_id", r.Payload.TraceID),
				zap.String("channel", r.Channel),
				zap.Error(r.Err))
		}
		_ = d.opts.Metrics.Inc(metrics.NotifyDelivery, Kind(r.Channel), status)
		if d.opts.OnResult != nil {
			d.opts.OnResult(r)
		}
	}
}
