package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"cleanstreet/backend/metrics"

	"github.com/apex/log"
)

var ErrQueueFull = errors.New("notification queue is full")
var ErrClosed = errors.New("notifier is closed")

const sendTimeout = 30 * time.Second

// AsyncNotifier delivers notifications from a bounded in-process queue.
// Failed sends are retried with exponential backoff up to maxRetries times.
type AsyncNotifier struct {
	sender     Sender
	maxRetries int
	backoff    time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan *Notification
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewAsyncNotifier(sender Sender, workers, maxRetries int, backoff time.Duration) *AsyncNotifier {
	if workers <= 0 {
		workers = 1
	}
	a := &AsyncNotifier{
		sender:     sender,
		maxRetries: maxRetries,
		backoff:    backoff,
		queue:      make(chan *Notification, workers*16),
		stop:       make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.run()
	}
	return a
}

func (a *AsyncNotifier) Notify(ctx context.Context, n *Notification) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- n:
		return nil
	default:
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "dropped").Inc()
		return ErrQueueFull
	}
}

func (a *AsyncNotifier) run() {
	defer a.wg.Done()
	for n := range a.queue {
		a.deliver(n)
	}
}

func (a *AsyncNotifier) deliver(n *Notification) {
	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	wait := a.backoff
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := Deliver(ctx, a.sender, n)
		cancel()
		if err == nil {
			return
		}
		if errors.Is(err, ErrMalformed) {
			log.Errorf("Dropping notification: %v", err)
			return
		}
		if attempt >= a.maxRetries {
			metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
			log.Errorf("Giving up on %s notification after %d attempts: %v", n.Kind, attempt+1, err)
			return
		}
		metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "retry").Inc()
		log.Warnf("%s notification attempt %d failed, retrying in %s: %v", n.Kind, attempt+1, wait, err)
		select {
		case <-time.After(wait):
		case <-a.stop:
			metrics.NotificationsTotal.WithLabelValues(string(n.Kind), "failed").Inc()
			log.Warnf("Shutting down, abandoning %s notification: %v", n.Kind, err)
			return
		}
		wait *= 2
	}
}

// Close stops accepting notifications and waits for queued ones to drain or
// for ctx to expire.
func (a *AsyncNotifier) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(a.stop)
		return ctx.Err()
	}
}
