package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSendTimeout = 15 * time.Second
	defaultWorkers     = 1
	defaultQueueSize   = 128
)

type Config struct {
	SendTimeout   time.Duration
	PostSendDelay time.Duration
	Workers       int
	QueueSize     int
}

type job struct {
	phone   string
	message string
}

// Dispatcher hands messages to a Sink from background workers so callers
// never wait on delivery. Failures are logged and otherwise dropped.
type Dispatcher struct {
	sink   Sink
	logger *zap.Logger
	cfg    Config
	queue  chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink Sink, logger *zap.Logger, cfg Config) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.PostSendDelay < 0 {
		cfg.PostSendDelay = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	d := &Dispatcher{
		sink:   sink,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan job, cfg.QueueSize),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.work()
	}

	return d
}

// Dispatch enqueues a message for phone and returns immediately. The request
// context is not carried into delivery so a finished request cannot cancel it.
func (d *Dispatcher) Dispatch(_ context.Context, phone, message string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logFailure(phone, ErrDispatcherDown)
		return
	}

	select {
	case d.queue <- job{phone: phone, message: message}:
	default:
		d.logFailure(phone, ErrQueueFull)
	}
}

// Close stops accepting messages and waits for queued ones to drain or for
// ctx to end, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notification queue: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for j := range d.queue {
		d.deliver(j)

		if d.cfg.PostSendDelay > 0 {
			time.Sleep(d.cfg.PostSendDelay)
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	if d.sink == nil {
		d.logFailure(j.phone, errors.New("notification sink is nil"))
		return
	}

	number, err := strconv.ParseInt(j.phone, 10, 64)
	if err != nil || number <= 0 {
		d.logFailure(j.phone, ErrInvalidPhone)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	res, err := d.sink.Send(ctx, number, j.message)
	if err != nil {
		d.logFailure(j.phone, err)
		return
	}

	d.logger.Info("notification_sent",
		zap.String("phone", j.phone),
		zap.String("provider", res.Provider),
		zap.String("message_id", res.MessageID),
		zap.String("status", res.Status),
	)
}

func (d *Dispatcher) logFailure(phone string, err error) {
	d.logger.Warn("notification_failed",
		zap.String("phone", phone),
		zap.Error(fmt.Errorf("%w: %w", ErrDelivery, err)),
	)
}
