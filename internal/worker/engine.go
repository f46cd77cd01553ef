package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/invoicer/internal/config"
	"github.com/Additional-Code/invoicer/internal/messaging"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	// stableSession is how long a consume session must last for the next
	// failure to count as fresh rather than part of an outage.
	stableSession  = time.Minute
)

var tracer = otel.Tracer("github.com/Additional-Code/invoicer/worker")

// HandlerRegistration binds a topic to the handler that processes it. Worker
// modules contribute registrations to the "worker.handlers" group.
type HandlerRegistration struct {
	Topic   string
	Handler messaging.Handler
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
}

// Engine runs a fixed pool of consumers that dispatch messages by topic.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	cfg      config.Config
	handlers map[string]messaging.Handler
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// Module wires the engine into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{OnStart: engine.start, OnStop: engine.stop})
	}),
)

// NewEngine constructs the worker Engine. Registrations without a topic or
// handler are ignored; a later registration for the same topic wins.
func NewEngine(p Params) *Engine {
	handlers := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic != "" && r.Handler != nil {
			handlers[r.Topic] = r.Handler
		}
	}
	return &Engine{client: p.Client, logger: p.Logger, cfg: p.Config, handlers: handlers}
}

func (e *Engine) start(context.Context) error {
	switch {
	case !e.cfg.Messaging.Enabled || !e.cfg.Messaging.Workers.Enabled:
		e.logger.Info("worker engine disabled")
		return nil
	case len(e.handlers) == 0:
		e.logger.Info("worker engine has no handlers; skipping")
		return nil
	}

	workers := max(e.cfg.Messaging.Workers.Concurrency, 1)

	// The run context outlives the start hook's context.
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	for id := 0; id < workers; id++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consume(runCtx, id)
		}()
	}

	topics := make([]string, 0, len(e.handlers))
	for topic := range e.handlers {
		topics = append(topics, topic)
	}
	e.logger.Info("worker engine started", zap.Int("workers", workers), zap.Strings("topics", topics))
	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")
		return nil
	}
}

// consume keeps one consumer attached to the bus, backing off exponentially
// after client failures.
func (e *Engine) consume(ctx context.Context, workerID int) {
	var delay retryDelay
	for ctx.Err() == nil {
		started := time.Now()
		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			return e.dispatch(msgCtx, workerID, msg)
		})
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, messaging.ErrClosed) {
			return
		}

		backoff := delay.after(time.Since(started))
		e.logger.Error("consume loop error", zap.Error(err), zap.Int("worker", workerID), zap.Duration("backoff", backoff))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

// retryDelay doubles the wait between failed consume sessions up to
// maxBackoff and starts over after a stable session.
type retryDelay struct {
	next time.Duration
}

// after returns the wait following a session that ran for session.
func (r *retryDelay) after(session time.Duration) time.Duration {
	if r.next == 0 || session >= stableSession {
		r.next = initialBackoff
	}
	wait := r.next
	r.next = min(r.next*2, maxBackoff)
	return wait
}

// dispatch routes msg to its topic handler. A panicking handler is reported as
// an error so the message stays uncommitted.
func (e *Engine) dispatch(ctx context.Context, workerID int, msg messaging.Message) (err error) {
	handler, ok := e.handlers[msg.Topic]
	if !ok {
		e.logger.Warn("no handler for topic", zap.String("topic", msg.Topic))
		return nil
	}

	ctx, span := tracer.Start(ctx, "worker.dispatch")
	span.SetAttributes(
		attribute.String("messaging.topic", msg.Topic),
		attribute.Int("worker.id", workerID),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "handler failed")
		}
		span.End()
	}()

	e.logger.Debug("processing message", zap.String("topic", msg.Topic), zap.Int("worker", workerID))
	return handler(ctx, msg)
}
