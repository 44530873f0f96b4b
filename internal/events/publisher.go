// Package events forwards widget state changes to an outside sink without
// blocking the request that produced them.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"expensecalc/internal/log"
	"expensecalc/internal/widget"
)

// Sink receives events one at a time.
type Sink interface {
	Publish(ctx context.Context, ev widget.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev widget.Event) error

func (f SinkFunc) Publish(ctx context.Context, ev widget.Event) error { return f(ctx, ev) }

// Stats counts publisher outcomes.
type Stats struct {
	Published int64 `json:"published"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
}

// Publisher buffers events and drains them to a Sink from a single goroutine.
// Emit never waits for the sink; when the buffer is full the event is dropped.
type Publisher struct {
	sink   Sink
	queue  chan widget.Event
	logger *log.Logger

	// mu orders Emit against shutdown: Emit holds it shared while sending,
	// Run takes it exclusively to mark the publisher closed before draining.
	mu     sync.RWMutex
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

func NewPublisher(sink Sink, bufferSize int, logger *log.Logger) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Publisher{
		sink:   sink,
		queue:  make(chan widget.Event, bufferSize),
		logger: logger.WithComponent(log.ComponentEvents),
	}
}

// Emit queues ev. It reports false when the event was dropped.
func (p *Publisher) Emit(ev widget.Event) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return false
	}
	select {
	case p.queue <- ev:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("Event buffer full, dropping event",
			log.FieldEventKind, ev.Kind,
			log.FieldWidgetID, ev.WidgetID)
		return false
	}
}

// Run drains the buffer until ctx is done, then refuses further events and
// publishes whatever is still queued with a fresh context. Cancel ctx only
// after the producers have stopped, otherwise their late events are dropped.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-p.queue:
			p.publish(ctx, ev)
		case <-ctx.Done():
			p.mu.Lock()
			p.closed = true
			p.mu.Unlock()
			p.drain()
			return nil
		}
	}
}

func (p *Publisher) drain() {
	ctx := context.Background()
	for {
		select {
		case ev := <-p.queue:
			p.publish(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, ev widget.Event) {
	if err := p.sink.Publish(ctx, ev); err != nil {
		p.failed.Add(1)
		p.logger.ErrorContext(ctx, "Failed to publish event",
			log.FieldError, err,
			log.FieldEventKind, ev.Kind,
			log.FieldWidgetID, ev.WidgetID)
		return
	}
	p.published.Add(1)
}

// Stats returns a snapshot of the counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
	}
}

// LogSink writes events to the log. It is used when no broker is configured.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Publish(ctx context.Context, ev widget.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = log.Discard()
	}
	fields := log.NewFields().
		WithOperation(log.OpPublish).
		WithWidget(ev.WidgetID).
		WithExpense(ev.Expense.Name, ev.Expense.Amount, ev.Position).
		WithState(ev.Count, ev.Total)
	fields[log.FieldEventKind] = string(ev.Kind)
	logger.InfoContext(ctx, "Calculator event", fields.ToSlice()...)
	return nil
}
