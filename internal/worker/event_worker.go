package worker

import (
	"context"
	"sync"
	"time"

	"expensecalc/internal/amqp"
	"expensecalc/internal/log"
	"expensecalc/internal/widget"
)

// Tally is the running view of one widget as seen through its events.
type Tally struct {
	Added     int64     `json:"added"`
	Removed   int64     `json:"removed"`
	Count     int       `json:"count"`
	Total     float64   `json:"total"`
	LastEvent time.Time `json:"last_event"`
}

// EventWorker consumes calculator events from the broker and keeps a tally
// per widget.
type EventWorker struct {
	mu      sync.Mutex
	tallies map[string]Tally
	logger  *log.Logger
}

func NewEventWorker(logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &EventWorker{
		tallies: make(map[string]Tally),
		logger:  logger.WithComponent(log.ComponentEvents),
	}
}

// HandleEventMessage applies one message. Unknown kinds are logged and
// acknowledged so they do not loop through the queue.
func (w *EventWorker) HandleEventMessage(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	w.mu.Lock()
	t := w.tallies[msg.WidgetID]
	switch widget.EventKind(msg.Kind) {
	case widget.EventAdded:
		t.Added++
	case widget.EventRemoved:
		t.Removed++
	default:
		w.mu.Unlock()
		w.logger.WarnContext(ctx, "Ignoring unknown event kind",
			log.FieldEventKind, msg.Kind,
			log.FieldWidgetID, msg.WidgetID)
		return nil
	}
	// Older messages still count but do not roll the snapshot back.
	if !msg.Timestamp.Before(t.LastEvent) {
		t.Count = msg.Count
		t.Total = msg.Total
		t.LastEvent = msg.Timestamp
	}
	w.tallies[msg.WidgetID] = t
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Processed calculator event",
		log.FieldEventKind, msg.Kind,
		log.FieldWidgetID, msg.WidgetID,
		log.FieldExpenseName, msg.Name,
		log.FieldAmount, msg.Amount,
		log.FieldExpenseCount, msg.Count,
		log.FieldTotal, msg.Total)
	return nil
}

// Tally returns the tally for one widget.
func (w *EventWorker) Tally(widgetID string) (Tally, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tallies[widgetID]
	return t, ok
}

// Widgets returns how many distinct widgets have been seen.
func (w *EventWorker) Widgets() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tallies)
}

// Consumer is the subset of the AMQP client the worker reads from.
type Consumer interface {
	Consume(ctx context.Context, handler func(*amqp.ExpenseEventMessage) error) error
}

// Run consumes until ctx is done.
func (w *EventWorker) Run(ctx context.Context, c Consumer) error {
	return c.Consume(ctx, func(msg *amqp.ExpenseEventMessage) error {
		return w.HandleEventMessage(ctx, msg)
	})
}
