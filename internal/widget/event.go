package widget

import (
	"time"

	"expensecalc/internal/core"
)

// EventKind names a widget state change.
type EventKind string

const (
	EventAdded   EventKind = "expense.added"
	EventRemoved EventKind = "expense.removed"
)

// Event describes one successful add or remove, with the state it produced.
type Event struct {
	Kind     EventKind
	WidgetID string
	Position int
	Expense  core.Expense
	Total    float64
	Count    int
	At       time.Time
}

func (w *Widget) emit(kind EventKind, position int, e core.Expense) {
	if w.onEvent == nil {
		return
	}
	w.onEvent(Event{
		Kind:     kind,
		WidgetID: w.id,
		Position: position,
		Expense:  e,
		Total:    w.store.Total(),
		Count:    w.store.Len(),
		At:       w.now(),
	})
}
