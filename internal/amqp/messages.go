package amqp

import (
	"encoding/json"
	"time"

	"expensecalc/internal/widget"
)

// ExpenseEventMessage is the broker payload for one calculator change.
type ExpenseEventMessage struct {
	Kind      string    `json:"kind"`
	WidgetID  string    `json:"widget_id"`
	Position  int       `json:"position"`
	Name      string    `json:"name"`
	Amount    float64   `json:"amount"`
	Total     float64   `json:"total"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEventMessage converts a widget event into a message.
func NewExpenseEventMessage(ev widget.Event) *ExpenseEventMessage {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ExpenseEventMessage{
		Kind:      string(ev.Kind),
		WidgetID:  ev.WidgetID,
		Position:  ev.Position,
		Name:      ev.Expense.Name,
		Amount:    ev.Expense.Amount,
		Total:     ev.Total,
		Count:     ev.Count,
		Timestamp: ts.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON creates a message from JSON bytes
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
