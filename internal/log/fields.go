package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldReason     = "reason"

	FieldWidgetID     = "widget_id"
	FieldExpenseName  = "expense_name"
	FieldAmount       = "amount"
	FieldPosition     = "position"
	FieldTotal        = "total"
	FieldExpenseCount = "expense_count"
	FieldEventKind    = "event_kind"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentWidget    = "widget"
	ComponentSession   = "session"
	ComponentEvents    = "events"
	ComponentAMQP      = "amqp"
	ComponentQueue     = "azure_queue"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTemplate  = "template"
)

// Operations defines standard operation names
const (
	OpAdd      = "add"
	OpRemove   = "remove"
	OpMount    = "mount"
	OpUnmount  = "unmount"
	OpRender   = "render"
	OpPublish  = "publish"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithWidget(id string) LogFields {
	f[FieldWidgetID] = id
	return f
}

// WithExpense adds the fields describing one list entry.
func (f LogFields) WithExpense(name string, amount float64, position int) LogFields {
	f[FieldExpenseName] = name
	f[FieldAmount] = amount
	f[FieldPosition] = position
	return f
}

// WithState adds the list length and total after a mutation.
func (f LogFields) WithState(count int, total float64) LogFields {
	f[FieldExpenseCount] = count
	f[FieldTotal] = total
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
