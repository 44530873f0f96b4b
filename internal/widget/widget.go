// Package widget implements the expense calculator view controller.
//
// A Widget owns the markup of one calculator instance. Mount renders the
// template once and attaches the list and total redraws to the Store; from
// then on Submit and Click translate user events into Store writes and the
// Store's synchronous notifications patch the rendered fragments.
//
// A Widget processes one event at a time: every exported method holds the
// widget lock for the whole validate, mutate and redraw sequence.
package widget

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"expensecalc/internal/calculator"
	"expensecalc/internal/core"
	"expensecalc/internal/log"
)

// Template names the widget renders.
const (
	TemplateCalculator = "calculator"
	TemplateForm       = "calculator_form"
	TemplateList       = "calculator_list"
	TemplateTotal      = "calculator_total"
)

// initialTotalText is what the total region shows before the first write.
const initialTotalText = "0"

// Phase is the lifecycle state of a widget.
type Phase int

const (
	Uninitialized Phase = iota
	Rendered
	Detached
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Rendered:
		return "rendered"
	case Detached:
		return "detached"
	default:
		return "phase(" + strconv.Itoa(int(p)) + ")"
	}
}

var (
	ErrNotMounted         = errors.New("widget not mounted")
	ErrNoPosition         = errors.New("click target has no position")
	ErrPositionOutOfRange = errors.New("position out of range")
	ErrMissingTemplate    = errors.New("missing widget template")
)

// Target describes the element a click landed on.
type Target struct {
	// Tag is the element tag name, upper case as in the DOM ("BUTTON").
	Tag string
	// Index is the raw data-index value; HasIndex reports whether the
	// element carries one at all.
	Index    string
	HasIndex bool
}

// DeleteButton is the target of a click on an entry's delete control.
func DeleteButton(index string) Target {
	return Target{Tag: "BUTTON", Index: index, HasIndex: true}
}

// FormState is the text currently in the form fields.
type FormState struct {
	Name   string
	Amount string
}

// Snapshot is a read-only view of a widget's state.
type Snapshot struct {
	ID       string         `json:"id"`
	Phase    string         `json:"phase"`
	Expenses []core.Expense `json:"expenses"`
	Total    float64        `json:"total"`
}

type listItem struct {
	Position int
	Name     string
	Amount   string
}

// Option configures a Widget.
type Option func(*Widget)

// WithLogger sets the widget logger.
func WithLogger(l *log.Logger) Option {
	return func(w *Widget) {
		if l != nil {
			w.logger = l.WithComponent(log.ComponentWidget)
		}
	}
}

// WithEventHandler registers fn to receive an Event after every successful
// add or remove. fn runs under the widget lock and must not block.
func WithEventHandler(fn func(Event)) Option {
	return func(w *Widget) {
		w.onEvent = fn
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Widget) {
		if now != nil {
			w.now = now
		}
	}
}

// Widget is one expense calculator instance.
type Widget struct {
	mu     sync.Mutex
	id     string
	tmpl   *template.Template
	store  *calculator.Store
	phase  Phase
	logger *log.Logger

	onEvent func(Event)
	now     func() time.Time
	detach  []func()

	form  template.HTML
	list  template.HTML
	total template.HTML

	listRedraws  atomic.Int64
	totalRedraws atomic.Int64
}

// New creates an unmounted widget. tmpl must define the calculator, form,
// list and total templates.
func New(id string, tmpl *template.Template, opts ...Option) *Widget {
	w := &Widget{
		id:     id,
		tmpl:   tmpl,
		store:  calculator.NewStore(),
		logger: log.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(log.FieldWidgetID, id)
	return w
}

// ID returns the widget identifier.
func (w *Widget) ID() string {
	return w.id
}

// Phase returns the current lifecycle phase.
func (w *Widget) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Mount renders the initial markup on first call and attaches the redraw
// subscribers. Mounting a rendered widget is a no-op; mounting a detached one
// reattaches the subscribers and keeps the existing markup.
func (w *Widget) Mount() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.phase {
	case Rendered:
		return nil
	case Uninitialized:
		if err := w.render(); err != nil {
			return err
		}
	}

	w.detach = append(w.detach,
		w.store.OnExpenses(w.redrawList),
		w.store.OnTotal(w.redrawTotal),
	)
	w.phase = Rendered
	w.logger.Debug("Widget mounted", log.FieldOperation, log.OpMount)
	return nil
}

// Unmount detaches the redraw subscribers. The state stays readable but no
// further events are accepted until the widget is mounted again.
func (w *Widget) Unmount() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != Rendered {
		return
	}
	for _, stop := range w.detach {
		stop()
	}
	w.detach = nil
	w.phase = Detached
	w.logger.Debug("Widget unmounted", log.FieldOperation, log.OpUnmount)
}

func (w *Widget) render() error {
	if w.tmpl == nil {
		return ErrMissingTemplate
	}
	for _, name := range []string{TemplateCalculator, TemplateForm, TemplateList, TemplateTotal} {
		if w.tmpl.Lookup(name) == nil {
			return fmt.Errorf("%w: %s", ErrMissingTemplate, name)
		}
	}

	form, err := w.execute(TemplateForm, FormState{})
	if err != nil {
		return err
	}
	list, err := w.execute(TemplateList, []listItem{})
	if err != nil {
		return err
	}
	total, err := w.execute(TemplateTotal, initialTotalText)
	if err != nil {
		return err
	}
	w.form, w.list, w.total = form, list, total
	return nil
}

// Submit handles a form submission with the raw field text. On success the
// expense is appended, the total increased and the form cleared. Invalid
// input leaves list and total untouched and the form populated; the returned
// error says why.
func (w *Widget) Submit(name, amount string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != Rendered {
		return ErrNotMounted
	}

	w.setForm(FormState{Name: name, Amount: amount})

	e, err := parseExpense(name, amount)
	if err != nil {
		w.logger.Debug("Add ignored", log.FieldOperation, log.OpAdd, log.FieldReason, err.Error())
		return err
	}

	w.store.SetExpenses(calculator.Append(w.store.Expenses(), e))
	w.store.SetTotal(w.store.Total() + e.Amount)
	w.setForm(FormState{})

	position := w.store.Len() - 1
	w.logger.Info("Expense added",
		log.NewFields().
			WithOperation(log.OpAdd).
			WithExpense(e.Name, e.Amount, position).
			WithState(w.store.Len(), w.store.Total()).
			ToSlice()...)
	w.emit(EventAdded, position, e)
	return nil
}

func parseExpense(name, amount string) (core.Expense, error) {
	if core.TrimSpace(name) == "" {
		return core.Expense{}, core.ErrEmptyName
	}
	value, err := core.ParseAmount(amount)
	if err != nil {
		return core.Expense{}, err
	}
	return core.NewExpense(name, value)
}

// Click handles a click inside the widget. Only a BUTTON carrying a position
// counts; the position is resolved against the current list.
func (w *Widget) Click(t Target) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != Rendered {
		return ErrNotMounted
	}
	if !strings.EqualFold(t.Tag, "BUTTON") || !t.HasIndex {
		return ErrNoPosition
	}
	position, ok := core.ParseLenientInt(t.Index)
	if !ok {
		w.logger.Debug("Remove ignored", log.FieldOperation, log.OpRemove, log.FieldReason, "unparsable position")
		return ErrNoPosition
	}
	removed, found := w.store.At(position)
	if !found {
		w.logger.Debug("Remove ignored", log.FieldOperation, log.OpRemove, log.FieldPosition, position, log.FieldReason, "out of range")
		return fmt.Errorf("%w: %d", ErrPositionOutOfRange, position)
	}

	w.store.SetExpenses(calculator.Without(w.store.Expenses(), position))
	w.store.SetTotal(w.store.Total() - removed.Amount)

	w.logger.Info("Expense removed",
		log.NewFields().
			WithOperation(log.OpRemove).
			WithExpense(removed.Name, removed.Amount, position).
			WithState(w.store.Len(), w.store.Total()).
			ToSlice()...)
	w.emit(EventRemoved, position, removed)
	return nil
}

// redrawList rebuilds the list fragment. It runs as a Store subscriber.
func (w *Widget) redrawList(list []core.Expense) {
	items := make([]listItem, 0, len(list))
	for i, e := range list {
		items = append(items, listItem{Position: i, Name: e.Name, Amount: core.FormatFixed2(e.Amount)})
	}
	out, err := w.execute(TemplateList, items)
	if err != nil {
		w.logger.Error("List redraw failed", log.FieldOperation, log.OpRender, log.FieldError, err)
		return
	}
	w.list = out
	w.listRedraws.Add(1)
}

// redrawTotal replaces the total text. It runs as a Store subscriber.
func (w *Widget) redrawTotal(total float64) {
	out, err := w.execute(TemplateTotal, core.FormatFixed2(total))
	if err != nil {
		w.logger.Error("Total redraw failed", log.FieldOperation, log.OpRender, log.FieldError, err)
		return
	}
	w.total = out
	w.totalRedraws.Add(1)
}

func (w *Widget) setForm(state FormState) {
	out, err := w.execute(TemplateForm, state)
	if err != nil {
		w.logger.Error("Form redraw failed", log.FieldOperation, log.OpRender, log.FieldError, err)
		return
	}
	w.form = out
}

func (w *Widget) execute(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := w.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// Render writes the whole widget markup with the current fragments.
func (w *Widget) Render(out io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase == Uninitialized {
		return ErrNotMounted
	}
	data := struct {
		ID    string
		Form  template.HTML
		List  template.HTML
		Total template.HTML
	}{ID: w.id, Form: w.form, List: w.list, Total: w.total}
	if err := w.tmpl.ExecuteTemplate(out, TemplateCalculator, data); err != nil {
		return fmt.Errorf("execute %s: %w", TemplateCalculator, err)
	}
	return nil
}

// Fragments returns the current form, list and total markup.
func (w *Widget) Fragments() (form, list, total template.HTML) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form, w.list, w.total
}

// Snapshot returns a copy of the widget state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		ID:       w.id,
		Phase:    w.phase.String(),
		Expenses: w.store.Expenses(),
		Total:    w.store.Total(),
	}
}

// Redraws reports how many list and total redraws the Store triggered.
func (w *Widget) Redraws() (list, total int64) {
	return w.listRedraws.Load(), w.totalRedraws.Load()
}
