// Package calculator holds the live state of one expense calculator: the
// ordered expense list and the running total.
//
// Writes go through explicit setters. Each setter stores the new value and
// then calls every subscriber of that field synchronously, one write at a
// time, before returning to the caller. The Store does not validate and is
// not safe for concurrent use; its owner serialises access.
package calculator

import (
	"slices"

	"expensecalc/internal/core"
)

// Store keeps the expense list and the derived total.
type Store struct {
	expenses []core.Expense
	total    float64

	nextID          int
	expensesWatches []watch[[]core.Expense]
	totalWatches    []watch[float64]
}

type watch[T any] struct {
	id int
	fn func(T)
}

// NewStore returns an empty store: no expenses and a zero total.
func NewStore() *Store {
	return &Store{expenses: []core.Expense{}}
}

// Expenses returns a copy of the current list.
func (s *Store) Expenses() []core.Expense {
	return slices.Clone(s.expenses)
}

// Len returns the number of expenses.
func (s *Store) Len() int {
	return len(s.expenses)
}

// At returns the expense at position i.
func (s *Store) At(i int) (core.Expense, bool) {
	if i < 0 || i >= len(s.expenses) {
		return core.Expense{}, false
	}
	return s.expenses[i], true
}

// Total returns the running total.
func (s *Store) Total() float64 {
	return s.total
}

// SetExpenses replaces the whole list and notifies expenses subscribers.
func (s *Store) SetExpenses(list []core.Expense) {
	if list == nil {
		list = []core.Expense{}
	}
	s.expenses = list
	for _, w := range slices.Clone(s.expensesWatches) {
		w.fn(slices.Clone(list))
	}
}

// SetTotal replaces the total and notifies total subscribers.
func (s *Store) SetTotal(total float64) {
	s.total = total
	for _, w := range slices.Clone(s.totalWatches) {
		w.fn(total)
	}
}

// OnExpenses registers fn to run after every SetExpenses. The returned func
// removes the subscription.
func (s *Store) OnExpenses(fn func([]core.Expense)) (unsubscribe func()) {
	id := s.newID()
	s.expensesWatches = append(s.expensesWatches, watch[[]core.Expense]{id: id, fn: fn})
	return func() {
		s.expensesWatches = slices.DeleteFunc(s.expensesWatches, func(w watch[[]core.Expense]) bool { return w.id == id })
	}
}

// OnTotal registers fn to run after every SetTotal. The returned func removes
// the subscription.
func (s *Store) OnTotal(fn func(float64)) (unsubscribe func()) {
	id := s.newID()
	s.totalWatches = append(s.totalWatches, watch[float64]{id: id, fn: fn})
	return func() {
		s.totalWatches = slices.DeleteFunc(s.totalWatches, func(w watch[float64]) bool { return w.id == id })
	}
}

// Subscribers returns how many expenses and total subscribers are attached.
func (s *Store) Subscribers() (expenses, total int) {
	return len(s.expensesWatches), len(s.totalWatches)
}

func (s *Store) newID() int {
	s.nextID++
	return s.nextID
}

// Append returns a new list with e after the entries of list.
func Append(list []core.Expense, e core.Expense) []core.Expense {
	out := make([]core.Expense, 0, len(list)+1)
	out = append(out, list...)
	return append(out, e)
}

// Without returns a new list holding every entry of list except position i.
// Entries after i shift down by one. An out-of-range i yields a plain copy.
func Without(list []core.Expense, i int) []core.Expense {
	out := make([]core.Expense, 0, len(list))
	for j, e := range list {
		if j != i {
			out = append(out, e)
		}
	}
	return out
}
