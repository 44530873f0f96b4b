package core

import (
	"errors"
	"math"
)

type (
	// Expense is one line item of the calculator. Values are immutable once
	// created: the list replaces records wholesale and never edits them.
	Expense struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}
)

var (
	ErrEmptyName     = errors.New("empty name")
	ErrInvalidAmount = errors.New("invalid amount")
)

// NewExpense trims the name and validates both fields.
func NewExpense(name string, amount float64) (Expense, error) {
	e := Expense{Name: TrimSpace(name), Amount: amount}
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

func (e Expense) Validate() error {
	if TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if math.IsNaN(e.Amount) || math.IsInf(e.Amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}
