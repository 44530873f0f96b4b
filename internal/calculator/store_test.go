package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensecalc/internal/core"
)

func TestNewStoreIsEmpty(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Expenses())
	assert.NotNil(t, s.Expenses())
	assert.Zero(t, s.Total())
	assert.Equal(t, 0, s.Len())
}

func TestSetExpensesNotifiesEveryWrite(t *testing.T) {
	s := NewStore()
	var seen [][]core.Expense
	s.OnExpenses(func(list []core.Expense) { seen = append(seen, list) })

	first := Append(s.Expenses(), core.Expense{Name: "Coffee", Amount: 3.5})
	s.SetExpenses(first)
	require.Len(t, seen, 1, "subscriber must run before SetExpenses returns")

	s.SetExpenses(Append(s.Expenses(), core.Expense{Name: "Book", Amount: 12}))
	s.SetExpenses(s.Expenses())

	require.Len(t, seen, 3)
	assert.Equal(t, []core.Expense{{Name: "Coffee", Amount: 3.5}}, seen[0])
	assert.Equal(t, seen[1], seen[2])
}

func TestSetTotalNotifiesWithNewValue(t *testing.T) {
	s := NewStore()
	var got []float64
	s.OnTotal(func(v float64) {
		assert.Equal(t, v, s.Total(), "store must hold the new value when subscribers run")
		got = append(got, v)
	})

	s.SetTotal(1.5)
	s.SetTotal(1.5)
	s.SetTotal(-2)

	assert.Equal(t, []float64{1.5, 1.5, -2}, got)
}

func TestSubscribersAreIndependent(t *testing.T) {
	s := NewStore()
	var listCalls, totalCalls int
	s.OnExpenses(func([]core.Expense) { listCalls++ })
	s.OnTotal(func(float64) { totalCalls++ })

	s.SetTotal(4)
	assert.Equal(t, 0, listCalls)
	assert.Equal(t, 1, totalCalls)

	s.SetExpenses(nil)
	assert.Equal(t, 1, listCalls)
	assert.Equal(t, 1, totalCalls)
	assert.NotNil(t, s.Expenses())
}

func TestUnsubscribe(t *testing.T) {
	s := NewStore()
	var a, b int
	stopA := s.OnTotal(func(float64) { a++ })
	s.OnTotal(func(float64) { b++ })

	s.SetTotal(1)
	stopA()
	s.SetTotal(2)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	_, total := s.Subscribers()
	assert.Equal(t, 1, total)
}

func TestExpensesReturnsCopy(t *testing.T) {
	s := NewStore()
	s.SetExpenses([]core.Expense{{Name: "A", Amount: 1}})

	list := s.Expenses()
	list[0].Name = "mutated"

	e, ok := s.At(0)
	require.True(t, ok)
	assert.Equal(t, "A", e.Name)
	_, ok = s.At(1)
	assert.False(t, ok)
	_, ok = s.At(-1)
	assert.False(t, ok)
}

func TestAppendDoesNotAliasInput(t *testing.T) {
	base := make([]core.Expense, 1, 4)
	base[0] = core.Expense{Name: "A", Amount: 1}

	x := Append(base, core.Expense{Name: "B", Amount: 2})
	y := Append(base, core.Expense{Name: "C", Amount: 3})

	assert.Equal(t, "B", x[1].Name)
	assert.Equal(t, "C", y[1].Name)
	assert.Len(t, base, 1)
}

func TestWithout(t *testing.T) {
	list := []core.Expense{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}

	tests := []struct {
		pos  int
		want []string
	}{
		{0, []string{"B", "C", "D"}},
		{2, []string{"A", "B", "D"}},
		{3, []string{"A", "B", "C"}},
		{4, []string{"A", "B", "C", "D"}},
		{-1, []string{"A", "B", "C", "D"}},
	}
	for _, tt := range tests {
		got := Without(list, tt.pos)
		names := make([]string, 0, len(got))
		for _, e := range got {
			names = append(names, e.Name)
		}
		assert.Equal(t, tt.want, names, "Without(%d)", tt.pos)
	}
	assert.Len(t, list, 4, "input must not change")
}
