package http

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"expensecalc/internal/core"
	"expensecalc/internal/session"
	"expensecalc/internal/widget"
)

// SessionCookie carries the calculator session id.
const SessionCookie = "calc_sid"

// sessionID returns the session id sent by the client, or "" when missing or
// malformed.
func sessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil || !session.ValidID(c.Value) {
		return ""
	}
	return c.Value
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, id string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// stateResponse is the JSON view of one widget. TotalText is the displayed
// total; Total is omitted when it does not fit a JSON number.
type stateResponse struct {
	ID        string         `json:"id"`
	Phase     string         `json:"phase"`
	Expenses  []core.Expense `json:"expenses"`
	Total     *float64       `json:"total"`
	TotalText string         `json:"total_text"`
}

func newStateResponse(s widget.Snapshot) stateResponse {
	resp := stateResponse{
		ID:        s.ID,
		Phase:     s.Phase,
		Expenses:  s.Expenses,
		TotalText: core.FormatFixed2(s.Total),
	}
	if !math.IsNaN(s.Total) && !math.IsInf(s.Total, 0) {
		total := s.Total
		resp.Total = &total
	}
	return resp
}

func changeOf(s widget.Snapshot, position int) ExpenseChange {
	return ExpenseChange{
		Position: position,
		Count:    len(s.Expenses),
		Total:    core.FormatFixed2(s.Total),
	}
}
