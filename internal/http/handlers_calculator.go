package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"expensecalc/internal/core"
	"expensecalc/internal/log"
	"expensecalc/internal/widget"
)

// handleAddExpense applies a form submission. htmx gets the form, list and
// total as out-of-band fragments; input the widget ignores gets 204 so the
// page stays as the user left it.
func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	wgt, ok := s.mountedWidget(w, r)
	if !ok {
		return
	}

	err := wgt.Submit(body.Get("name"), body.Get("amount"))
	switch {
	case errors.Is(err, widget.ErrNotMounted):
		s.refresh(w, r)
		return
	case err != nil:
		atomic.AddInt64(&s.appMetrics.ignoredAdds, 1)
		s.ignored(w, r)
		return
	}

	snap := wgt.Snapshot()
	s.fragments(r, wgt).TriggerExpenseAdded(changeOf(snap, len(snap.Expenses)-1)).Write(w)
}

// handleRemoveExpense applies a click on an entry's delete button. The form
// field index carries the button's position.
func (s *Server) handleRemoveExpense(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	body, resp := ParseBodyOrFail(r)
	if resp != nil {
		resp.Write(w)
		return
	}
	wgt, ok := s.mountedWidget(w, r)
	if !ok {
		return
	}

	index, has := body.Lookup("index")
	err := wgt.Click(widget.Target{Tag: "BUTTON", Index: index, HasIndex: has})
	switch {
	case errors.Is(err, widget.ErrNotMounted):
		s.refresh(w, r)
		return
	case err != nil:
		atomic.AddInt64(&s.appMetrics.ignoredClicks, 1)
		s.ignored(w, r)
		return
	}

	// Click accepted the index, so it parses.
	position, _ := core.ParseLenientInt(index)
	s.fragments(r, wgt).TriggerExpenseRemoved(changeOf(wgt.Snapshot(), position)).Write(w)
}

// handleState returns the caller's widget as JSON.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	wgt, ok := s.sessions.Get(sessionID(r))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no calculator for this session"})
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(wgt.Snapshot()))
}

// handleReset discards the caller's widget. The next page load mounts a
// fresh one.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	id := sessionID(r)
	removed := s.sessions.Remove(id)
	clearSessionCookie(w)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Calculator reset",
		log.FieldWidgetID, id,
		"removed", removed)

	if isHTMX(r) {
		NewHTMXResponse().Refresh().Write(w)
		return
	}
	NoContent().Write(w)
}

// mountedWidget resolves the caller's widget or writes an error response.
func (s *Server) mountedWidget(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	wgt, err := s.widgetFor(w, r)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Widget unavailable", log.FieldError, err)
		InternalServerError("Калькулятор недоступен").Write(w)
		return nil, false
	}
	return wgt, true
}

// fragments builds the success response: out-of-band fragments for htmx, a
// redirect back to the page for a plain form post.
func (s *Server) fragments(r *http.Request, wgt *widget.Widget) *HTMXResponseBuilder {
	if !isHTMX(r) {
		return SeeOther("/")
	}
	form, list, total := wgt.Fragments()
	return NewHTMXResponse().BodyHTML(form + list + total)
}

func (s *Server) ignored(w http.ResponseWriter, r *http.Request) {
	if !isHTMX(r) {
		SeeOther("/").Write(w)
		return
	}
	NoContent().Write(w)
}

// refresh handles a widget that was discarded between lookup and use.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if !isHTMX(r) {
		SeeOther("/").Write(w)
		return
	}
	NewHTMXResponse().Refresh().Status(http.StatusOK).Write(w)
}
