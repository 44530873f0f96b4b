package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"expensecalc/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady reports whether the server can render widgets.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	created, evicted := s.sessions.Stats()
	checks["sessions"] = map[string]interface{}{
		"active":  s.sessions.Size(),
		"created": created,
		"evicted": evicted,
		"limit":   s.cfg.MaxSessions,
		"status":  "ok",
	}

	if s.events != nil {
		checks["events"] = s.events.Stats()
	} else {
		checks["events"] = "not_configured"
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	created, evicted := s.sessions.Stats()

	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %v\n\n", name, value)
	}

	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	fmt.Fprintf(w, "# HELP http_errors_total HTTP responses with an error status\n")
	fmt.Fprintf(w, "# TYPE http_errors_total counter\n")
	fmt.Fprintf(w, "http_errors_total{class=\"4xx\"} %d\n", traceMetrics.ClientErrors)
	fmt.Fprintf(w, "http_errors_total{class=\"5xx\"} %d\n\n", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)

	metric("calculator_widgets_active", "gauge", "Mounted calculator widgets", s.sessions.Size())
	metric("calculator_widgets_created_total", "counter", "Widgets created", created)
	metric("calculator_widgets_evicted_total", "counter", "Widgets discarded by expiry, capacity or reset", evicted)
	metric("calculator_expenses_added_total", "counter", "Expenses added", atomic.LoadInt64(&s.appMetrics.added))
	metric("calculator_expenses_removed_total", "counter", "Expenses removed", atomic.LoadInt64(&s.appMetrics.removed))

	fmt.Fprintf(w, "# HELP calculator_inputs_ignored_total Submissions and clicks the widget ignored\n")
	fmt.Fprintf(w, "# TYPE calculator_inputs_ignored_total counter\n")
	fmt.Fprintf(w, "calculator_inputs_ignored_total{op=\"%s\"} %d\n", log.OpAdd, atomic.LoadInt64(&s.appMetrics.ignoredAdds))
	fmt.Fprintf(w, "calculator_inputs_ignored_total{op=\"%s\"} %d\n\n", log.OpRemove, atomic.LoadInt64(&s.appMetrics.ignoredClicks))

	if s.events != nil {
		st := s.events.Stats()
		metric("calculator_events_published_total", "counter", "Events delivered to the sink", st.Published)
		metric("calculator_events_dropped_total", "counter", "Events dropped because the buffer was full", st.Dropped)
		metric("calculator_events_failed_total", "counter", "Events the sink rejected", st.Failed)
	}

	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	wgt, err := s.widgetFor(w, r)
	if err != nil {
		logger.ErrorContext(r.Context(), "Widget unavailable", log.FieldError, err)
		http.Error(w, "calculator unavailable", http.StatusInternalServerError)
		return
	}
	if err := s.renderPage(w, wgt); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err, log.FieldWidgetID, wgt.ID())
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}
