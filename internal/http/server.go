package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"expensecalc/internal/events"
	"expensecalc/internal/log"
	"expensecalc/internal/middleware/ratelimit"
	"expensecalc/internal/middleware/security"
	"expensecalc/internal/middleware/trace"
	"expensecalc/internal/session"
	"expensecalc/internal/widget"
	appweb "expensecalc/web"
)

// EventPublisher receives widget events for delivery outside the process.
type EventPublisher interface {
	Emit(ev widget.Event) bool
	Stats() events.Stats
}

// Config configures the HTTP server.
type Config struct {
	Addr               string
	SessionTTL         time.Duration
	MaxSessions        int
	RateLimitPerMinute int

	// Templates overrides the embedded template files. Tests use it.
	Templates fs.FS
}

type Server struct {
	http.Server
	cfg       Config
	templates *template.Template
	logger    *log.Logger
	events    EventPublisher

	sessions         *session.Registry
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime        time.Time
	added         int64
	removed       int64
	ignoredAdds   int64
	ignoredClicks int64
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEventPublisher forwards every widget event to p.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Server) { s.events = p }
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(cfg Config, opts ...Option) *Server {
	if cfg.Templates == nil {
		cfg.Templates = appweb.TemplatesFS
	}

	s := &Server{
		cfg:        cfg,
		logger:     log.Discard(),
		appMetrics: &appMetrics{uptime: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	httpLogger := s.logger.WithComponent(log.ComponentHTTP)

	// Parse templates at startup. A failure leaves the server up but not ready.
	t, err := template.ParseFS(cfg.Templates, "templates/*.html")
	if err != nil {
		s.logger.WithComponent(log.ComponentTemplate).Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.sessions = session.NewRegistry(session.Config{
		MaxSessions: cfg.MaxSessions,
		TTL:         cfg.SessionTTL,
	}, s.newWidget, s.logger)

	s.securityDetector = security.NewDetector(s.logger)
	s.traceMiddleware = trace.NewMiddleware(s.logger, s.securityDetector.ExtractClientIP)
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		httpLogger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Widget endpoints
	mux.Handle("/calculator", security.NoStore(http.HandlerFunc(s.handleReset)))
	mux.Handle("/calculator/state", security.NoStore(http.HandlerFunc(s.handleState)))
	mux.Handle("/calculator/expenses", security.NoStore(http.HandlerFunc(s.handleAddExpense)))
	mux.Handle("/calculator/expenses/remove", security.NoStore(http.HandlerFunc(s.handleRemoveExpense)))

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Sessions exposes the widget registry so the caller can schedule cleanup.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) newWidget(id string) *widget.Widget {
	return widget.New(id, s.templates,
		widget.WithLogger(s.logger.WithComponent(log.ComponentWidget)),
		widget.WithEventHandler(s.onWidgetEvent),
	)
}

func (s *Server) onWidgetEvent(ev widget.Event) {
	switch ev.Kind {
	case widget.EventAdded:
		atomic.AddInt64(&s.appMetrics.added, 1)
	case widget.EventRemoved:
		atomic.AddInt64(&s.appMetrics.removed, 1)
	}
	if s.events != nil {
		s.events.Emit(ev)
	}
}

// widgetFor returns the caller's widget, creating one and setting the
// session cookie when the request carries no live session.
func (s *Server) widgetFor(w http.ResponseWriter, r *http.Request) (*widget.Widget, error) {
	wgt, created, err := s.sessions.GetOrCreate(sessionID(r))
	if err != nil {
		return nil, err
	}
	if created {
		setSessionCookie(w, r, wgt.ID(), s.cfg.SessionTTL)
	}
	return wgt, nil
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("Слишком много запросов, попробуйте позже").Write(w)
}

// renderPage writes the full page around the widget markup.
func (s *Server) renderPage(w http.ResponseWriter, wgt *widget.Widget) error {
	var markup bytes.Buffer
	if err := wgt.Render(&markup); err != nil {
		return err
	}
	var page bytes.Buffer
	data := struct{ Widget template.HTML }{Widget: template.HTML(markup.String())}
	if err := s.templates.ExecuteTemplate(&page, "index.html", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(page.Bytes())
	return err
}
