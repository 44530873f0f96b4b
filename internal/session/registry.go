// Package session keeps one calculator widget per browser session.
//
// A widget lives as long as its session: it is created and mounted on first
// use, kept alive by activity, and unmounted when it expires, is pushed out
// by capacity, or is removed explicitly.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"expensecalc/internal/cache"
	"expensecalc/internal/log"
	"expensecalc/internal/widget"
)

// Factory builds an unmounted widget for a session id.
type Factory func(id string) *widget.Widget

// Config holds registry limits.
type Config struct {
	MaxSessions int
	TTL         time.Duration
}

// Registry maps session ids to mounted widgets.
type Registry struct {
	mu        sync.Mutex
	widgets   *cache.LRUCache[*widget.Widget]
	newWidget Factory
	logger    *log.Logger

	created atomic.Int64
	evicted atomic.Int64
}

// NewRegistry creates a registry. Every widget that leaves it is unmounted.
func NewRegistry(cfg Config, factory Factory, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Discard()
	}
	r := &Registry{
		newWidget: factory,
		logger:    logger.WithComponent(log.ComponentSession),
	}
	r.widgets = cache.NewLRUCache[*widget.Widget](cfg.MaxSessions, cfg.TTL,
		cache.WithSlidingTTL[*widget.Widget](),
		cache.WithEvictHandler(r.onEvict),
	)
	return r
}

func (r *Registry) onEvict(id string, w *widget.Widget) {
	w.Unmount()
	r.evicted.Add(1)
	r.logger.Debug("Widget discarded", log.FieldWidgetID, id)
}

// Get returns the live widget for id.
func (r *Registry) Get(id string) (*widget.Widget, bool) {
	if id == "" {
		return nil, false
	}
	return r.widgets.Get(id)
}

// GetOrCreate returns the widget for id, creating and mounting a new one
// under a fresh id when id is empty or unknown. created reports whether a
// new widget was made.
func (r *Registry) GetOrCreate(id string) (w *widget.Widget, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.Get(id); ok {
		return w, false, nil
	}

	newID, err := NewID()
	if err != nil {
		return nil, false, err
	}
	w = r.newWidget(newID)
	if err := w.Mount(); err != nil {
		return nil, false, fmt.Errorf("mount widget %s: %w", newID, err)
	}
	r.widgets.Set(newID, w)
	r.created.Add(1)
	r.logger.Info("Widget created", log.FieldWidgetID, newID, log.FieldOperation, log.OpMount)
	return w, true, nil
}

// Remove unmounts and forgets the widget for id.
func (r *Registry) Remove(id string) bool {
	return id != "" && r.widgets.Delete(id)
}

// Size returns the number of live widgets.
func (r *Registry) Size() int {
	return r.widgets.Size()
}

// CleanExpired discards expired widgets. It satisfies cache.Cleaner.
func (r *Registry) CleanExpired() int {
	return r.widgets.CleanExpired()
}

// Stats reports how many widgets were created and discarded.
func (r *Registry) Stats() (created, evicted int64) {
	return r.created.Load(), r.evicted.Load()
}

// NewID returns a random session id.
func NewID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return "calc_" + hex.EncodeToString(b), nil
}

// ValidID reports whether id looks like one NewID produced.
func ValidID(id string) bool {
	const prefix = "calc_"
	if len(id) != len(prefix)+32 || id[:len(prefix)] != prefix {
		return false
	}
	_, err := hex.DecodeString(id[len(prefix):])
	return err == nil
}
