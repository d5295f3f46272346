package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Sternrassler/offline-agent/pkg/logging"
	"github.com/rs/zerolog"
)

// Center is an in-process Presenter that keeps shown alerts until they are
// closed.
type Center struct {
	mu     sync.RWMutex
	alerts map[string]Alert
	order  []string
	logger zerolog.Logger
}

// NewCenter creates an empty notification center.
func NewCenter() *Center {
	return &Center{
		alerts: make(map[string]Alert),
		logger: logging.NewLogger(logging.ComponentCenter),
	}
}

// Show records alert as visible.
func (c *Center) Show(_ context.Context, alert Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("alert id is required")
	}

	c.mu.Lock()
	if _, exists := c.alerts[alert.ID]; !exists {
		c.order = append(c.order, alert.ID)
	}
	c.alerts[alert.ID] = alert
	c.mu.Unlock()

	c.logger.Info().
		Str("alert_id", alert.ID).
		Str("title", alert.Title).
		Str("body", alert.Body).
		Msg("Alert displayed")
	return nil
}

// Close dismisses the alert. Closing an unknown alert is a no-op.
func (c *Center) Close(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.alerts[id]; !ok {
		return nil
	}
	delete(c.alerts, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a visible alert by ID.
func (c *Center) Get(id string) (Alert, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.alerts[id]
	return a, ok
}

// Active returns the visible alerts in the order they were shown.
func (c *Center) Active() []Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Alert, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.alerts[id])
	}
	return out
}

// WindowRegistry is an in-process Clients implementation. Windows are
// registered by the host as they open; Open registers a new one.
type WindowRegistry struct {
	mu      sync.Mutex
	windows []*registeredWindow
	logger  zerolog.Logger
}

type registeredWindow struct {
	registry *WindowRegistry
	url      string
	focused  bool
}

// NewWindowRegistry creates an empty registry.
func NewWindowRegistry() *WindowRegistry {
	return &WindowRegistry{
		logger: logging.NewLogger(logging.ComponentWindows),
	}
}

// Register adds a window showing url.
func (r *WindowRegistry) Register(url string) Window {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := &registeredWindow{registry: r, url: url}
	r.windows = append(r.windows, w)
	return w
}

// Windows lists all registered windows.
func (r *WindowRegistry) Windows(_ context.Context) ([]Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Window, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w)
	}
	return out, nil
}

// Open registers and focuses a new window showing url.
func (r *WindowRegistry) Open(ctx context.Context, url string) (Window, error) {
	w := r.Register(url)
	if err := w.Focus(ctx); err != nil {
		return nil, err
	}
	r.logger.Info().Str("url", url).Msg("Window opened")
	return w, nil
}

// Focused returns the URL of the focused window, if any.
func (r *WindowRegistry) Focused() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.windows {
		if w.focused {
			return w.url, true
		}
	}
	return "", false
}

// URLs returns the URLs of all windows, sorted.
func (r *WindowRegistry) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.windows))
	for _, w := range r.windows {
		out = append(out, w.url)
	}
	sort.Strings(out)
	return out
}

func (w *registeredWindow) URL() string {
	return w.url
}

// Focus makes w the only focused window.
func (w *registeredWindow) Focus(_ context.Context) error {
	r := w.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.windows {
		other.focused = other == w
	}
	return nil
}
