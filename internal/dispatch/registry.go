package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
)

// DefaultMode is used when no mode is configured.
const DefaultMode = ModeWebhook

// Registry maps dispatch modes to sink factories.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the webhook and amplitude sinks.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ModeWebhook, NewWebhook)
	r.Register(ModeAmplitude, NewAmplitude)
	return r
}

// Register adds a factory. Panics on duplicate mode to surface misconfiguration early.
func (r *Registry) Register(mode string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mode = strings.ToLower(mode)
	if _, exists := r.factories[mode]; exists {
		panic(fmt.Sprintf("dispatch registry: duplicate mode %q", mode))
	}
	r.factories[mode] = f
}

// Build resolves s.Mode (case-insensitive, default webhook) and constructs
// the sink. Unknown modes are validation errors.
func (r *Registry) Build(s Settings) (Sink, error) {
	mode := strings.ToLower(strings.TrimSpace(s.Mode))
	if mode == "" {
		mode = DefaultMode
	}
	r.mu.RLock()
	f, ok := r.factories[mode]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.Validationf("dispatch", "Unsupported mode: %s", s.Mode)
	}
	return f(s)
}

// Modes returns all registered modes, sorted.
func (r *Registry) Modes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
