package ai

import "sync"

// Handle holds the process-wide model. It is written during startup and
// shutdown and read on every request.
type Handle struct {
	mu    sync.RWMutex
	model Model
}

// NewHandle returns a handle holding m, which may be nil.
func NewHandle(m Model) *Handle {
	return &Handle{model: m}
}

// Set installs m and returns the model it replaced.
func (h *Handle) Set(m Model) Model {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.model
	h.model = m
	return prev
}

// Get returns the current model or nil.
func (h *Handle) Get() Model {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model
}

// Loaded reports whether a model is installed.
func (h *Handle) Loaded() bool {
	return h.Get() != nil
}

// Close releases the installed model and leaves the handle empty.
func (h *Handle) Close() error {
	m := h.Set(nil)
	if m == nil {
		return nil
	}
	return m.Close()
}
