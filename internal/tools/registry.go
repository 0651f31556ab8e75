// Package tools holds the process-wide tool catalog: named specs plus the
// async handlers that execute them. Registration happens once at startup for
// local tools and again, additively, after the MCP client connects.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/steward-ai/steward/pkg/models"
)

var (
	// ErrAlreadyRegistered is returned when a tool name is registered twice.
	ErrAlreadyRegistered = errors.New("tool already registered")

	// ErrNotRegistered is returned for lookups of unknown tool names.
	ErrNotRegistered = errors.New("tool not registered")
)

// DefaultTimeoutMs is applied when a spec carries no timeout.
const DefaultTimeoutMs = 10000

// Handler executes one tool call. Implementations must honor ctx
// cancellation; blocking work belongs inside the handler, never the caller.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type entry struct {
	spec    models.ToolSpec
	handler Handler
}

// Registry maps tool names to immutable specs and handlers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool. A registered name is never replaced; duplicates fail
// with ErrAlreadyRegistered. Empty risk defaults to safe, zero timeout to
// DefaultTimeoutMs.
func (r *Registry) Register(spec models.ToolSpec, h Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("tool spec has no name")
	}
	if h == nil {
		return fmt.Errorf("tool %s has no handler", spec.Name)
	}
	if spec.Risk == "" {
		spec.Risk = models.RiskSafe
	}
	if spec.TimeoutMs <= 0 {
		spec.TimeoutMs = DefaultTimeoutMs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[spec.Name]; exists {
		return fmt.Errorf("%s: %w", spec.Name, ErrAlreadyRegistered)
	}
	r.entries[spec.Name] = entry{spec: spec.Clone(), handler: h}
	return nil
}

// Get returns the spec for name.
func (r *Registry) Get(name string) (models.ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return models.ToolSpec{}, fmt.Errorf("%s: %w", name, ErrNotRegistered)
	}
	return e.spec.Clone(), nil
}

// Handler returns the handler for name.
func (r *Registry) Handler(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotRegistered)
	}
	return e.handler, nil
}

// Specs returns a copy of every registered spec. Order is not significant.
func (r *Registry) Specs() []models.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolSpec, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.spec.Clone())
	}
	return out
}
