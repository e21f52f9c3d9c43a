// Package tools is the tool dispatcher (C9): a flat name → handler table
// that validates and coerces an MCP caller's argument map, then invokes
// the bound pipeline/job-manager operation. Generalizes tarsy's
// "server.tool" two-part router down to a single flat lookup, since there
// is exactly one logical server here.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler executes one tool call against already-validated, coerced args.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// ToolSpec is one registered tool: its argument contract and handler.
type ToolSpec struct {
	Name        string
	Description string
	Required    []ArgSpec
	Optional    []ArgSpec
	Handler     Handler
}

// Dispatcher routes named tool calls to registered handlers.
type Dispatcher struct {
	mu    sync.RWMutex
	tools map[string]*ToolSpec
}

// NewDispatcher builds an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{tools: map[string]*ToolSpec{}}
}

// Register adds or replaces a tool.
func (d *Dispatcher) Register(spec ToolSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := spec
	d.tools[spec.Name] = &s
}

// Names lists registered tool names, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.tools))
	for name := range d.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call validates args against the named tool's contract, coerces them,
// and invokes its handler. Never panics or returns a Go error to the
// caller: every outcome — unknown tool, bad argument, handler failure —
// comes back as a {"success": false, "error": ...} envelope, since the
// dispatcher sits at the core's external boundary.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) map[string]any {
	d.mu.RLock()
	spec, ok := d.tools[name]
	d.mu.RUnlock()
	if !ok {
		return errEnvelope(fmt.Errorf("unknown tool %q", name))
	}

	if args == nil {
		args = map[string]any{}
	}
	coerced, err := validateArgs(spec.Required, spec.Optional, args)
	if err != nil {
		return errEnvelope(err)
	}

	result, err := spec.Handler(ctx, coerced)
	if err != nil {
		return errEnvelope(err)
	}
	if result == nil {
		result = map[string]any{}
	}
	if _, set := result["success"]; !set {
		result["success"] = true
	}
	return result
}

func errEnvelope(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}
