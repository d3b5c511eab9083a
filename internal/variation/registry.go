// Package variation implements the pluggable variation-module contract: a
// named capability exposing {init, variate, shutdown}, invoked by the
// record parser whenever a matched line declares a module in its tag. The
// notification module (notification.go) is the representative nontrivial
// example; dynamic.go adapts time-based value generators into the same
// contract.
package variation

import (
	"fmt"
	"sync"

	"github.com/grm84/snmpsim/internal/oid"
	"github.com/grm84/snmpsim/internal/record"
)

// Module is the capability interface every variation plugin implements.
// State is per-record: the registry calls Init once per (module, record)
// pair, on the first Variate call against that record, and reuses it for
// every subsequent call against the same record.
type Module interface {
	Init(ctx record.VariationContext) error
	Variate(o oid.OID, tag record.Tag, value record.Value, ctx record.VariationContext) (oid.OID, record.Value, error)
	Shutdown(ctx record.VariationContext) error
}

// Registry is a capability-interface registry keyed by module name. It
// implements record.Dispatcher, so the default parser can call Variate
// through it without depending on this package.
type Registry struct {
	mu          sync.Mutex
	modules     map[string]Module
	initialized map[string]map[string]bool // module name -> record key -> seen
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules:     make(map[string]Module),
		initialized: make(map[string]map[string]bool),
	}
}

// Register binds name to m. Registering the same name twice replaces the
// previous binding.
func (r *Registry) Register(name string, m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[name] = m
}

// Variate implements record.Dispatcher.
func (r *Registry) Variate(moduleName string, o oid.OID, tag record.Tag, value record.Value, ctx record.VariationContext) (oid.OID, record.Value, error) {
	r.mu.Lock()
	m, ok := r.modules[moduleName]
	if !ok {
		r.mu.Unlock()
		return nil, record.Value{}, fmt.Errorf("variation: unknown module %q", moduleName)
	}

	seen := r.initialized[moduleName]
	if seen == nil {
		seen = make(map[string]bool)
		r.initialized[moduleName] = seen
	}
	firstCall := !seen[ctx.RecordKey]
	seen[ctx.RecordKey] = true
	r.mu.Unlock()

	if firstCall {
		if err := m.Init(ctx); err != nil {
			return ctx.OrigOID, ctx.ErrorStatus, nil
		}
	}

	return m.Variate(o, tag, value, ctx)
}

// Shutdown calls Shutdown on every registered module.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	modules := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		modules = append(modules, m)
	}
	r.mu.Unlock()

	for _, m := range modules {
		_ = m.Shutdown(record.VariationContext{})
	}
}
