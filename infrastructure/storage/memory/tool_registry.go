// Package memory provides in-memory storage implementations.
package memory

import (
	"sync"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

// ToolRegistry is an in-memory implementation of tool.Registry.
//
// Entries keep registration order. Re-registering a name replaces the
// descriptor in place. Every successful mutation bumps the revision and is
// reported to the change notifier after the lock is released.
type ToolRegistry struct {
	mu       sync.RWMutex
	tools    map[string]*tool.Descriptor
	order    []string
	revision uint64

	// notifyMu keeps notifications in revision order without holding mu.
	notifyMu sync.Mutex
	notifier tool.ChangeNotifier
}

// RegistryOption configures a ToolRegistry.
type RegistryOption func(*ToolRegistry)

// WithChangeNotifier sets the receiver of committed changes.
func WithChangeNotifier(n tool.ChangeNotifier) RegistryOption {
	return func(r *ToolRegistry) {
		r.notifier = n
	}
}

// NewToolRegistry creates a new in-memory tool registry.
func NewToolRegistry(opts ...RegistryOption) *ToolRegistry {
	r := &ToolRegistry{
		tools: make(map[string]*tool.Descriptor),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetChangeNotifier replaces the change notifier.
func (r *ToolRegistry) SetChangeNotifier(n tool.ChangeNotifier) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.notifier = n
}

// Register upserts the descriptors. The call is rejected as a whole when any
// descriptor is invalid. A name appearing twice in one call keeps the last
// descriptor.
func (r *ToolRegistry) Register(descs ...*tool.Descriptor) error {
	if len(descs) == 0 {
		return nil
	}
	for _, d := range descs {
		if d == nil {
			return tool.ErrNilDescriptor
		}
		if err := tool.ValidateName(d.Name()); err != nil {
			return err
		}
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	names := make([]string, 0, len(descs))
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		name := d.Name()
		if _, exists := r.tools[name]; !exists {
			r.order = append(r.order, name)
		}
		r.tools[name] = d
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	r.revision++
	change := tool.Change{Kind: tool.ChangeRegistered, Names: names, Revision: r.revision}
	r.mu.Unlock()

	r.notify(change)
	return nil
}

// Lookup retrieves a tool by name.
func (r *ToolRegistry) Lookup(name string) (*tool.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	return d, ok
}

// List returns all registered tools in registration order.
func (r *ToolRegistry) List() []*tool.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*tool.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Snapshot returns the tool list together with the revision it reflects.
func (r *ToolRegistry) Snapshot() ([]*tool.Descriptor, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*tool.Descriptor, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools, r.revision
}

// Names returns all registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Has checks if a tool is registered.
func (r *ToolRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// Unregister removes a tool from the registry. Removing an absent tool is
// not an error and produces no change.
func (r *ToolRegistry) Unregister(name string) (bool, error) {
	if err := tool.ValidateName(name); err != nil {
		return false, err
	}

	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if _, exists := r.tools[name]; !exists {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.tools, name)
	r.order = removeName(r.order, name)
	r.revision++
	change := tool.Change{Kind: tool.ChangeUnregistered, Names: []string{name}, Revision: r.revision}
	r.mu.Unlock()

	r.notify(change)
	return true, nil
}

// Clear removes all tools from the registry.
func (r *ToolRegistry) Clear() {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if len(r.order) == 0 {
		r.mu.Unlock()
		return
	}
	names := r.order
	r.tools = make(map[string]*tool.Descriptor)
	r.order = nil
	r.revision++
	change := tool.Change{Kind: tool.ChangeUnregistered, Names: names, Revision: r.revision}
	r.mu.Unlock()

	r.notify(change)
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Revision returns the number of committed mutations.
func (r *ToolRegistry) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

func (r *ToolRegistry) notify(change tool.Change) {
	if r.notifier != nil {
		r.notifier.NotifyChanged(change)
	}
}

func removeName(names []string, name string) []string {
	for i, n := range names {
		if n == name {
			return append(names[:i:i], names[i+1:]...)
		}
	}
	return names
}

var _ tool.Registry = (*ToolRegistry)(nil)
