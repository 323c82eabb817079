package tool

// Registry defines the interface for the runtime tool catalog.
// This is a repository interface - implementations are in infrastructure.
type Registry interface {
	// Register upserts the descriptors by name as one mutation.
	Register(descs ...*Descriptor) error

	// Unregister removes a tool and reports whether one was removed.
	Unregister(name string) (bool, error)

	// Lookup retrieves a tool by name.
	Lookup(name string) (*Descriptor, bool)

	// List returns a consistent snapshot in registration order.
	List() []*Descriptor

	// Names returns the registered names in registration order.
	Names() []string

	// Count returns the number of registered tools.
	Count() int
}

// ChangeKind says what kind of mutation produced a change.
type ChangeKind string

// Change kinds.
const (
	ChangeRegistered   ChangeKind = "registered"
	ChangeUnregistered ChangeKind = "unregistered"
)

// Change describes one committed registry mutation.
type Change struct {
	Kind     ChangeKind
	Names    []string
	Revision uint64
}

// ChangeNotifier receives a change after it is committed. Implementations
// must not block the caller.
type ChangeNotifier interface {
	NotifyChanged(change Change)
}

// ChangeNotifierFunc adapts a function to ChangeNotifier.
type ChangeNotifierFunc func(change Change)

// NotifyChanged calls f(change).
func (f ChangeNotifierFunc) NotifyChanged(change Change) {
	f(change)
}
