package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

func newTestTool(name, description string) *tool.Descriptor {
	return tool.NewBuilder(name).
		WithDescription(description).
		WithHandler(func(_ context.Context, _ tool.Arguments) (any, error) {
			return description, nil
		}).
		MustBuild()
}

// recorder collects changes in delivery order.
type recorder struct {
	mu      sync.Mutex
	changes []tool.Change
}

func (r *recorder) NotifyChanged(c tool.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []tool.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tool.Change(nil), r.changes...)
}

func TestNewToolRegistry(t *testing.T) {
	registry := NewToolRegistry()
	if registry == nil {
		t.Fatal("NewToolRegistry() returned nil")
	}
	if registry.Count() != 0 {
		t.Errorf("NewToolRegistry().Count() = %d, want 0", registry.Count())
	}
	if registry.Revision() != 0 {
		t.Errorf("Revision() = %d, want 0", registry.Revision())
	}
}

func TestToolRegistry_RegisterUpsert(t *testing.T) {
	rec := &recorder{}
	registry := NewToolRegistry(WithChangeNotifier(rec))

	if err := registry.Register(newTestTool("first", "v1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(newTestTool("second", "v1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(newTestTool("first", "v2")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if registry.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", registry.Count())
	}
	got, ok := registry.Lookup("first")
	if !ok || got.Description() != "v2" {
		t.Errorf("Lookup(first) = %v, %v; want replaced descriptor", got, ok)
	}
	if names := registry.Names(); !reflect.DeepEqual(names, []string{"first", "second"}) {
		t.Errorf("Names() = %v, replaced tool should keep its position", names)
	}
	if n := len(rec.all()); n != 3 {
		t.Errorf("notifications = %d, want 3", n)
	}
}

func TestToolRegistry_RegisterBatch(t *testing.T) {
	rec := &recorder{}
	registry := NewToolRegistry(WithChangeNotifier(rec))

	err := registry.Register(
		newTestTool("a", ""),
		newTestTool("b", ""),
		newTestTool("a", "again"),
	)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	changes := rec.all()
	if len(changes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(changes))
	}
	want := tool.Change{Kind: tool.ChangeRegistered, Names: []string{"a", "b"}, Revision: 1}
	if !reflect.DeepEqual(changes[0], want) {
		t.Errorf("change = %+v, want %+v", changes[0], want)
	}
	if d, _ := registry.Lookup("a"); d.Description() != "again" {
		t.Errorf("last descriptor for a duplicate name should win, got %q", d.Description())
	}
}

func TestToolRegistry_RegisterRejectsWholeCall(t *testing.T) {
	rec := &recorder{}
	registry := NewToolRegistry(WithChangeNotifier(rec))
	if err := registry.Register(newTestTool("keep", "")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		descs   []*tool.Descriptor
		wantErr error
	}{
		{"nil descriptor", []*tool.Descriptor{newTestTool("x", ""), nil}, tool.ErrNilDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.descs...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(registry.Names(), []string{"keep"}) {
				t.Errorf("registry mutated by rejected call: %v", registry.Names())
			}
		})
	}

	if n := len(rec.all()); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
	if registry.Register() != nil || registry.Revision() != 1 {
		t.Error("empty Register() should be a no-op")
	}
}

func TestToolRegistry_Unregister(t *testing.T) {
	rec := &recorder{}
	registry := NewToolRegistry(WithChangeNotifier(rec))
	_ = registry.Register(newTestTool("echo", ""))

	removed, err := registry.Unregister("echo")
	if err != nil || !removed {
		t.Fatalf("Unregister(echo) = %v, %v; want true, nil", removed, err)
	}
	removed, err = registry.Unregister("echo")
	if err != nil || removed {
		t.Fatalf("second Unregister(echo) = %v, %v; want false, nil", removed, err)
	}
	removed, err = registry.Unregister("never_registered")
	if err != nil || removed {
		t.Fatalf("Unregister(never_registered) = %v, %v; want false, nil", removed, err)
	}

	changes := rec.all()
	if len(changes) != 2 {
		t.Fatalf("notifications = %d, want 2", len(changes))
	}
	if changes[1].Kind != tool.ChangeUnregistered || changes[1].Revision != 2 {
		t.Errorf("unregister change = %+v", changes[1])
	}

	if _, err := registry.Unregister(""); !errors.Is(err, tool.ErrInvalidName) {
		t.Errorf("Unregister(\"\") error = %v, want ErrInvalidName", err)
	}
}

func TestToolRegistry_Clear(t *testing.T) {
	rec := &recorder{}
	registry := NewToolRegistry(WithChangeNotifier(rec))
	_ = registry.Register(newTestTool("a", ""), newTestTool("b", ""))

	registry.Clear()
	registry.Clear()

	if registry.Count() != 0 {
		t.Errorf("Count() = %d after Clear()", registry.Count())
	}
	changes := rec.all()
	if len(changes) != 2 {
		t.Fatalf("notifications = %d, want 2", len(changes))
	}
	if !reflect.DeepEqual(changes[1].Names, []string{"a", "b"}) {
		t.Errorf("clear change names = %v", changes[1].Names)
	}
}

func TestToolRegistry_KeysMatchNames(t *testing.T) {
	registry := NewToolRegistry()
	ops := []string{"a", "b", "-a", "c", "a", "-b", "-zz", "b"}
	for _, op := range ops {
		if op[0] == '-' {
			_, _ = registry.Unregister(op[1:])
			continue
		}
		_ = registry.Register(newTestTool(op, ""))
	}

	seen := map[string]bool{}
	for _, d := range registry.List() {
		if seen[d.Name()] {
			t.Errorf("duplicate entry %q", d.Name())
		}
		seen[d.Name()] = true
		got, ok := registry.Lookup(d.Name())
		if !ok || got.Name() != d.Name() {
			t.Errorf("Lookup(%q) mismatch", d.Name())
		}
	}
	if !reflect.DeepEqual(registry.Names(), []string{"c", "a", "b"}) {
		t.Errorf("Names() = %v", registry.Names())
	}
}

func TestToolRegistry_ConcurrentRegistration(t *testing.T) {
	rec := &recorder{}
	registry := NewToolRegistry(WithChangeNotifier(rec))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = registry.Register(newTestTool(fmt.Sprintf("tool_%d", i), ""))
		}(i)
	}
	wg.Wait()

	if registry.Count() != workers {
		t.Errorf("Count() = %d, want %d", registry.Count(), workers)
	}

	changes := rec.all()
	if len(changes) != workers {
		t.Fatalf("notifications = %d, want %d", len(changes), workers)
	}
	for i, c := range changes {
		if c.Revision != uint64(i+1) {
			t.Fatalf("notification %d has revision %d; notifications out of order", i, c.Revision)
		}
	}
}

func TestToolRegistry_ListConsistency(t *testing.T) {
	registry := NewToolRegistry()
	batch := []*tool.Descriptor{
		newTestTool("x1", ""), newTestTool("x2", ""), newTestTool("x3", ""),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = registry.Register(batch...)
			for _, d := range batch {
				_, _ = registry.Unregister(d.Name())
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		tools, rev := registry.Snapshot()
		// A batch registration is all-or-nothing: a snapshot taken right
		// after it (odd revision relative to each 4-step cycle) sees all three.
		if rev%4 == 1 && len(tools) != 3 {
			t.Fatalf("revision %d shows partial batch: %d tools", rev, len(tools))
		}
		if rev%4 == 0 && len(tools) != 0 {
			t.Fatalf("revision %d should be empty, got %d tools", rev, len(tools))
		}
	}
}
