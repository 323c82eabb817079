// Package itemtest checks item.Store implementations against the behavior
// the REST API relies on.
package itemtest

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
)

// Run exercises a store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) item.Store) {
	t.Helper()

	t.Run("seed assigns sequential ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := item.SeedIfEmpty(ctx, s); err != nil {
			t.Fatalf("SeedIfEmpty() error = %v", err)
		}
		if err := item.SeedIfEmpty(ctx, s); err != nil {
			t.Fatalf("second SeedIfEmpty() error = %v", err)
		}

		items, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("List() returned %d items, want 3", len(items))
		}
		for i, want := range []string{"Laptop", "Mouse", "Keyboard"} {
			if items[i].ID != int64(i+1) || items[i].Name != want {
				t.Errorf("items[%d] = %+v, want id %d name %s", i, items[i], i+1, want)
			}
		}

		created, err := s.Create(ctx, item.Input{Name: "Monitor", Price: 199})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if created.ID != 4 {
			t.Errorf("Create() id = %d, want 4", created.ID)
		}
		if created.Description != nil {
			t.Errorf("Description = %v, want nil", *created.Description)
		}
	})

	t.Run("crud", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		desc := "clicky"
		created, err := s.Create(ctx, item.Input{Name: "Switch", Description: &desc, Price: 2.5})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := s.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name != "Switch" || got.Description == nil || *got.Description != "clicky" || got.Price != 2.5 {
			t.Errorf("Get() = %+v", got)
		}

		updated, err := s.Update(ctx, created.ID, item.Input{Name: "Switch v2", Price: 3})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if updated.ID != created.ID || updated.Name != "Switch v2" || updated.Description != nil {
			t.Errorf("Update() = %+v", updated)
		}

		if err := s.Delete(ctx, created.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get(ctx, created.ID); !errors.Is(err, item.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}

		next, err := s.Create(ctx, item.Input{Name: "Again", Price: 1})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if next.ID == created.ID {
			t.Error("store reused a deleted id")
		}
	})

	t.Run("missing ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Get(ctx, 99); !errors.Is(err, item.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		if _, err := s.Update(ctx, 99, item.Input{Name: "x", Price: 1}); !errors.Is(err, item.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, 99); !errors.Is(err, item.ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Create(ctx, item.Input{Name: "", Price: 0}); !errors.Is(err, item.ErrInvalidInput) {
			t.Errorf("Create() error = %v, want ErrInvalidInput", err)
		}
		items, _ := s.List(ctx)
		if len(items) != 0 {
			t.Errorf("invalid create stored an item")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := s.List(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("List() error = %v, want context.Canceled", err)
		}
	})
}
