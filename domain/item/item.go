// Package item defines the inventory resource served by the REST API.
package item

import (
	"context"
	"strings"
)

// Item is one inventory entry.
type Item struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       float64 `json:"price"`
}

// Input is the body accepted by create and update.
type Input struct {
	Name        string  `json:"name" description:"Name of the item"`
	Description *string `json:"description" description:"Optional description of the item"`
	Price       float64 `json:"price" description:"Price of the item (must be positive)"`
}

// Validate checks the input fields.
func (in Input) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "is required"})
	}
	if !(in.Price > 0) {
		errs = append(errs, ValidationError{Field: "price", Message: "must be greater than 0"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Store persists items. IDs are assigned by the store and never reused.
type Store interface {
	// List returns all items ordered by ID.
	List(ctx context.Context) ([]Item, error)

	// Get returns the item with the given ID or ErrNotFound.
	Get(ctx context.Context, id int64) (Item, error)

	// Create stores a new item and returns it with its assigned ID.
	Create(ctx context.Context, in Input) (Item, error)

	// Update replaces the item with the given ID or returns ErrNotFound.
	Update(ctx context.Context, id int64, in Input) (Item, error)

	// Delete removes the item with the given ID or returns ErrNotFound.
	Delete(ctx context.Context, id int64) error

	// Close releases the store's resources.
	Close() error
}

// Seed returns the starting inventory.
func Seed() []Input {
	return []Input{
		{Name: "Laptop", Description: ptr("A powerful laptop"), Price: 999.99},
		{Name: "Mouse", Description: ptr("Wireless mouse"), Price: 29.99},
		{Name: "Keyboard", Description: ptr("Mechanical keyboard"), Price: 149.99},
	}
}

func ptr(s string) *string { return &s }

// SeedIfEmpty creates the starting inventory when s holds no items.
func SeedIfEmpty(ctx context.Context, s Store) error {
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		return nil
	}
	for _, in := range Seed() {
		if _, err := s.Create(ctx, in); err != nil {
			return err
		}
	}
	return nil
}
