package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
)

// ItemStore is an in-memory implementation of item.Store.
type ItemStore struct {
	mu     sync.RWMutex
	items  map[int64]item.Item
	nextID int64
}

// NewItemStore creates a new in-memory item store.
func NewItemStore() *ItemStore {
	return &ItemStore{
		items:  make(map[int64]item.Item),
		nextID: 1,
	}
}

// List returns all items ordered by ID.
func (s *ItemStore) List(ctx context.Context) ([]item.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]item.Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id int64) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	return it, nil
}

// Create stores a new item.
func (s *ItemStore) Create(ctx context.Context, in item.Input) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it := item.Item{ID: s.nextID, Name: in.Name, Description: in.Description, Price: in.Price}
	s.items[it.ID] = it
	s.nextID++
	return it, nil
}

// Update replaces an existing item.
func (s *ItemStore) Update(ctx context.Context, id int64, in item.Input) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	it := item.Item{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}
	s.items[id] = it
	return it, nil
}

// Delete removes an item.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return &item.NotFoundError{ID: id}
	}
	delete(s.items, id)
	return nil
}

// Close is a no-op.
func (s *ItemStore) Close() error {
	return nil
}

var _ item.Store = (*ItemStore)(nil)
