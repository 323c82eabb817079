package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
)

// ItemStore is a BadgerDB-backed implementation of item.Store.
//
// Items live under <prefix>item:<big-endian id> so iteration yields ID
// order. The next ID is kept under <prefix>item_seq and advanced in the
// same transaction as the insert.
type ItemStore struct {
	db        *badger.DB
	keyPrefix string
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
	closeOnce sync.Once
}

// NewItemStore opens a BadgerDB item store with the given configuration.
func NewItemStore(cfg Config, opts ...Option) (*ItemStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &ItemStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		gcStop:    make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

func (s *ItemStore) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.gcStop:
				return
			case <-ticker.C:
				for s.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

func (s *ItemStore) itemPrefix() []byte {
	return []byte(s.keyPrefix + "item:")
}

func (s *ItemStore) itemKey(id int64) []byte {
	key := s.itemPrefix()
	return binary.BigEndian.AppendUint64(key, uint64(id))
}

func (s *ItemStore) seqKey() []byte {
	return []byte(s.keyPrefix + "item_seq")
}

// List returns all items ordered by ID.
func (s *ItemStore) List(ctx context.Context) ([]item.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := []item.Item{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.itemPrefix()

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var stored item.Item
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				return errors.Join(ErrCorruptValue, err)
			}
			items = append(items, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id int64) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}

	var stored item.Item
	err := s.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get(s.itemKey(id))
		if err != nil {
			return err
		}
		val, err := entry.ValueCopy(nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(val, &stored)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	if err != nil {
		return item.Item{}, err
	}
	return stored, nil
}

// Create stores a new item.
func (s *ItemStore) Create(ctx context.Context, in item.Input) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	var created item.Item
	err := s.db.Update(func(txn *badger.Txn) error {
		next := int64(1)
		seq, err := txn.Get(s.seqKey())
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			err = seq.Value(func(val []byte) error {
				if len(val) != 8 {
					return ErrCorruptValue
				}
				next = int64(binary.BigEndian.Uint64(val))
				return nil
			})
			if err != nil {
				return err
			}
		}

		created = item.Item{ID: next, Name: in.Name, Description: in.Description, Price: in.Price}
		data, err := json.Marshal(created)
		if err != nil {
			return err
		}
		if err := txn.SetEntry(badger.NewEntry(s.itemKey(next), data)); err != nil {
			return err
		}
		return txn.Set(s.seqKey(), binary.BigEndian.AppendUint64(nil, uint64(next+1)))
	})
	if err != nil {
		return item.Item{}, err
	}
	return created, nil
}

// Update replaces an existing item.
func (s *ItemStore) Update(ctx context.Context, id int64, in item.Input) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	updated := item.Item{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(s.itemKey(id)); err != nil {
			return err
		}
		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(s.itemKey(id), data))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	if err != nil {
		return item.Item{}, err
	}
	return updated, nil
}

// Delete removes an item.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(s.itemKey(id)); err != nil {
			return err
		}
		return txn.Delete(s.itemKey(id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return &item.NotFoundError{ID: id}
	}
	return err
}

// Close stops GC and closes the database.
func (s *ItemStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.gcStop)
		s.gcWg.Wait()
		err = s.db.Close()
	})
	return err
}

var _ item.Store = (*ItemStore)(nil)
