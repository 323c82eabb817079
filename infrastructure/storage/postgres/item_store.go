package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
)

// ItemStore is a PostgreSQL-backed implementation of item.Store. IDs come
// from a BIGSERIAL sequence, so deleted IDs are never reused.
type ItemStore struct {
	pool     *pgxpool.Pool
	schema   string
	ownsPool bool
}

// NewItemStore connects to PostgreSQL and creates the items table when it is
// missing.
func NewItemStore(ctx context.Context, cfg Config, opts ...ConfigOption) (*ItemStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := newItemStore(pool, cfg.Schema)
	s.ownsPool = true
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewItemStoreFromPool creates an item store on an existing pool. The pool
// stays open on Close.
func NewItemStoreFromPool(ctx context.Context, pool *pgxpool.Pool, schema string) (*ItemStore, error) {
	s := newItemStore(pool, schema)
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func newItemStore(pool *pgxpool.Pool, schema string) *ItemStore {
	if schema == "" {
		schema = "public"
	}
	return &ItemStore{pool: pool, schema: schema}
}

// tableName returns the fully qualified table name.
func (s *ItemStore) tableName() string {
	return pgx.Identifier{s.schema, "items"}.Sanitize()
}

func (s *ItemStore) migrate(ctx context.Context) error {
	schema := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{s.schema}.Sanitize()
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			price DOUBLE PRECISION NOT NULL
		)
	`, s.tableName())

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// List returns all items ordered by ID.
func (s *ItemStore) List(ctx context.Context) ([]item.Item, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT id, name, description, price FROM %s ORDER BY id", s.tableName()))
	if err != nil {
		return nil, err
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (item.Item, error) {
		return scanItem(row)
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []item.Item{}
	}
	return items, nil
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id int64) (item.Item, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT id, name, description, price FROM %s WHERE id = $1", s.tableName()), id)

	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	return it, err
}

// Create stores a new item.
func (s *ItemStore) Create(ctx context.Context, in item.Input) (item.Item, error) {
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("INSERT INTO %s (name, description, price) VALUES ($1, $2, $3) RETURNING id", s.tableName()),
		in.Name, in.Description, in.Price,
	).Scan(&id)
	if err != nil {
		return item.Item{}, err
	}
	return item.Item{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}, nil
}

// Update replaces an existing item.
func (s *ItemStore) Update(ctx context.Context, id int64, in item.Input) (item.Item, error) {
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET name = $1, description = $2, price = $3 WHERE id = $4", s.tableName()),
		in.Name, in.Description, in.Price, id,
	)
	if err != nil {
		return item.Item{}, err
	}
	if tag.RowsAffected() == 0 {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	return item.Item{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}, nil
}

// Delete removes an item.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName()), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &item.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the pool when the store opened it.
func (s *ItemStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

func scanItem(row pgx.Row) (item.Item, error) {
	var it item.Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Price)
	return it, err
}

var _ item.Store = (*ItemStore)(nil)
