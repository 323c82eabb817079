package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
)

// ItemStore is a SQLite-backed implementation of item.Store.
type ItemStore struct {
	db *sql.DB
}

// NewItemStore creates a new SQLite item store with the given configuration.
func NewItemStore(cfg Config, opts ...Option) (*ItemStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &ItemStore{db: db}

	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// NewItemStoreFromDB creates an item store from an existing database connection.
func NewItemStoreFromDB(db *sql.DB) (*ItemStore, error) {
	s := &ItemStore{db: db}

	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

// migrate creates the items table if it doesn't exist. AUTOINCREMENT keeps
// deleted IDs from being handed out again.
func (s *ItemStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			price REAL NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	return nil
}

// List returns all items ordered by ID.
func (s *ItemStore) List(ctx context.Context) ([]item.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description, price FROM items ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []item.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id int64) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT id, name, description, price FROM items WHERE id = ?", id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	return it, err
}

// Create stores a new item.
func (s *ItemStore) Create(ctx context.Context, in item.Input) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO items (name, description, price) VALUES (?, ?, ?)",
		in.Name, nullString(in.Description), in.Price,
	)
	if err != nil {
		return item.Item{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return item.Item{}, err
	}
	return item.Item{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}, nil
}

// Update replaces an existing item.
func (s *ItemStore) Update(ctx context.Context, id int64, in item.Input) (item.Item, error) {
	if err := ctx.Err(); err != nil {
		return item.Item{}, err
	}
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET name = ?, description = ?, price = ? WHERE id = ?",
		in.Name, nullString(in.Description), in.Price, id,
	)
	if err != nil {
		return item.Item{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return item.Item{}, err
	} else if n == 0 {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	return item.Item{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}, nil
}

// Delete removes an item.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &item.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the database connection.
func (s *ItemStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (item.Item, error) {
	var (
		it   item.Item
		desc sql.NullString
	)
	if err := row.Scan(&it.ID, &it.Name, &desc, &it.Price); err != nil {
		return item.Item{}, err
	}
	if desc.Valid {
		it.Description = &desc.String
	}
	return it, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ item.Store = (*ItemStore)(nil)
