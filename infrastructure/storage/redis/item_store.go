package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
)

// ItemStore is a Redis-backed implementation of item.Store.
//
// Each item is a JSON value under <prefix>items:<id>. A sorted set scored by
// ID keeps the listing order and an INCR counter hands out IDs, so deleted
// IDs are never reused.
type ItemStore struct {
	client     *redis.Client
	keyPrefix  string
	ownsClient bool
}

// NewItemStore connects to Redis with the given configuration.
func NewItemStore(ctx context.Context, cfg Config, opts ...ConfigOption) (*ItemStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	clientOpts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(clientOpts)

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	s := NewItemStoreFromClient(client, cfg.KeyPrefix)
	s.ownsClient = true
	return s, nil
}

// NewItemStoreFromClient creates an item store from an existing client. The
// client stays open on Close.
func NewItemStoreFromClient(client *redis.Client, keyPrefix string) *ItemStore {
	return &ItemStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *ItemStore) itemKey(id int64) string {
	return s.keyPrefix + "items:" + strconv.FormatInt(id, 10)
}

func (s *ItemStore) indexKey() string {
	return s.keyPrefix + "items:ids"
}

func (s *ItemStore) seqKey() string {
	return s.keyPrefix + "items:seq"
}

// List returns all items ordered by ID.
func (s *ItemStore) List(ctx context.Context) ([]item.Item, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	items := []item.Item{}
	if len(ids) == 0 {
		return items, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyPrefix + "items:" + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		it, err := decodeItem([]byte(raw))
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id int64) (item.Item, error) {
	raw, err := s.client.Get(ctx, s.itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	if err != nil {
		return item.Item{}, err
	}
	return decodeItem(raw)
}

// Create stores a new item.
func (s *ItemStore) Create(ctx context.Context, in item.Input) (item.Item, error) {
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return item.Item{}, err
	}
	it := item.Item{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}
	data, err := json.Marshal(it)
	if err != nil {
		return item.Item{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.itemKey(id), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
		return nil
	})
	if err != nil {
		return item.Item{}, err
	}
	return it, nil
}

// Update replaces an existing item.
func (s *ItemStore) Update(ctx context.Context, id int64, in item.Input) (item.Item, error) {
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}

	it := item.Item{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}
	data, err := json.Marshal(it)
	if err != nil {
		return item.Item{}, err
	}

	// SET XX only writes keys that already exist.
	ok, err := s.client.SetXX(ctx, s.itemKey(id), data, 0).Result()
	if err != nil {
		return item.Item{}, err
	}
	if !ok {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	return it, nil
}

// Delete removes an item.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.itemKey(id))
		pipe.ZRem(ctx, s.indexKey(), strconv.FormatInt(id, 10))
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return &item.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the client when the store opened it.
func (s *ItemStore) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}
	return nil
}

func decodeItem(raw []byte) (item.Item, error) {
	var it item.Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return item.Item{}, errors.Join(ErrCorruptValue, err)
	}
	return it, nil
}

var _ item.Store = (*ItemStore)(nil)
