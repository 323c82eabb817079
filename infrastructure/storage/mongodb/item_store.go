package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
)

// itemDocument is the MongoDB document representation of an item.
type itemDocument struct {
	ID          int64   `bson:"_id"`
	Name        string  `bson:"name"`
	Description *string `bson:"description"`
	Price       float64 `bson:"price"`
}

func (d itemDocument) toItem() item.Item {
	return item.Item{ID: d.ID, Name: d.Name, Description: d.Description, Price: d.Price}
}

// counterDocument holds the last ID handed out.
type counterDocument struct {
	Seq int64 `bson:"seq"`
}

// ItemStore is a MongoDB-backed implementation of item.Store. IDs come from
// a counter document advanced with $inc, so deleted IDs are never reused.
type ItemStore struct {
	client       *mongo.Client
	items        *mongo.Collection
	counters     *mongo.Collection
	counterID    string
	queryTimeout time.Duration
}

// NewItemStore connects to MongoDB with the given configuration.
func NewItemStore(ctx context.Context, cfg Config, opts ...ConfigOption) (*ItemStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Collection == "" {
		cfg.Collection = "items"
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db := client.Database(cfg.Database)
	return &ItemStore{
		client:       client,
		items:        db.Collection(cfg.Collection),
		counters:     db.Collection("counters"),
		counterID:    cfg.Collection,
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

func (s *ItemStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// List returns all items ordered by ID.
func (s *ItemStore) List(ctx context.Context) ([]item.Item, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.items.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	items := []item.Item{}
	for cursor.Next(ctx) {
		var doc itemDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		items = append(items, doc.toItem())
	}
	return items, cursor.Err()
}

// Get retrieves an item by ID.
func (s *ItemStore) Get(ctx context.Context, id int64) (item.Item, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc itemDocument
	err := s.items.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	if err != nil {
		return item.Item{}, err
	}
	return doc.toItem(), nil
}

// Create stores a new item.
func (s *ItemStore) Create(ctx context.Context, in item.Input) (item.Item, error) {
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id, err := s.nextID(ctx)
	if err != nil {
		return item.Item{}, err
	}
	doc := itemDocument{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}
	if _, err := s.items.InsertOne(ctx, doc); err != nil {
		return item.Item{}, err
	}
	return doc.toItem(), nil
}

// Update replaces an existing item.
func (s *ItemStore) Update(ctx context.Context, id int64, in item.Input) (item.Item, error) {
	if err := in.Validate(); err != nil {
		return item.Item{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := itemDocument{ID: id, Name: in.Name, Description: in.Description, Price: in.Price}
	result, err := s.items.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return item.Item{}, err
	}
	if result.MatchedCount == 0 {
		return item.Item{}, &item.NotFoundError{ID: id}
	}
	return doc.toItem(), nil
}

// Delete removes an item.
func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.items.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return &item.NotFoundError{ID: id}
	}
	return nil
}

// Close disconnects the client.
func (s *ItemStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *ItemStore) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter counterDocument
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": s.counterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

var _ item.Store = (*ItemStore)(nil)
