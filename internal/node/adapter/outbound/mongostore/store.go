package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/domain"
	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config holds the MongoDB connection settings.
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Store keeps records in one MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Ensure Store implements port.RecordRepository.
var _ port.RecordRepository = (*Store)(nil)

// Connect creates the client. The connection itself is verified by Ping.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	return newStore(client, client.Database(cfg.Database).Collection(cfg.Collection)), nil
}

func newStore(client *mongo.Client, coll *mongo.Collection) *Store {
	return &Store{client: client, coll: coll}
}

func (s *Store) Insert(ctx context.Context, record domain.Record) error {
	if _, err := s.coll.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert into %s: %w", s.coll.Name(), err)
	}
	return nil
}

// List returns records ordered by _id, which follows insertion order.
func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", s.coll.Name(), err)
	}

	records := make([]domain.Record, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.coll.Name(), err)
	}
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
