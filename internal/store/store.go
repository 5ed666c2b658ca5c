// Package store persists completed analyses to MongoDB. The database is an
// optional deployment dependency: with no URI configured every operation
// reports a skip instead of an error.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	databaseName   = "devworth"
	collectionName = "analyses"

	opTimeout = 10 * time.Second
)

// ErrNotConfigured is returned by read paths when no store URI is set.
var ErrNotConfigured = errors.New("document store is not configured")

// SaveResult reports the outcome of one write attempt.
type SaveResult struct {
	Saved   bool
	Skipped bool
	ID      string
	Err     error
}

// Store owns the lazily-connected, process-wide cached Mongo client. The
// client is established on first use and cleared on connection error so the
// next call retries from scratch. Safe for concurrent use.
type Store struct {
	uri    string
	logger *zap.Logger

	mu     sync.Mutex
	client *mongo.Client
}

func New(uri string, logger *zap.Logger) *Store {
	return &Store{uri: uri, logger: logger}
}

// Configured reports whether a store URI is set.
func (s *Store) Configured() bool {
	return s.uri != ""
}

// collection lazily connects and returns the analyses collection. Indexes
// are ensured once per established connection.
func (s *Store) collection(ctx context.Context) (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client.Database(databaseName).Collection(collectionName), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("ping store: %w", err)
	}

	coll := client.Database(databaseName).Collection(collectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "githubUsername", Value: 1}}},
		{Keys: bson.D{{Key: "githubUsername", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := coll.Indexes().CreateMany(connectCtx, indexes); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	s.client = client
	s.logger.Info("connected to document store")

	return coll, nil
}

// reset drops the cached client so the next operation reconnects.
func (s *Store) reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		_ = s.client.Disconnect(ctx)
		s.client = nil
	}
}

// Save writes one record. It never panics outward: the result carries the
// error for the caller to log. An unconfigured store is a supported state
// and yields a skip, not an error.
func (s *Store) Save(ctx context.Context, record *Record) SaveResult {
	if !s.Configured() {
		return SaveResult{Skipped: true}
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		s.reset(ctx)
		return SaveResult{Err: err}
	}

	record.CreatedAt = time.Now().UTC()

	res, err := coll.InsertOne(ctx, record)
	if err != nil {
		return SaveResult{Err: fmt.Errorf("insert analysis: %w", err)}
	}

	result := SaveResult{Saved: true}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		result.ID = oid.Hex()
	}

	return result
}

// History returns the stored analyses for a username, newest first.
func (s *Store) History(ctx context.Context, username string, limit int) ([]Record, error) {
	return s.find(ctx, bson.M{"githubUsername": username}, limit)
}

// Recent returns the most recent analyses across all usernames.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.find(ctx, bson.M{}, limit)
}

func (s *Store) find(ctx context.Context, filter bson.M, limit int) ([]Record, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	coll, err := s.collection(ctx)
	if err != nil {
		s.reset(ctx)
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]Record, 0, limit)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode analyses: %w", err)
	}

	return records, nil
}

// Close tears down the cached connection if one was established.
func (s *Store) Close(ctx context.Context) {
	s.reset(ctx)
}
