package recorder

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentStore is the sink every recorder loop writes through. It is an
// interface so tests can substitute an in-memory fake without a live
// MongoDB instance.
type DocumentStore interface {
	// InsertIdempotent inserts doc into collection, absorbing a duplicate
	// key error on collection's unique index as a no-op success (§4.5:
	// "trade replay after a reconnect must not double-count").
	InsertIdempotent(ctx context.Context, collection string, doc interface{}) error
	// Upsert replaces or inserts doc identified by filter, used for
	// monotonic state like funding rates and open interest.
	Upsert(ctx context.Context, collection string, filter bson.M, doc interface{}) error
}

// MongoStore is the production DocumentStore, backed by
// go.mongodb.org/mongo-driver.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and ensures the unique indexes every collection's
// idempotent insert relies on.
func Connect(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	store := &MongoStore{client: client, db: client.Database(dbName)}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := true
	indexes := map[string]bson.D{
		collTrades:      {{Key: "market", Value: 1}, {Key: "seq_num", Value: 1}},
		collLiquidations: {{Key: "signature", Value: 1}},
		collBankruptcies: {{Key: "signature", Value: 1}},
		collBalanceChanges: {{Key: "signature", Value: 1}, {Key: "margin", Value: 1}},
		collSwaps:        {{Key: "signature", Value: 1}},
		collOtcFills:     {{Key: "signature", Value: 1}},
	}
	for coll, keys := range indexes {
		_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    keys,
			Options: options.Index().SetUnique(unique),
		})
		if err != nil {
			return fmt.Errorf("ensure index on %s: %w", coll, err)
		}
	}
	return nil
}

// InsertIdempotent inserts doc, treating a duplicate-key error (code
// 11000) as success rather than propagating it.
func (s *MongoStore) InsertIdempotent(ctx context.Context, collection string, doc interface{}) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return fmt.Errorf("insert into %s: %w", collection, err)
}

// Upsert replaces (or inserts) the document matching filter.
func (s *MongoStore) Upsert(ctx context.Context, collection string, filter bson.M, doc interface{}) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collection).ReplaceOne(ctx, filter, doc, opts)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

const (
	collTrades         = "trades"
	collFunding        = "funding"
	collRealizedPnl    = "realized_pnl"
	collLiquidations   = "liquidations"
	collBankruptcies   = "bankruptcies"
	collBalanceChanges = "balance_changes"
	collSwaps          = "swaps"
	collOpenInterest   = "open_interest"
	collMarkTwap       = "mark_twap"
	collOtcFills       = "otc_fills"
)
