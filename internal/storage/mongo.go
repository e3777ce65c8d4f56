package storage

import (
	"context"
	"fmt"
	"time"

	"ipgate/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// Collection names and the ip/timestamp document fields match the legacy
// Node deployment's database. BSON dates keep only milliseconds, so request
// logs also carry observed_ns, the instant in unix nanoseconds, which window
// counts compare against. Legacy documents without it fall back to timestamp.
const (
	mongoRequestLogs = "ips"
	mongoBans        = "bannedips"
)

// MongoStorage implements the Store interface on MongoDB.
type MongoStorage struct {
	client      *mongo.Client
	requestLogs *mongo.Collection
	bans        *mongo.Collection
}

// NewMongoStorage connects to MongoDB. The database is taken from the URI path,
// falling back to Config.DatabaseName.
func NewMongoStorage(config Config) (*MongoStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for MongoDB storage")
	}

	cs, err := connstring.ParseAndValidate(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	dbName := cs.Database
	if dbName == "" {
		dbName = config.DatabaseName
	}
	if dbName == "" {
		dbName = "ipgate"
	}

	clientOpts := options.Client().ApplyURI(config.ConnectionString)
	if config.MaxOpenConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(config.MaxOpenConns))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := client.Database(dbName)
	ms := &MongoStorage{
		client:      client,
		requestLogs: db.Collection(mongoRequestLogs),
		bans:        db.Collection(mongoBans),
	}

	if err := ms.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return ms, nil
}

func (ms *MongoStorage) ensureIndexes(ctx context.Context) error {
	_, err := ms.requestLogs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ip", Value: 1}, {Key: "observed_ns", Value: 1}}},
		{Keys: bson.D{{Key: "ip", Value: 1}, {Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create request log index: %w", err)
	}

	_, err = ms.bans.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "ip", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create ban index: %w", err)
	}
	return nil
}

// InsertRequestLog appends a request-log document
func (ms *MongoStorage) InsertRequestLog(ctx context.Context, clientID string, at time.Time) error {
	entry := models.NewRequestLogEntry(clientID, at)
	_, err := ms.requestLogs.InsertOne(ctx, bson.M{
		"_id":         entry.ID,
		"ip":          entry.ClientID,
		"timestamp":   entry.ObservedAt,
		"observed_ns": entry.ObservedAt.UnixNano(),
		"zone":        entry.Zone(),
	})
	if err != nil {
		return unavailable("insert request log", err)
	}
	return nil
}

// CountRequestLogs counts documents observed strictly after since
func (ms *MongoStorage) CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error) {
	count, err := ms.requestLogs.CountDocuments(ctx, requestLogsSince(clientID, since))
	if err != nil {
		return 0, unavailable("count request logs", err)
	}
	return int(count), nil
}

// requestLogsSince matches a client's documents observed strictly after since,
// at nanosecond precision where observed_ns is present.
func requestLogsSince(clientID string, since time.Time) bson.M {
	return bson.M{
		"ip": clientID,
		"$or": bson.A{
			bson.M{"observed_ns": bson.M{"$gt": since.UnixNano()}},
			bson.M{
				"observed_ns": bson.M{"$exists": false},
				"timestamp":   bson.M{"$gt": since},
			},
		},
	}
}

// BanExists reports whether any ban document exists for the client
func (ms *MongoStorage) BanExists(ctx context.Context, clientID string) (bool, error) {
	count, err := ms.bans.CountDocuments(ctx, bson.M{"ip": clientID}, options.Count().SetLimit(1))
	if err != nil {
		return false, unavailable("check ban", err)
	}
	return count > 0, nil
}

// InsertBan appends a ban document without checking for an existing one
func (ms *MongoStorage) InsertBan(ctx context.Context, clientID string) error {
	ban := models.NewBanEntry(clientID)
	_, err := ms.bans.InsertOne(ctx, bson.M{
		"_id":       ban.ID,
		"ip":        ban.ClientID,
		"timestamp": ban.BannedAt,
	})
	if err != nil {
		return unavailable("insert ban", err)
	}
	return nil
}

// Ping verifies MongoDB is reachable
func (ms *MongoStorage) Ping(ctx context.Context) error {
	if err := ms.client.Ping(ctx, nil); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close disconnects the client
func (ms *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ms.client.Disconnect(ctx)
}
