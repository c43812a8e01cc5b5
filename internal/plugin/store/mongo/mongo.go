package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/history-service/internal/config"
	"github.com/chirino/history-service/internal/ident"
	registrycache "github.com/chirino/history-service/internal/registry/cache"
	registrymigrate "github.com/chirino/history-service/internal/registry/migrate"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	messagesCollection    = "messages"
	discussionsCollection = "discussions"
)

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "mongo",
		Loader: func(ctx context.Context) (registrystore.HistoryStore, error) {
			cfg := config.FromContext(ctx)
			opts := options.Client().ApplyURI(cfg.DBURL)
			if cfg.DBMaxOpenConns > 0 {
				opts.SetMaxPoolSize(uint64(cfg.DBMaxOpenConns))
			}
			if cfg.DBMaxIdleConns > 0 {
				opts.SetMinPoolSize(uint64(cfg.DBMaxIdleConns))
			}
			client, err := mongo.Connect(opts)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			if err := client.Ping(ctx, nil); err != nil {
				return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
			}

			dbName := cfg.DBName
			if dbName == "" {
				dbName = "history_service"
			}
			return NewStore(client, dbName, registrycache.DirectoryCacheFromContext(ctx)), nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &mongoMigrator{}})
}

type mongoMigrator struct{}

func (m *mongoMigrator) Name() string { return "mongo-schema" }

func (m *mongoMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg != nil && !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != "mongo" {
		return nil // skip if not using mongo
	}

	log.Info("Running migration", "name", m.Name())
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.DBURL))
	if err != nil {
		return fmt.Errorf("mongo migration: failed to connect: %w", err)
	}
	defer client.Disconnect(ctx)

	dbName := cfg.DBName
	if dbName == "" {
		dbName = "history_service"
	}
	if err := EnsureIndexes(ctx, client.Database(dbName)); err != nil {
		return err
	}

	log.Info("MongoDB schema migration complete")
	return nil
}

// EnsureIndexes creates the collections and indexes the store queries depend
// on. The message index matches the page filter (discussion_id equality, _id
// range descending); the discussion index matches the directory listing
// (users membership, updated_at descending).
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	collections := map[string][]mongo.IndexModel{
		messagesCollection: {
			{Keys: bson.D{{Key: "discussion_id", Value: 1}, {Key: "_id", Value: -1}}},
		},
		discussionsCollection: {
			{Keys: bson.D{{Key: "users", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
	}
	for name, indexes := range collections {
		// Ensure collection exists
		db.CreateCollection(ctx, name)
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("mongo migration: failed to create indexes for %s: %w", name, err)
		}
	}
	return nil
}

// Store implements HistoryStore using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	cache  registrycache.DirectoryCache
	alloc  ident.Allocator
}

// NewStore creates a Store on the given database. cache may be nil.
func NewStore(client *mongo.Client, dbName string, cache registrycache.DirectoryCache) *Store {
	return &Store{
		client: client,
		db:     client.Database(dbName),
		cache:  cache,
		alloc:  ident.ObjectIDs(),
	}
}

// SetAllocator overrides the id allocator. Intended for tests that need
// deterministic ids.
func (s *Store) SetAllocator(alloc ident.Allocator) { s.alloc = alloc }

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func (s *Store) messages() *mongo.Collection    { return s.db.Collection(messagesCollection) }
func (s *Store) discussions() *mongo.Collection { return s.db.Collection(discussionsCollection) }

// wrapErr classifies driver failures. Timeouts and cancellations surface as
// UnavailableError so the HTTP layer can answer 503; everything else is a
// plain wrapped error.
func wrapErr(op string, err error) error {
	if mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &registrystore.UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
