package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/history-service/internal/config"
	"github.com/chirino/history-service/internal/ident"
	registrycache "github.com/chirino/history-service/internal/registry/cache"
	registrymigrate "github.com/chirino/history-service/internal/registry/migrate"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"github.com/chirino/history-service/internal/security"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	registrystore.Register(registrystore.Plugin{Name: "postgres", Loader: load})
	registrystore.Register(registrystore.Plugin{Name: "sqlite", Loader: load})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &gormMigrator{}})
}

func open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatastoreType {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBURL)
	default:
		dialector = postgres.Open(cfg.DBURL)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DatastoreType, err)
	}
	return db, nil
}

func load(ctx context.Context) (registrystore.HistoryStore, error) {
	cfg := config.FromContext(ctx)
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying db: %w", err)
	}
	if cfg.DatastoreType == "postgres" {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		if security.DBPoolMaxConnections != nil {
			security.DBPoolMaxConnections.Set(float64(cfg.DBMaxOpenConns))
		}

		// Periodically update the open connections gauge.
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if security.DBPoolOpenConnections != nil {
						security.DBPoolOpenConnections.Set(float64(sqlDB.Stats().OpenConnections))
					}
				}
			}
		}()
	}

	return NewStore(db, registrycache.DirectoryCacheFromContext(ctx)), nil
}

type gormMigrator struct{}

func (m *gormMigrator) Name() string { return "sql-schema" }

func (m *gormMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg != nil && !cfg.DatastoreMigrateAtStart {
		return nil
	}
	if cfg.DatastoreType != "postgres" && cfg.DatastoreType != "sqlite" {
		return nil // skip if not using a SQL store
	}
	log.Info("Running migration", "name", m.Name())
	db, err := open(cfg)
	if err != nil {
		return fmt.Errorf("migration: failed to connect: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("migration: failed to migrate schema: %w", err)
	}
	log.Info("SQL schema migration complete")
	return nil
}

// AutoMigrate creates or updates the tables backing the store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&messageRow{}, &discussionRow{}, &participantRow{})
}

// messageRow is one message in a discussion's log. IDs are 24-char hex, so
// the string ordering of the primary key matches allocation order. The
// composite index covers the page query (discussion_id equality, id range).
type messageRow struct {
	ID           string `gorm:"primaryKey;size:24;index:idx_messages_discussion,priority:2,sort:desc"`
	DiscussionID string `gorm:"size:24;index:idx_messages_discussion,priority:1"`
	UserID       string `gorm:"size:255"`
	Text         string
	CreatedAt    time.Time
}

func (messageRow) TableName() string { return "messages" }

type discussionRow struct {
	ID                   string `gorm:"primaryKey;size:24"`
	CreatedAt            time.Time
	UpdatedAt            time.Time `gorm:"index"`
	LastMessageID        *string   `gorm:"size:24"`
	LastMessageUserID    *string   `gorm:"size:255"`
	LastMessageText      *string
	LastMessageCreatedAt *time.Time
}

func (discussionRow) TableName() string { return "discussions" }

type participantRow struct {
	DiscussionID string `gorm:"primaryKey;size:24"`
	UserID       string `gorm:"primaryKey;size:255"`
	CreatedAt    time.Time
}

func (participantRow) TableName() string { return "discussion_participants" }

// Store implements HistoryStore using GORM against postgres or sqlite.
type Store struct {
	db    *gorm.DB
	cache registrycache.DirectoryCache
	alloc ident.Allocator
}

// NewStore creates a Store on an open gorm DB. cache may be nil.
func NewStore(db *gorm.DB, cache registrycache.DirectoryCache) *Store {
	return &Store{
		db:    db,
		cache: cache,
		alloc: ident.ObjectIDs(),
	}
}

// SetAllocator overrides the id allocator. Intended for tests that need
// deterministic ids.
func (s *Store) SetAllocator(alloc ident.Allocator) { s.alloc = alloc }

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &registrystore.UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
