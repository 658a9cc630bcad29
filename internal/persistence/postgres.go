package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver

	"innersight/internal/config"
)

// Open returns the database selected by cfg.Driver.
func Open(cfg config.Database) (Database, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryDB(), nil
	case "postgres":
		return NewPostgresDB(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db       *sql.DB
	entries  EntryRepository
	profiles ProfileRepository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{
		db:       db,
		entries:  &postgresEntryRepo{db: db},
		profiles: &postgresProfileRepo{db: db},
	}, nil
}

func (p *PostgresDB) Entries() EntryRepository    { return p.entries }
func (p *PostgresDB) Profiles() ProfileRepository { return p.profiles }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
