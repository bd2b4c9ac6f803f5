package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createKnownTable = `CREATE TABLE IF NOT EXISTS known_postings (
	url        TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps the known URLs in a single-column table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 2
	config.MaxConnLifetime = time.Hour

	// PgBouncer in transaction mode does not support prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if _, err := pool.Exec(ctx, createKnownTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create known_postings: %w", err)
	}

	return &PostgresStore{db: pool}, nil
}

// Load never reports ErrStoreMissing: the table is created on connect, and
// an empty table is an empty set.
func (s *PostgresStore) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT url FROM known_postings`)
	if err != nil {
		return nil, fmt.Errorf("query known_postings: %w", err)
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan known_postings: %w", err)
	}
	return urls, nil
}

func (s *PostgresStore) Append(ctx context.Context, url string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO known_postings (url) VALUES ($1) ON CONFLICT (url) DO NOTHING`, url)
	if err != nil {
		return fmt.Errorf("insert known_postings: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}
