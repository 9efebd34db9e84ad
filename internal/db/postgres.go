package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"lol-match-crawler/internal/sample"
)

// PostgresSink writes samples to Postgres through a pgx pool.
type PostgresSink struct {
	pool   *pgxpool.Pool
	insert string
	logger *log.Entry
}

// OpenPostgres connects to dbURL, checks the connection and creates the table.
func OpenPostgres(ctx context.Context, dbURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create %s: %w", TableName, err)
	}

	logger := log.WithField("component", "sink")
	logger.Info("Opened Postgres sink")
	return &PostgresSink{pool: pool, insert: insertSQL(dialectPostgres), logger: logger}, nil
}

func (p *PostgresSink) Write(ctx context.Context, s *sample.MatchSample) error {
	if _, err := p.pool.Exec(ctx, p.insert, insertArgs(s)...); err != nil {
		return fmt.Errorf("failed to insert %s: %w", s.MatchID, err)
	}
	return nil
}

// Count returns the number of stored samples.
func (p *PostgresSink) Count(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+TableName).Scan(&n)
	return n, err
}

// Close closes the database connection pool
func (p *PostgresSink) Close() error {
	p.pool.Close()
	return nil
}
