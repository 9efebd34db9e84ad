package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"lol-match-crawler/internal/sample"
)

// SQLSink writes samples to SQLite or Turso through database/sql.
type SQLSink struct {
	db     *sql.DB
	insert *sql.Stmt
	logger *log.Entry
}

// OpenSQL opens a sink from a URL:
//
//	sqlite://path/to/file.db, sqlite://:memory:
//	libsql://db-org.turso.io (authToken from the argument when not in the URL)
func OpenSQL(ctx context.Context, rawURL, authToken string) (*SQLSink, error) {
	driver, dsn, err := sqlDSN(rawURL, authToken)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer; also keeps :memory: on a single connection
		conn.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	s, err := newSQLSink(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.logger.WithField("driver", driver).Info("Opened SQL sink")
	return s, nil
}

func newSQLSink(ctx context.Context, conn *sql.DB) (*SQLSink, error) {
	if _, err := conn.ExecContext(ctx, createTableSQL()); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", TableName, err)
	}
	stmt, err := conn.PrepareContext(ctx, insertSQL(dialectSQLite))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	return &SQLSink{db: conn, insert: stmt, logger: log.WithField("component", "sink")}, nil
}

func sqlDSN(rawURL, authToken string) (driver, dsn string, err error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "", "", fmt.Errorf("sink URL %q has no scheme", rawURL)
	}
	switch scheme {
	case "sqlite", "sqlite3":
		if rest == "" {
			return "", "", fmt.Errorf("sqlite sink URL needs a path")
		}
		return "sqlite", rest, nil
	case "libsql", "https", "wss":
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", "", fmt.Errorf("invalid sink URL: %w", err)
		}
		if authToken != "" && u.Query().Get("authToken") == "" {
			q := u.Query()
			q.Set("authToken", authToken)
			u.RawQuery = q.Encode()
		}
		return "libsql", u.String(), nil
	default:
		return "", "", fmt.Errorf("unsupported SQL sink scheme %q", scheme)
	}
}

// Write inserts one sample in its own implicit transaction.
func (s *SQLSink) Write(ctx context.Context, smp *sample.MatchSample) error {
	if _, err := s.insert.ExecContext(ctx, insertArgs(smp)...); err != nil {
		return fmt.Errorf("failed to insert %s: %w", smp.MatchID, err)
	}
	return nil
}

// Count returns the number of stored samples.
func (s *SQLSink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+TableName).Scan(&n)
	return n, err
}

// Close closes the connection
func (s *SQLSink) Close() error {
	s.insert.Close()
	return s.db.Close()
}
