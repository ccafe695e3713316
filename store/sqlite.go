// Package store implements the on-disk content store described in spec §4
// and §6: a single SQLite database holding the versioned content blobs,
// checkpoints, session records, ID mappings, and the dead letter queue.
// It is built on modernc.org/sqlite, a pure-Go driver, so the module never
// requires cgo at build time.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/lookervault/lookervault/lverrors"
)

// schemaVersion is the current schema_version row value. Bump this and add
// a migration step in migrate() when schema changes, never by editing the
// schema string destructively.
const schemaVersion = 1

// dsn renders the file path into a modernc.org/sqlite connection string
// carrying every pragma the concurrency model requires: WAL journaling so
// readers never block on a writer, synchronous=NORMAL (durable across
// process crash, not across OS crash, which is the tradeoff WAL mode is
// built for), a 60s busy_timeout so a writer waiting on another writer's
// transaction fails by error rather than by hanging forever, and a page
// size/cache size pair sized for the batch write patterns extraction uses.
func dsn(path string) string {
	return fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(60000)&_pragma=page_size(16384)&_pragma=cache_size(-65536)&_pragma=foreign_keys(ON)",
		path,
	)
}

// Store is the SQLite-backed content store. All writes go through
// withWriteTx, which takes a dedicated connection and an immediate write
// lock so concurrent writers serialize cleanly instead of hitting
// SQLITE_BUSY against each other.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, applies pragmas, and runs
// schema migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, &lverrors.StorageError{Op: "open", Err: err}
	}
	// modernc.org/sqlite has no true connection pool concurrency benefit
	// for writes (SQLite itself serializes them), but keeping more than
	// one open connection lets reads proceed during a writer's hold on
	// its dedicated connection.
	db.SetMaxOpenConns(8)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &lverrors.StorageError{Op: "open", Err: err}
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return &lverrors.StorageError{Op: "migrate", Err: err}
	}

	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version")
	if err := row.Scan(&count); err != nil {
		return &lverrors.StorageError{Op: "migrate", Err: err}
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return &lverrors.StorageError{Op: "migrate", Err: err}
		}
	}
	return nil
}

// withWriteTx obtains a connection dedicated to this call (never shared
// with a concurrent caller), opens an immediate-mode transaction so the
// write lock is taken up front rather than at first write statement, and
// guarantees COMMIT on success or ROLLBACK on any error or panic path.
func (s *Store) withWriteTx(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return &lverrors.StorageError{Op: "conn", Err: err}
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return &lverrors.StorageError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			panic(p)
		}
		if err != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			return
		}
		if _, cErr := conn.ExecContext(ctx, "COMMIT"); cErr != nil {
			err = &lverrors.StorageError{Op: "commit", Err: cErr}
		}
	}()

	err = fn(ctx, conn)
	return err
}
