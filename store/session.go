package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/types"
)

// PutSession inserts a new session row, failing if the ID already exists
// (sessions are created once and thereafter only updated via UpdateSession).
func (s *Store) PutSession(ctx context.Context, sess *types.Session) error {
	if err := sess.Validate(); err != nil {
		return &lverrors.ValidationError{Field: "status", Err: err}
	}
	configJSON, err := json.Marshal(sess.Config)
	if err != nil {
		return &lverrors.SerializationError{Err: err}
	}
	metaJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return &lverrors.SerializationError{Err: err}
	}

	return s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO sessions (
				id, kind, status, started_at, completed_at,
				items_processed, error_count, config, metadata
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sess.ID, string(sess.Kind), string(sess.Status), formatTime(sess.StartedAt),
			formatTimePtr(sess.CompletedAt), sess.ItemsProcessed, sess.ErrorCount,
			string(configJSON), string(metaJSON),
		)
		if err != nil {
			return &lverrors.StorageError{Op: "put_session", Err: err}
		}
		return nil
	})
}

// UpdateSession overwrites the mutable fields of an existing session row:
// status, completion time, and running counters.
func (s *Store) UpdateSession(ctx context.Context, sess *types.Session) error {
	if err := sess.Validate(); err != nil {
		return &lverrors.ValidationError{Field: "status", Err: err}
	}
	return s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			UPDATE sessions SET
				status = ?, completed_at = ?, items_processed = ?, error_count = ?
			WHERE id = ?
		`, string(sess.Status), formatTimePtr(sess.CompletedAt), sess.ItemsProcessed,
			sess.ErrorCount, sess.ID,
		)
		if err != nil {
			return &lverrors.StorageError{Op: "update_session", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return &lverrors.StorageError{Op: "update_session", Err: err}
		}
		if n == 0 {
			return &lverrors.StorageError{Op: "update_session", Err: sql.ErrNoRows}
		}
		return nil
	})
}

// GetSession fetches a session by ID. Returns nil, nil if no row matches.
func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, status, started_at, completed_at,
		       items_processed, error_count, config, metadata
		FROM sessions WHERE id = ?
	`, id)

	sess, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &lverrors.StorageError{Op: "get_session", Err: err}
	}
	return sess, nil
}

// ListSessions returns every session, most recently started first.
func (s *Store) ListSessions(ctx context.Context) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, started_at, completed_at,
		       items_processed, error_count, config, metadata
		FROM sessions ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, &lverrors.StorageError{Op: "list_sessions", Err: err}
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		sess, err := scanSessionRow(rows)
		if err != nil {
			return nil, &lverrors.StorageError{Op: "list_sessions", Err: err}
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, &lverrors.StorageError{Op: "list_sessions", Err: err}
	}
	return out, nil
}

func scanSessionRow(row scanner) (*types.Session, error) {
	var (
		id             string
		kind           string
		status         string
		startedAt      string
		completedAt    sql.NullString
		itemsProcessed int64
		errorCount     int64
		configJSON     string
		metaJSON       string
	)
	if err := row.Scan(&id, &kind, &status, &startedAt, &completedAt,
		&itemsProcessed, &errorCount, &configJSON, &metaJSON); err != nil {
		return nil, err
	}

	sess := &types.Session{
		ID:             id,
		Kind:           types.SessionKind(kind),
		Status:         types.SessionStatus(status),
		ItemsProcessed: itemsProcessed,
		ErrorCount:     errorCount,
	}
	var err error
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if sess.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	if configJSON != "" {
		if err := json.Unmarshal([]byte(configJSON), &sess.Config); err != nil {
			return nil, err
		}
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
			return nil, err
		}
	}
	return sess, nil
}
