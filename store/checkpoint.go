package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/types"
)

// PutCheckpoint inserts a new checkpoint row when cp.ID is unset, and
// returns its assigned ID. When cp.ID is already set (the caller is
// persisting progress for a checkpoint it previously created, e.g. on
// cancellation or completion), it updates that same row in place instead
// of inserting a sibling — otherwise GetLatestIncompleteCheckpoint would
// keep resolving to the original, stale IN_PROGRESS row forever.
func (s *Store) PutCheckpoint(ctx context.Context, cp *types.Checkpoint) (int64, error) {
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return 0, &lverrors.SerializationError{Err: err}
	}

	id := cp.ID
	err = s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var sessionID sql.NullString
		if cp.SessionID != nil {
			sessionID = sql.NullString{String: *cp.SessionID, Valid: true}
		}

		if cp.ID != 0 {
			_, err := conn.ExecContext(ctx, `
				UPDATE checkpoints
				SET session_id = ?, content_type = ?, state = ?, started_at = ?,
				    completed_at = ?, item_count = ?, error_message = ?
				WHERE id = ?
			`,
				sessionID, int(cp.ContentType), string(stateJSON), formatTime(cp.StartedAt),
				formatTimePtr(cp.CompletedAt), cp.ItemCount, nullableString(cp.ErrorMessage),
				cp.ID,
			)
			if err != nil {
				return &lverrors.StorageError{Op: "put_checkpoint", Err: err}
			}
			return nil
		}

		res, err := conn.ExecContext(ctx, `
			INSERT INTO checkpoints (
				session_id, content_type, state, started_at, completed_at,
				item_count, error_message
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			sessionID, int(cp.ContentType), string(stateJSON), formatTime(cp.StartedAt),
			formatTimePtr(cp.CompletedAt), cp.ItemCount, nullableString(cp.ErrorMessage),
		)
		if err != nil {
			return &lverrors.StorageError{Op: "put_checkpoint", Err: err}
		}
		id, err = res.LastInsertId()
		if err != nil {
			return &lverrors.StorageError{Op: "put_checkpoint", Err: err}
		}
		return nil
	})
	return id, err
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// GetLatestIncompleteCheckpoint returns the most recent checkpoint for
// contentType with no completed_at, used to resume a partially extracted
// content type. Returns nil, nil if none exists.
func (s *Store) GetLatestIncompleteCheckpoint(ctx context.Context, contentType types.ContentType) (*types.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, content_type, state, started_at, completed_at,
		       item_count, error_message
		FROM checkpoints
		WHERE content_type = ? AND completed_at IS NULL
		ORDER BY id DESC
		LIMIT 1
	`, int(contentType))

	cp, err := scanCheckpointRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &lverrors.StorageError{Op: "get_latest_incomplete_checkpoint", Err: err}
	}
	return cp, nil
}

// ListCheckpointsForSession returns every checkpoint recorded under
// sessionID, in insertion order.
func (s *Store) ListCheckpointsForSession(ctx context.Context, sessionID string) ([]*types.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, content_type, state, started_at, completed_at,
		       item_count, error_message
		FROM checkpoints
		WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, &lverrors.StorageError{Op: "list_checkpoints_for_session", Err: err}
	}
	defer rows.Close()

	var out []*types.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpointRow(rows)
		if err != nil {
			return nil, &lverrors.StorageError{Op: "list_checkpoints_for_session", Err: err}
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func scanCheckpointRow(row scanner) (*types.Checkpoint, error) {
	var (
		id             int64
		sessionID      sql.NullString
		contentTypeInt int
		stateJSON      string
		startedAt      string
		completedAt    sql.NullString
		itemCount      int64
		errorMessage   sql.NullString
	)
	if err := row.Scan(&id, &sessionID, &contentTypeInt, &stateJSON, &startedAt,
		&completedAt, &itemCount, &errorMessage); err != nil {
		return nil, err
	}

	cp := &types.Checkpoint{
		ID:          id,
		ContentType: types.ContentType(contentTypeInt),
		ItemCount:   itemCount,
	}
	if sessionID.Valid {
		v := sessionID.String
		cp.SessionID = &v
	}
	if errorMessage.Valid {
		v := errorMessage.String
		cp.ErrorMessage = &v
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return nil, err
	}
	var err error
	if cp.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if cp.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	return cp, nil
}
