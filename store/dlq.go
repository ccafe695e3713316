package store

import (
	"context"
	"database/sql"

	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/types"
)

// DLQAdd records a failed restoration item. Re-adding the same
// (session_id, content_id) pair bumps retry_count instead of duplicating
// the row.
func (s *Store) DLQAdd(ctx context.Context, e *types.DLQEntry) error {
	return s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO dlq (
				session_id, content_type, content_id, content_data,
				error_type, error_message, retry_count, failed_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, content_id) DO UPDATE SET
				error_type = excluded.error_type,
				error_message = excluded.error_message,
				retry_count = dlq.retry_count + 1,
				failed_at = excluded.failed_at
		`,
			e.SessionID, int(e.ContentType), e.ContentID, e.ContentData,
			e.ErrorType, e.ErrorMessage, e.RetryCount, formatTime(e.FailedAt),
		)
		if err != nil {
			return &lverrors.StorageError{Op: "dlq_add", Err: err}
		}
		return nil
	})
}

// DLQRemove deletes an entry once its item has been successfully retried.
func (s *Store) DLQRemove(ctx context.Context, sessionID, contentID string) error {
	return s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			"DELETE FROM dlq WHERE session_id = ? AND content_id = ?",
			sessionID, contentID,
		)
		if err != nil {
			return &lverrors.StorageError{Op: "dlq_remove", Err: err}
		}
		return nil
	})
}

// DLQGet fetches a single entry by its row ID, for "dlq show". Returns
// nil, nil if no row matches.
func (s *Store) DLQGet(ctx context.Context, id int64) (*types.DLQEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, content_type, content_id, content_data,
		       error_type, error_message, retry_count, failed_at
		FROM dlq WHERE id = ?
	`, id)

	var (
		e              types.DLQEntry
		contentTypeInt int
		failedAt       string
	)
	err := row.Scan(&e.ID, &e.SessionID, &contentTypeInt, &e.ContentID,
		&e.ContentData, &e.ErrorType, &e.ErrorMessage, &e.RetryCount, &failedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &lverrors.StorageError{Op: "dlq_get", Err: err}
	}
	e.ContentType = types.ContentType(contentTypeInt)
	if e.FailedAt, err = parseTime(failedAt); err != nil {
		return nil, &lverrors.StorageError{Op: "dlq_get", Err: err}
	}
	return &e, nil
}

// DLQClear deletes every entry matching filter, for "dlq clear", and
// returns the number of rows removed.
func (s *Store) DLQClear(ctx context.Context, filter types.DLQFilter) (int, error) {
	q := "DELETE FROM dlq WHERE 1=1"
	var args []any
	if filter.SessionID != "" {
		q += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.ContentType != nil {
		q += " AND content_type = ?"
		args = append(args, int(*filter.ContentType))
	}
	if filter.ErrorType != "" {
		q += " AND error_type = ?"
		args = append(args, filter.ErrorType)
	}

	var n int64
	err := s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, q, args...)
		if err != nil {
			return &lverrors.StorageError{Op: "dlq_clear", Err: err}
		}
		n, err = res.RowsAffected()
		if err != nil {
			return &lverrors.StorageError{Op: "dlq_clear", Err: err}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// DLQList returns entries matching filter, newest failure first.
func (s *Store) DLQList(ctx context.Context, filter types.DLQFilter) ([]*types.DLQEntry, error) {
	q := `
		SELECT id, session_id, content_type, content_id, content_data,
		       error_type, error_message, retry_count, failed_at
		FROM dlq
		WHERE 1=1
	`
	var args []any
	if filter.SessionID != "" {
		q += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.ContentType != nil {
		q += " AND content_type = ?"
		args = append(args, int(*filter.ContentType))
	}
	if filter.ErrorType != "" {
		q += " AND error_type = ?"
		args = append(args, filter.ErrorType)
	}
	q += " ORDER BY failed_at DESC"
	if filter.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &lverrors.StorageError{Op: "dlq_list", Err: err}
	}
	defer rows.Close()

	var out []*types.DLQEntry
	for rows.Next() {
		var (
			e              types.DLQEntry
			contentTypeInt int
			failedAt       string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &contentTypeInt, &e.ContentID,
			&e.ContentData, &e.ErrorType, &e.ErrorMessage, &e.RetryCount, &failedAt); err != nil {
			return nil, &lverrors.StorageError{Op: "dlq_list", Err: err}
		}
		e.ContentType = types.ContentType(contentTypeInt)
		if e.FailedAt, err = parseTime(failedAt); err != nil {
			return nil, &lverrors.StorageError{Op: "dlq_list", Err: err}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, &lverrors.StorageError{Op: "dlq_list", Err: err}
	}
	return out, nil
}
