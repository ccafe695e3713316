package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/types"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PutContent inserts or replaces a content row. Callers pass the already
// codec-encoded blob in item.ContentData.
func (s *Store) PutContent(ctx context.Context, item *types.ContentItem) error {
	return s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var ownerID sql.NullInt64
		if item.OwnerID != nil {
			ownerID = sql.NullInt64{Int64: *item.OwnerID, Valid: true}
		}
		var ownerEmail sql.NullString
		if item.OwnerEmail != nil {
			ownerEmail = sql.NullString{String: *item.OwnerEmail, Valid: true}
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO content (
				id, content_type, name, owner_id, owner_email,
				created_at, updated_at, synced_at, deleted_at,
				content_size, content_data
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content_type = excluded.content_type,
				name = excluded.name,
				owner_id = excluded.owner_id,
				owner_email = excluded.owner_email,
				updated_at = excluded.updated_at,
				synced_at = excluded.synced_at,
				deleted_at = excluded.deleted_at,
				content_size = excluded.content_size,
				content_data = excluded.content_data
		`,
			item.ID, int(item.ContentType), item.Name, ownerID, ownerEmail,
			formatTime(item.CreatedAt), formatTime(item.UpdatedAt), formatTime(item.SyncedAt),
			formatTimePtr(item.DeletedAt), item.ContentSize, item.ContentData,
		)
		if err != nil {
			return &lverrors.StorageError{Op: "put_content", Err: err}
		}
		return nil
	})
}

// GetContent fetches a single item by its composite ID ("{type}::{id}").
// Returns nil, nil if no row matches.
func (s *Store) GetContent(ctx context.Context, id string) (*types.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content_type, name, owner_id, owner_email,
		       created_at, updated_at, synced_at, deleted_at,
		       content_size, content_data
		FROM content WHERE id = ?
	`, id)
	item, err := scanContentRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &lverrors.StorageError{Op: "get_content", Err: err}
	}
	return item, nil
}

// ListContentOptions filters ListContent. Zero values mean "no filter" for
// ContentType/IncludeDeleted and "no limit" for Limit. IncludeContentData
// is false by default: ListContent is metadata-only unless the caller
// explicitly asks for the blob, so a diff-by-id scan doesn't stream every
// active item's content_data off disk.
type ListContentOptions struct {
	ContentType        types.ContentType
	HasContentType     bool
	IncludeDeleted     bool
	IncludeContentData bool
	Limit              int
	Offset             int
}

// ListContent returns items ordered by updated_at descending, optionally
// filtered by content type and deletion state. content_data is loaded only
// when opts.IncludeContentData is set.
func (s *Store) ListContent(ctx context.Context, opts ListContentOptions) ([]*types.ContentItem, error) {
	cols := "id, content_type, name, owner_id, owner_email, created_at, updated_at, synced_at, deleted_at, content_size"
	if opts.IncludeContentData {
		cols += ", content_data"
	}
	q := "SELECT " + cols + " FROM content WHERE 1=1"

	var args []any
	if opts.HasContentType {
		q += " AND content_type = ?"
		args = append(args, int(opts.ContentType))
	}
	if !opts.IncludeDeleted {
		q += " AND deleted_at IS NULL"
	}
	q += " ORDER BY updated_at DESC"
	if opts.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &lverrors.StorageError{Op: "list_content", Err: err}
	}
	defer rows.Close()

	var out []*types.ContentItem
	for rows.Next() {
		item, err := scanContentRowOpts(rows, opts.IncludeContentData)
		if err != nil {
			return nil, &lverrors.StorageError{Op: "list_content", Err: err}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &lverrors.StorageError{Op: "list_content", Err: err}
	}
	return out, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanContentRow(row scanner) (*types.ContentItem, error) {
	return scanContentRowOpts(row, true)
}

// scanContentRowOpts scans a content row. includeContentData must match
// whether the query actually selected content_data — GetContent always
// does; ListContent does only when the caller opted in.
func scanContentRowOpts(row scanner, includeContentData bool) (*types.ContentItem, error) {
	var (
		item           types.ContentItem
		contentTypeInt int
		ownerID        sql.NullInt64
		ownerEmail     sql.NullString
		createdAt      string
		updatedAt      string
		syncedAt       string
		deletedAt      sql.NullString
	)
	dest := []any{
		&item.ID, &contentTypeInt, &item.Name, &ownerID, &ownerEmail,
		&createdAt, &updatedAt, &syncedAt, &deletedAt,
		&item.ContentSize,
	}
	if includeContentData {
		dest = append(dest, &item.ContentData)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	item.ContentType = types.ContentType(contentTypeInt)
	if ownerID.Valid {
		v := ownerID.Int64
		item.OwnerID = &v
	}
	if ownerEmail.Valid {
		v := ownerEmail.String
		item.OwnerEmail = &v
	}

	var err error
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if item.SyncedAt, err = parseTime(syncedAt); err != nil {
		return nil, err
	}
	if item.DeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

// SoftDelete marks an item deleted as of now without removing its row,
// used when incremental extraction detects a content item no longer
// present at the source.
func (s *Store) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	return s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			"UPDATE content SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL",
			formatTime(deletedAt), id,
		)
		if err != nil {
			return &lverrors.StorageError{Op: "soft_delete", Err: err}
		}
		return nil
	})
}

// HardDeleteOlderThan permanently removes rows soft-deleted before cutoff,
// returning the number of rows removed.
func (s *Store) HardDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"DELETE FROM content WHERE deleted_at IS NOT NULL AND deleted_at < ?",
			formatTime(cutoff),
		)
		if err != nil {
			return &lverrors.StorageError{Op: "hard_delete", Err: err}
		}
		n, err = res.RowsAffected()
		if err != nil {
			return &lverrors.StorageError{Op: "hard_delete", Err: err}
		}
		return nil
	})
	return n, err
}
