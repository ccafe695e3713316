package store

import (
	"context"
	"database/sql"

	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/types"
)

// PutIDMapping records or overwrites a source→destination translation. The
// unique index on (content_type, source_id, destination_instance_url) means
// a repeated restore of the same item just refreshes created_at.
func (s *Store) PutIDMapping(ctx context.Context, m *types.IDMapping) error {
	return s.withWriteTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO id_mappings (
				content_type, source_id, destination_id,
				source_instance_url, destination_instance_url, created_at
			) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(content_type, source_id, destination_instance_url) DO UPDATE SET
				destination_id = excluded.destination_id,
				source_instance_url = excluded.source_instance_url,
				created_at = excluded.created_at
		`,
			int(m.ContentType), m.SourceID, m.DestinationID,
			m.SourceInstanceURL, m.DestinationInstanceURL, formatTime(m.CreatedAt),
		)
		if err != nil {
			return &lverrors.StorageError{Op: "put_id_mapping", Err: err}
		}
		return nil
	})
}

// GetDestinationID resolves a source content ID to its destination ID for
// a given destination instance. Returns "", false if no mapping exists,
// which callers translate into an IDMappingError at the point of use.
func (s *Store) GetDestinationID(ctx context.Context, contentType types.ContentType, sourceID, destinationInstanceURL string) (string, bool, error) {
	var destinationID string
	row := s.db.QueryRowContext(ctx, `
		SELECT destination_id FROM id_mappings
		WHERE content_type = ? AND source_id = ? AND destination_instance_url = ?
	`, int(contentType), sourceID, destinationInstanceURL)

	err := row.Scan(&destinationID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &lverrors.StorageError{Op: "get_destination_id", Err: err}
	}
	return destinationID, true, nil
}
