package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opensit/opensit/internal/apperror"
	"github.com/opensit/opensit/internal/repository"
)

// RelationshipStore persists the directed follow graph on the shared pool.
type RelationshipStore struct {
	conn *sql.DB
}

// compile-time check that *RelationshipStore implements repository.RelationshipRepository
var _ repository.RelationshipRepository = (*RelationshipStore)(nil)

// Follow records a directed follower -> followed edge. Following someone
// twice is a no-op, not an error.
func (s *RelationshipStore) Follow(ctx context.Context, followerID, followedID string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO relationships (follower_id, followed_id) VALUES (?, ?)`,
		followerID, followedID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating relationship: %w", err)
	}
	return nil
}

func (s *RelationshipStore) Unfollow(ctx context.Context, followerID, followedID string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM relationships WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting relationship: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("relationship", followedID)
	}

	return nil
}

func (s *RelationshipStore) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM relationships WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking relationship: %w", err)
	}
	return count > 0, nil
}

// FollowerIDs returns the ids of accounts following userID.
func (s *RelationshipStore) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	return s.relationshipIDs(ctx,
		`SELECT follower_id FROM relationships WHERE followed_id = ? ORDER BY created_at DESC`,
		userID)
}

// FollowedIDs returns the ids of accounts userID follows.
func (s *RelationshipStore) FollowedIDs(ctx context.Context, userID string) ([]string, error) {
	return s.relationshipIDs(ctx,
		`SELECT followed_id FROM relationships WHERE follower_id = ? ORDER BY created_at DESC`,
		userID)
}

func (s *RelationshipStore) relationshipIDs(ctx context.Context, query, userID string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing relationships: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning relationship: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating relationships: %w", err)
	}

	return ids, nil
}
