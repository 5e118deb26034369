package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/opensit/opensit/internal/apperror"
	"github.com/opensit/opensit/internal/model"
	"github.com/opensit/opensit/internal/repository"
)

// UserStore persists accounts and the selected-users whitelist on the
// shared pool.
type UserStore struct {
	conn *sql.DB
}

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

const userColumns = `id, username, email, password_hash, github_id, first_name, last_name,
	city, country, privacy_setting, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.PrivacySetting == "" {
		user.PrivacySetting = model.PrivacyPublic
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, github_id, first_name, last_name,
		                    city, country, privacy_setting, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.GitHubID,
		user.FirstName,
		user.LastName,
		user.City,
		user.Country,
		string(user.PrivacySetting),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// The COLLATE NOCASE unique index rejects "Buddha" when "buddha"
		// exists; surface that as a conflict, not a 500.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return user, nil
}

// GetByUsername resolves /u/Buddha and /u/buddha to the same account; the
// username column is COLLATE NOCASE so equality is case-insensitive.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)

	user, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}

	return user, nil
}

// UpsertByGitHubID inserts on first OAuth login and refreshes profile fields
// on later logins, keyed on the stable GitHub numeric ID. The internal ID is
// never regenerated for an existing account.
func (s *UserStore) UpsertByGitHubID(ctx context.Context, user *model.User) error {
	var existingID string
	err := s.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID == "" {
		return s.Create(ctx, user)
	}

	user.ID = existingID
	user.UpdatedAt = time.Now()
	_, err = s.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
		user.Email, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	// Re-read so the caller gets the stored username, tier and timestamps.
	stored, err := s.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	*user = *stored

	return nil
}

// Update writes profile fields. Username, privacy_setting and credentials
// have their own dedicated paths and are not touched here.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, first_name = ?, last_name = ?, city = ?, country = ?, updated_at = ?
		 WHERE id = ?`,
		user.Email,
		user.FirstName,
		user.LastName,
		user.City,
		user.Country,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

func (s *UserStore) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`) ORDER BY username`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users by ids: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// SetPrivacySetting changes the account tier and reconciles the per-sit
// private flags in one transaction. The flag direction depends on the tier
// being left, so the current tier is read inside the same transaction:
//
//	private -> other: UPDATE sits SET private = 0
//	other -> private: UPDATE sits SET private = 1
//	other -> other:   sits untouched
//
// Commit-or-rollback as one unit: no reader may ever observe the new tier
// with stale flags or vice versa.
func (s *UserStore) SetPrivacySetting(ctx context.Context, userID string, tier model.PrivacyTier) error {
	if !tier.Valid() {
		return apperror.ValidationFailed("privacySetting",
			fmt.Sprintf("unknown privacy setting %q", tier))
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning privacy transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT privacy_setting FROM users WHERE id = ?`, userID,
	).Scan(&current)
	if err != nil {
		if err == sql.ErrNoRows {
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("sqlite: reading current privacy setting: %w", err)
	}

	switch {
	case model.PrivacyTier(current) == model.PrivacyPrivate && tier != model.PrivacyPrivate:
		if _, err := tx.ExecContext(ctx,
			`UPDATE sits SET private = 0 WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("sqlite: clearing private flags: %w", err)
		}
	case tier == model.PrivacyPrivate:
		if _, err := tx.ExecContext(ctx,
			`UPDATE sits SET private = 1 WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("sqlite: setting private flags: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET privacy_setting = ?, updated_at = ? WHERE id = ?`,
		string(tier), time.Now(), userID); err != nil {
		return fmt.Errorf("sqlite: writing privacy setting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing privacy transaction: %w", err)
	}

	return nil
}

// ReplaceAuthorisedUsers clears and rewrites the owner's whole whitelist in
// one transaction — the settings form submits the full list each time.
func (s *UserStore) ReplaceAuthorisedUsers(ctx context.Context, ownerID string, authorisedIDs []string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning whitelist transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM authorised_users WHERE user_id = ?`, ownerID); err != nil {
		return fmt.Errorf("sqlite: clearing authorised users: %w", err)
	}

	for _, id := range authorisedIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO authorised_users (user_id, authorised_user_id) VALUES (?, ?)`,
			ownerID, id); err != nil {
			return fmt.Errorf("sqlite: inserting authorised user %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing whitelist transaction: %w", err)
	}

	return nil
}

func (s *UserStore) ListAuthorisedUserIDs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT authorised_user_id FROM authorised_users WHERE user_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing authorised users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning authorised user: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating authorised users: %w", err)
	}

	return ids, nil
}

func (s *UserStore) IsAuthorised(ctx context.Context, ownerID, viewerID string) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM authorised_users WHERE user_id = ? AND authorised_user_id = ?`,
		ownerID, viewerID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking authorised user: %w", err)
	}
	return count > 0, nil
}

func scanUser(s scanner) (*model.User, error) {
	var user model.User
	var tier string
	err := s.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.GitHubID,
		&user.FirstName,
		&user.LastName,
		&user.City,
		&user.Country,
		&tier,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.PrivacySetting = model.PrivacyTier(tier)
	return &user, nil
}
