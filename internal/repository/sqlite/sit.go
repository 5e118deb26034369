package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/opensit/opensit/internal/apperror"
	"github.com/opensit/opensit/internal/model"
	"github.com/opensit/opensit/internal/repository"
)

// SitStore persists sits on the shared pool.
type SitStore struct {
	conn *sql.DB
}

// compile-time check that *SitStore implements repository.SitRepository
var _ repository.SitRepository = (*SitStore)(nil)

const sitColumns = `id, user_id, s_type, duration, title, body, private, views, created_at, updated_at`

// scopeFilter returns the SQL fragment enforcing the scope. ExternalView
// excludes private rows at the query level so they can never be returned,
// counted or summed for anyone but the owner.
func scopeFilter(scope model.Scope) string {
	if scope == model.OwnerView {
		return ""
	}
	return " AND private = 0"
}

// Create inserts a sit. sit.ID and timestamps are filled in-place; a
// caller-supplied CreatedAt (custom date override) is kept as-is.
func (s *SitStore) Create(ctx context.Context, sit *model.Sit) error {
	sit.ID = xid.New().String()

	now := time.Now()
	if sit.CreatedAt.IsZero() {
		sit.CreatedAt = now
	}
	sit.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sits (id, user_id, s_type, duration, title, body, private, views, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		sit.ID,
		sit.UserID,
		int(sit.Type),
		sit.Duration,
		sit.Title,
		sit.Body,
		sit.Private,
		sit.CreatedAt,
		sit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating sit: %w", err)
	}

	return nil
}

func (s *SitStore) GetByID(ctx context.Context, id string) (*model.Sit, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sitColumns+` FROM sits WHERE id = ?`, id)

	sit, err := scanSit(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("sit", id)
		}
		return nil, fmt.Errorf("sqlite: getting sit %s: %w", id, err)
	}

	return sit, nil
}

// Update writes the mutable fields. ID, UserID, Views and CreatedAt are not
// touched here — CreatedAt changes go through the edit flow explicitly.
func (s *SitStore) Update(ctx context.Context, sit *model.Sit) error {
	sit.UpdatedAt = time.Now()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE sits
		 SET s_type = ?, duration = ?, title = ?, body = ?, private = ?, created_at = ?, updated_at = ?
		 WHERE id = ?`,
		int(sit.Type),
		sit.Duration,
		sit.Title,
		sit.Body,
		sit.Private,
		sit.CreatedAt,
		sit.UpdatedAt,
		sit.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating sit %s: %w", sit.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("sit", sit.ID)
	}

	return nil
}

func (s *SitStore) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM sits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting sit %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("sit", id)
	}

	return nil
}

// IncrementViews is a single blind UPDATE. Two concurrent viewers can race
// and one increment can be lost; the counter is advisory so that is
// accepted rather than paid for with locking.
func (s *SitStore) IncrementViews(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE sits SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing views for sit %s: %w", id, err)
	}
	return nil
}

// ListByRange returns the owner's sits with created_at in [start, end),
// newest first.
func (s *SitStore) ListByRange(ctx context.Context, ownerID string, scope model.Scope, start, end time.Time) ([]model.Sit, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+sitColumns+` FROM sits
		 WHERE user_id = ? AND created_at >= ? AND created_at < ?`+scopeFilter(scope)+`
		 ORDER BY created_at DESC`,
		ownerID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing sits by range: %w", err)
	}
	defer rows.Close()

	return collectSits(rows)
}

// First returns the owner's oldest sit in scope, or (nil, nil) if they have
// none.
func (s *SitStore) First(ctx context.Context, ownerID string, scope model.Scope) (*model.Sit, error) {
	return s.oneByOrder(ctx, ownerID, scope, "ASC")
}

// Latest returns the owner's newest sit in scope, or (nil, nil) if they
// have none.
func (s *SitStore) Latest(ctx context.Context, ownerID string, scope model.Scope) (*model.Sit, error) {
	return s.oneByOrder(ctx, ownerID, scope, "DESC")
}

func (s *SitStore) oneByOrder(ctx context.Context, ownerID string, scope model.Scope, order string) (*model.Sit, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sitColumns+` FROM sits
		 WHERE user_id = ?`+scopeFilter(scope)+`
		 ORDER BY created_at `+order+` LIMIT 1`,
		ownerID,
	)

	sit, err := scanSit(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting boundary sit: %w", err)
	}

	return sit, nil
}

// ListDatesDesc plucks only the timestamps, newest first. The calendar
// bucketing (streaks, month index, days-active) happens in the service
// layer on top of this single query.
func (s *SitStore) ListDatesDesc(ctx context.Context, ownerID string, scope model.Scope) ([]time.Time, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT created_at FROM sits
		 WHERE user_id = ?`+scopeFilter(scope)+`
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing sit dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("sqlite: scanning sit date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating sit dates: %w", err)
	}

	return dates, nil
}

// NextWithBody returns the owner's chronologically next non-stub sit after
// the given timestamp, or (nil, nil) at the boundary.
func (s *SitStore) NextWithBody(ctx context.Context, ownerID string, scope model.Scope, after time.Time) (*model.Sit, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sitColumns+` FROM sits
		 WHERE user_id = ? AND body != '' AND created_at > ?`+scopeFilter(scope)+`
		 ORDER BY created_at ASC LIMIT 1`,
		ownerID, after,
	)

	sit, err := scanSit(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting next sit: %w", err)
	}

	return sit, nil
}

// PrevWithBody returns the owner's chronologically previous non-stub sit
// before the given timestamp, or (nil, nil) at the boundary.
func (s *SitStore) PrevWithBody(ctx context.Context, ownerID string, scope model.Scope, before time.Time) (*model.Sit, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sitColumns+` FROM sits
		 WHERE user_id = ? AND body != '' AND created_at < ?`+scopeFilter(scope)+`
		 ORDER BY created_at DESC LIMIT 1`,
		ownerID, before,
	)

	sit, err := scanSit(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting previous sit: %w", err)
	}

	return sit, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSit(s scanner) (*model.Sit, error) {
	var sit model.Sit
	var sType int
	err := s.Scan(
		&sit.ID,
		&sit.UserID,
		&sType,
		&sit.Duration,
		&sit.Title,
		&sit.Body,
		&sit.Private,
		&sit.Views,
		&sit.CreatedAt,
		&sit.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sit.Type = model.SitType(sType)
	return &sit, nil
}

func collectSits(rows *sql.Rows) ([]model.Sit, error) {
	var sits []model.Sit
	for rows.Next() {
		sit, err := scanSit(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning sit row: %w", err)
		}
		sits = append(sits, *sit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating sits: %w", err)
	}
	return sits, nil
}
