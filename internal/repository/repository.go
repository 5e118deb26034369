// Package repository declares the persistence interfaces the service layer
// depends on. The sqlite subpackage provides the real implementation; tests
// substitute in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/opensit/opensit/internal/model"
)

// SitRepository stores journal entries.
//
// Every read that can touch another user's journal takes an explicit
// model.Scope: ExternalView filters out private entries at the query level,
// OwnerView does not. There is no implicit default and no hidden bypass.
type SitRepository interface {
	// Create inserts a sit. A non-zero sit.CreatedAt is preserved (custom
	// date override); otherwise the current time is used.
	Create(ctx context.Context, sit *model.Sit) error
	GetByID(ctx context.Context, id string) (*model.Sit, error)
	Update(ctx context.Context, sit *model.Sit) error
	Delete(ctx context.Context, id string) error

	// IncrementViews bumps the view counter by one. Best-effort: lost
	// updates under concurrent reads are tolerated, the count is advisory.
	IncrementViews(ctx context.Context, id string) error

	// ListByRange returns the owner's sits with created_at in [start, end),
	// newest first. Callers are responsible for day/month boundary math.
	ListByRange(ctx context.Context, ownerID string, scope model.Scope, start, end time.Time) ([]model.Sit, error)

	// First and Latest return the oldest/newest sit, or (nil, nil) when the
	// owner has no entries in scope. Callers must check for nil before any
	// date arithmetic.
	First(ctx context.Context, ownerID string, scope model.Scope) (*model.Sit, error)
	Latest(ctx context.Context, ownerID string, scope model.Scope) (*model.Sit, error)

	// ListDatesDesc returns only the created_at timestamps of the owner's
	// sits, newest first. One query feeds all calendar bucketing: streaks,
	// the sparse month index, days-active counts.
	ListDatesDesc(ctx context.Context, ownerID string, scope model.Scope) ([]time.Time, error)

	// NextWithBody and PrevWithBody navigate the owner's non-stub entries
	// around the given timestamp. (nil, nil) at the boundary.
	NextWithBody(ctx context.Context, ownerID string, scope model.Scope, after time.Time) (*model.Sit, error)
	PrevWithBody(ctx context.Context, ownerID string, scope model.Scope, before time.Time) (*model.Sit, error)
}

// UserRepository stores accounts, their privacy settings, and the
// selected-users whitelists.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByUsername looks the user up case-insensitively.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpsertByGitHubID inserts on first OAuth login, updates profile fields
	// on subsequent logins. Keyed on the stable GitHub numeric ID.
	UpsertByGitHubID(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)

	// SetPrivacySetting changes the account tier and reconciles entry flags
	// in a single transaction:
	//   private -> anything else: clear private on every sit
	//   anything else -> private: set private on every sit
	//   between non-private tiers: sits untouched
	// A crash or concurrent read must never observe the tier and the flags
	// out of sync.
	SetPrivacySetting(ctx context.Context, userID string, tier model.PrivacyTier) error

	// ReplaceAuthorisedUsers swaps the owner's whole selected-users
	// whitelist in one transaction (full replace, not a diff).
	ReplaceAuthorisedUsers(ctx context.Context, ownerID string, authorisedIDs []string) error
	ListAuthorisedUserIDs(ctx context.Context, ownerID string) ([]string, error)
	IsAuthorised(ctx context.Context, ownerID, viewerID string) (bool, error)
}

// RelationshipRepository stores directed follow edges.
type RelationshipRepository interface {
	Follow(ctx context.Context, followerID, followedID string) error
	Unfollow(ctx context.Context, followerID, followedID string) error
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	FollowedIDs(ctx context.Context, userID string) ([]string, error)
}
