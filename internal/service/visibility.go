// Package service contains the business logic layer: the visibility
// resolver, the journal aggregation engine, the streak computation, and the
// sit/user orchestration around them. Handlers call into this package;
// nothing here knows about HTTP.
package service

import (
	"context"

	"github.com/opensit/opensit/internal/model"
	"github.com/opensit/opensit/internal/repository"
)

// Visibility decides, for any (owner, viewer) pair, whether the viewer may
// see the owner's journal, and for any single sit whether it may be shown.
//
// It is a pure predicate over already-loaded records plus at most one store
// lookup (follow edge or whitelist row); it never mutates anything.
type Visibility struct {
	users repository.UserRepository
	rels  repository.RelationshipRepository
}

func NewVisibility(users repository.UserRepository, rels repository.RelationshipRepository) *Visibility {
	return &Visibility{users: users, rels: rels}
}

// CanViewSit reports whether viewerID may see the given sit. viewerID is ""
// for anonymous visitors. owner must be the sit's owner record.
//
// Precedence, in order:
//  1. the owner always sees their own sit, private flag and tier regardless
//  2. a sit flagged private is hidden from everyone else
//  3. otherwise the owner's account tier decides (CanViewProfile)
func (v *Visibility) CanViewSit(ctx context.Context, sit *model.Sit, owner *model.User, viewerID string) (bool, error) {
	if viewerID != "" && viewerID == sit.UserID {
		return true, nil
	}

	if sit.Private {
		return false, nil
	}

	return v.CanViewProfile(ctx, owner, viewerID)
}

// CanViewProfile reports whether viewerID may see the owner's journal page
// and its aggregates at all. The journal aggregator consults this before
// running any query so a denied viewer gets an explicit "unviewable" result
// rather than an empty journal.
//
// The tier switch is exhaustive over the closed PrivacyTier set; anything
// unknown fails closed.
func (v *Visibility) CanViewProfile(ctx context.Context, owner *model.User, viewerID string) (bool, error) {
	if viewerID != "" && viewerID == owner.ID {
		return true, nil
	}

	switch owner.PrivacySetting {
	case model.PrivacyPublic:
		return true, nil

	case model.PrivacyPrivate:
		return false, nil

	case model.PrivacyFollowing:
		// "Only people I follow": the owner shares with the accounts the
		// owner follows, so the edge checked is owner -> viewer.
		if viewerID == "" {
			return false, nil
		}
		return v.rels.IsFollowing(ctx, owner.ID, viewerID)

	case model.PrivacySelectedUsers:
		if viewerID == "" {
			return false, nil
		}
		return v.users.IsAuthorised(ctx, owner.ID, viewerID)

	default:
		return false, nil
	}
}
