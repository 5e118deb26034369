package model

import "fmt"

// PrivacyTier is a user's account-level default visibility setting.
//
// The tier is a closed set: every piece of code that dispatches on it must
// handle all four values and fail closed (treat as not viewable) on anything
// else. Adding a new tier means updating the visibility resolver — the
// exhaustive switch there is the single place the tiers are interpreted.
type PrivacyTier string

const (
	// PrivacyPublic — anyone, including anonymous visitors, can view.
	PrivacyPublic PrivacyTier = "public"
	// PrivacyFollowing — visible only to accounts the owner follows.
	PrivacyFollowing PrivacyTier = "following"
	// PrivacySelectedUsers — visible only to explicitly whitelisted accounts.
	PrivacySelectedUsers PrivacyTier = "selected_users"
	// PrivacyPrivate — visible to the owner alone.
	PrivacyPrivate PrivacyTier = "private"
)

// Valid reports whether t is one of the four known tiers.
func (t PrivacyTier) Valid() bool {
	switch t {
	case PrivacyPublic, PrivacyFollowing, PrivacySelectedUsers, PrivacyPrivate:
		return true
	}
	return false
}

// ParsePrivacyTier converts a raw string (e.g. from a settings form) into a
// PrivacyTier, rejecting anything outside the closed set.
func ParsePrivacyTier(s string) (PrivacyTier, error) {
	t := PrivacyTier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown privacy setting %q", s)
	}
	return t, nil
}

// Scope selects which of an owner's sits a query may touch.
//
// Historically this was an implicit default filter (private rows excluded)
// with an "unscoped" escape hatch for the owner's own view. That made it too
// easy to either leak private entries or hide data from their owner, so the
// scope is now an explicit parameter on every sit query.
type Scope int

const (
	// ExternalView excludes sits flagged private. Used whenever the viewer
	// is anyone other than the owner, including anonymous visitors.
	ExternalView Scope = iota
	// OwnerView returns everything the owner has written, private included.
	OwnerView
)
