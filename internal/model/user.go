// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// Accounts come in two flavours: classic username/email/password signups
// (PasswordHash set, GitHubID zero) and GitHub OAuth signups (GitHubID set,
// PasswordHash empty). Username is unique with case-insensitive lookup —
// /u/Buddha and /u/buddha resolve to the same journal.
//
// PrivacySetting is the account-level default tier. Changing it is not a
// plain field write: moving to or from 'private' bulk-updates the private
// flag on every existing sit, atomically with the tier write.
type User struct {
	ID             string      `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email,omitempty"`
	PasswordHash   string      `json:"-"`
	GitHubID       int64       `json:"-"` // zero for password accounts
	FirstName      string      `json:"firstName,omitempty"`
	LastName       string      `json:"lastName,omitempty"`
	City           string      `json:"city,omitempty"`
	Country        string      `json:"country,omitempty"`
	PrivacySetting PrivacyTier `json:"privacySetting"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// DisplayName falls back through first+last name, first name, username.
func (u *User) DisplayName() string {
	if u.FirstName == "" {
		return u.Username
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Location renders "city, country" from whichever parts are present.
func (u *User) Location() string {
	switch {
	case u.City != "" && u.Country != "":
		return u.City + ", " + u.Country
	case u.City != "":
		return u.City
	default:
		return u.Country
	}
}

// PrivateJournal reports whether the account-level tier is 'private'.
func (u *User) PrivateJournal() bool {
	return u.PrivacySetting == PrivacyPrivate
}

// PublicJournal reports whether the account-level tier is 'public'.
func (u *User) PublicJournal() bool {
	return u.PrivacySetting == PrivacyPublic
}

// Relationship is a directed follow edge: follower → followed.
type Relationship struct {
	FollowerID string    `json:"followerId"`
	FollowedID string    `json:"followedId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuthorisedUser is one row of a selected-users whitelist: the owner has
// granted AuthorisedUserID access under the 'selected_users' tier. The list
// is replaced wholesale when the owner updates their settings.
type AuthorisedUser struct {
	UserID           string `json:"userId"`
	AuthorisedUserID string `json:"authorisedUserId"`
}
