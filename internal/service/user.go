package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensit/opensit/internal/apperror"
	"github.com/opensit/opensit/internal/auth"
	"github.com/opensit/opensit/internal/model"
	"github.com/opensit/opensit/internal/repository"
)

// Username constraints, matching the signup form.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
)

// UserService handles accounts: signup and login, the follow graph, and the
// privacy settings including the tier-change entry mutation.
type UserService struct {
	users     repository.UserRepository
	rels      repository.RelationshipRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	rels repository.RelationshipRepository,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		rels:      rels,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
	}
}

// AuthResult bundles a user with an issued session token so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Signup registers a username/password account. New accounts start on the
// public tier.
func (s *UserService) Signup(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)

	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if strings.ContainsAny(username, " \t") {
		return nil, apperror.ValidationFailed("username", "username must not contain spaces")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Username:       username,
		Email:          strings.TrimSpace(email),
		PasswordHash:   hash,
		PrivacySetting: model.PrivacyPublic,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issueSession(user)
}

// Login authenticates a username/password account. Unknown usernames and
// wrong passwords get the same answer so logins can't probe for accounts.
func (s *UserService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	if user.PasswordHash == "" {
		// OAuth-only account: there is no password to check.
		return nil, apperror.Unauthorized("invalid username or password")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid username or password")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issueSession(user)
}

// LoginOrRegisterGitHub completes a GitHub OAuth callback: upsert on the
// stable GitHub ID, then issue a session. First-time OAuth users get their
// GitHub login as username (suffixed on collision).
func (s *UserService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("github user must not be nil")
	}

	user := &model.User{
		Username:       ghUser.Login,
		Email:          ghUser.Email,
		GitHubID:       ghUser.ID,
		PrivacySetting: model.PrivacyPublic,
	}

	err := s.users.UpsertByGitHubID(ctx, user)
	if apperrIsConflict(err) {
		// The GitHub login is taken by an unrelated local account; retry
		// once with a qualified username.
		user.Username = fmt.Sprintf("%s-gh%d", ghUser.Login, ghUser.ID)
		err = s.users.UpsertByGitHubID(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("upserting github user %d: %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.issueSession(user)
}

func (s *UserService) issueSession(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func apperrIsConflict(err error) bool {
	return errors.Is(err, apperror.ErrConflict)
}

// GetByID returns the account for an internal ID.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetByID(ctx, id)
}

// GetByUsername resolves a journal owner from a /u/{username} path,
// case-insensitively.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	return s.users.GetByUsername(ctx, username)
}

// Follow adds followerID -> followedID to the follow graph.
func (s *UserService) Follow(ctx context.Context, followerID, followedID string) error {
	if followerID == followedID {
		return apperror.ValidationFailed("username", "you cannot follow yourself")
	}

	if err := s.rels.Follow(ctx, followerID, followedID); err != nil {
		return fmt.Errorf("following user: %w", err)
	}

	s.logger.Info("user followed",
		slog.String("followerID", followerID),
		slog.String("followedID", followedID),
	)
	return nil
}

// Unfollow removes followerID -> followedID from the follow graph.
func (s *UserService) Unfollow(ctx context.Context, followerID, followedID string) error {
	return s.rels.Unfollow(ctx, followerID, followedID)
}

// IsFollowing reports whether followerID follows followedID.
func (s *UserService) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	return s.rels.IsFollowing(ctx, followerID, followedID)
}

// Followers returns the accounts following the user.
func (s *UserService) Followers(ctx context.Context, userID string) ([]model.User, error) {
	ids, err := s.rels.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.ListByIDs(ctx, ids)
}

// Following returns the accounts the user follows.
func (s *UserService) Following(ctx context.Context, userID string) ([]model.User, error) {
	ids, err := s.rels.FollowedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.users.ListByIDs(ctx, ids)
}

// SetPrivacyTier changes the owner's account tier. The raw value is
// validated against the closed tier set before anything is touched — an
// unknown value fails with a validation error and no mutation. The tier
// write and the bulk entry-flag update happen in one repository
// transaction.
func (s *UserService) SetPrivacyTier(ctx context.Context, ownerID, rawTier string) error {
	tier, err := model.ParsePrivacyTier(rawTier)
	if err != nil {
		return apperror.ValidationFailed("privacySetting", err.Error())
	}

	if err := s.users.SetPrivacySetting(ctx, ownerID, tier); err != nil {
		return fmt.Errorf("setting privacy tier: %w", err)
	}

	s.logger.Info("privacy tier changed",
		slog.String("userID", ownerID),
		slog.String("tier", string(tier)),
	)
	return nil
}

// ReplaceSelectedUsers swaps the owner's whole selected-users whitelist.
// Blank entries from the form are dropped; the rest replace the previous
// list in a single transaction.
func (s *UserService) ReplaceSelectedUsers(ctx context.Context, ownerID string, ids []string) error {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && id != ownerID {
			cleaned = append(cleaned, id)
		}
	}

	if err := s.users.ReplaceAuthorisedUsers(ctx, ownerID, cleaned); err != nil {
		return fmt.Errorf("replacing selected users: %w", err)
	}

	s.logger.Info("selected users replaced",
		slog.String("userID", ownerID),
		slog.Int("count", len(cleaned)),
	)
	return nil
}

// SelectedUsers returns the owner's current whitelist as full accounts.
func (s *UserService) SelectedUsers(ctx context.Context, ownerID string) ([]model.User, error) {
	ids, err := s.users.ListAuthorisedUserIDs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.users.ListByIDs(ctx, ids)
}
