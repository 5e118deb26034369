package service

import (
	"context"
	"errors"
	"testing"

	"github.com/opensit/opensit/internal/apperror"
	"github.com/opensit/opensit/internal/auth"
	"github.com/opensit/opensit/internal/model"
)

func TestSignup(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestUserService(t, users, newFakeRelRepo())
	ctx := context.Background()

	result, err := svc.Signup(ctx, "buddha", "sid@example.com", "bodhi-tree")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Signup() returned an empty session token")
	}
	if result.User.PrivacySetting != model.PrivacyPublic {
		t.Errorf("PrivacySetting = %q, want new accounts to start public", result.User.PrivacySetting)
	}
	if result.User.PasswordHash == "bodhi-tree" {
		t.Error("password stored in the clear")
	}

	// Duplicate username conflicts.
	if _, err = svc.Signup(ctx, "buddha", "", "other"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Signup(duplicate) error = %v, want conflict", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	svc := newTestUserService(t, newFakeUserRepo(), newFakeRelRepo())
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"too short", "ab", "secret"},
		{"too long", "abcdefghijklmnopqrstu", "secret"},
		{"contains spaces", "the buddha", "secret"},
		{"empty password", "buddha", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.username, "", tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Signup() error = %v, want validation error", err)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestUserService(t, users, newFakeRelRepo())
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "buddha", "", "bodhi-tree"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	result, err := svc.Login(ctx, "buddha", "bodhi-tree")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Error("Login() returned an empty session token")
	}

	// Unknown user, wrong password and OAuth-only accounts all get the same
	// unauthorized answer.
	if _, err = svc.Login(ctx, "nobody", "whatever"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login(unknown) error = %v, want unauthorized", err)
	}
	if _, err = svc.Login(ctx, "buddha", "wrong"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login(wrong password) error = %v, want unauthorized", err)
	}

	users.add(model.User{Username: "octocat", GitHubID: 42})
	if _, err = svc.Login(ctx, "octocat", "anything"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login(oauth-only) error = %v, want unauthorized", err)
	}
}

func TestLoginOrRegisterGitHub(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestUserService(t, users, newFakeRelRepo())
	ctx := context.Background()

	result, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat", Email: "cat@github.com"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if result.User.Username != "octocat" {
		t.Errorf("Username = %q, want %q", result.User.Username, "octocat")
	}

	// Second login resolves to the same account.
	again, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 42, Login: "octocat"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() second login error = %v", err)
	}
	if again.User.ID != result.User.ID {
		t.Errorf("second login got ID %q, want %q", again.User.ID, result.User.ID)
	}
}

func TestLoginOrRegisterGitHub_UsernameCollision(t *testing.T) {
	users := newFakeUserRepo()
	users.takenUsernames["octocat"] = true
	svc := newTestUserService(t, users, newFakeRelRepo())

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 42, Login: "octocat"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if result.User.Username != "octocat-gh42" {
		t.Errorf("Username = %q, want the suffixed retry %q", result.User.Username, "octocat-gh42")
	}
}

func TestFollow(t *testing.T) {
	users := newFakeUserRepo()
	rels := newFakeRelRepo()
	svc := newTestUserService(t, users, rels)
	ctx := context.Background()

	a := users.add(model.User{Username: "ananda"})
	b := users.add(model.User{Username: "buddha"})

	if err := svc.Follow(ctx, a.ID, a.ID); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Follow(self) error = %v, want validation error", err)
	}

	if err := svc.Follow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	following, err := svc.IsFollowing(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("IsFollowing() error = %v", err)
	}
	if !following {
		t.Error("IsFollowing() = false after Follow()")
	}

	followers, err := svc.Followers(ctx, b.ID)
	if err != nil {
		t.Fatalf("Followers() error = %v", err)
	}
	if len(followers) != 1 || followers[0].ID != a.ID {
		t.Errorf("Followers() = %+v, want just ananda", followers)
	}

	if err := svc.Unfollow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("Unfollow() error = %v", err)
	}
	if following, _ = svc.IsFollowing(ctx, a.ID, b.ID); following {
		t.Error("IsFollowing() = true after Unfollow()")
	}
}

func TestSetPrivacyTier(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestUserService(t, users, newFakeRelRepo())
	ctx := context.Background()

	owner := users.add(model.User{Username: "buddha", PrivacySetting: model.PrivacyPublic})

	if err := svc.SetPrivacyTier(ctx, owner.ID, "selected_users"); err != nil {
		t.Fatalf("SetPrivacyTier() error = %v", err)
	}
	got, _ := users.GetByID(ctx, owner.ID)
	if got.PrivacySetting != model.PrivacySelectedUsers {
		t.Errorf("PrivacySetting = %q, want %q", got.PrivacySetting, model.PrivacySelectedUsers)
	}

	// An unknown tier is rejected before any mutation.
	if err := svc.SetPrivacyTier(ctx, owner.ID, "friends_of_friends"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("SetPrivacyTier(unknown) error = %v, want validation error", err)
	}
	got, _ = users.GetByID(ctx, owner.ID)
	if got.PrivacySetting != model.PrivacySelectedUsers {
		t.Errorf("PrivacySetting changed to %q by a rejected tier", got.PrivacySetting)
	}
}

func TestReplaceSelectedUsers(t *testing.T) {
	users := newFakeUserRepo()
	svc := newTestUserService(t, users, newFakeRelRepo())
	ctx := context.Background()

	owner := users.add(model.User{Username: "buddha"})
	friend := users.add(model.User{Username: "ananda"})

	// Blank entries and the owner's own ID are dropped.
	err := svc.ReplaceSelectedUsers(ctx, owner.ID, []string{friend.ID, "", "  ", owner.ID})
	if err != nil {
		t.Fatalf("ReplaceSelectedUsers() error = %v", err)
	}

	selected, err := svc.SelectedUsers(ctx, owner.ID)
	if err != nil {
		t.Fatalf("SelectedUsers() error = %v", err)
	}
	if len(selected) != 1 || selected[0].ID != friend.ID {
		t.Errorf("SelectedUsers() = %+v, want just ananda", selected)
	}

	// The replace is wholesale: a new list drops the old one.
	if err = svc.ReplaceSelectedUsers(ctx, owner.ID, nil); err != nil {
		t.Fatalf("ReplaceSelectedUsers(empty) error = %v", err)
	}
	if selected, _ = svc.SelectedUsers(ctx, owner.ID); len(selected) != 0 {
		t.Errorf("SelectedUsers() = %+v after clearing, want none", selected)
	}
}
