package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/opensit/opensit/internal/apperror"
	"github.com/opensit/opensit/internal/auth"
	"github.com/opensit/opensit/internal/model"
)

// The service tests run against in-memory fakes rather than a mock framework:
// the fakes are small, their behaviour is visible in one place, and each has
// an injectable error field to simulate store failures.

type fakeSitRepo struct {
	sits   map[string]*model.Sit
	nextID int

	createErr    error
	listErr      error
	incrementErr error
}

func newFakeSitRepo() *fakeSitRepo {
	return &fakeSitRepo{sits: make(map[string]*model.Sit), nextID: 1}
}

// add seeds an entry directly, bypassing Create's timestamp defaulting.
func (f *fakeSitRepo) add(s model.Sit) *model.Sit {
	if s.ID == "" {
		s.ID = fmt.Sprintf("sit-%d", f.nextID)
		f.nextID++
	}
	f.sits[s.ID] = &s
	return &s
}

func (f *fakeSitRepo) inScope(s *model.Sit, scope model.Scope) bool {
	return scope == model.OwnerView || !s.Private
}

// ownedDesc returns the owner's sits in scope, newest first.
func (f *fakeSitRepo) ownedDesc(ownerID string, scope model.Scope) []model.Sit {
	var out []model.Sit
	for _, s := range f.sits {
		if s.UserID == ownerID && f.inScope(s, scope) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeSitRepo) Create(ctx context.Context, sit *model.Sit) error {
	if f.createErr != nil {
		return f.createErr
	}
	sit.ID = fmt.Sprintf("sit-%d", f.nextID)
	f.nextID++
	if sit.CreatedAt.IsZero() {
		sit.CreatedAt = time.Now()
	}
	sit.UpdatedAt = time.Now()
	copied := *sit
	f.sits[sit.ID] = &copied
	return nil
}

func (f *fakeSitRepo) GetByID(ctx context.Context, id string) (*model.Sit, error) {
	s, ok := f.sits[id]
	if !ok {
		return nil, apperror.NotFound("sit", id)
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSitRepo) Update(ctx context.Context, sit *model.Sit) error {
	if _, ok := f.sits[sit.ID]; !ok {
		return apperror.NotFound("sit", sit.ID)
	}
	sit.UpdatedAt = time.Now()
	copied := *sit
	f.sits[sit.ID] = &copied
	return nil
}

func (f *fakeSitRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.sits[id]; !ok {
		return apperror.NotFound("sit", id)
	}
	delete(f.sits, id)
	return nil
}

func (f *fakeSitRepo) IncrementViews(ctx context.Context, id string) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	if s, ok := f.sits[id]; ok {
		s.Views++
	}
	return nil
}

func (f *fakeSitRepo) ListByRange(ctx context.Context, ownerID string, scope model.Scope, start, end time.Time) ([]model.Sit, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Sit
	for _, s := range f.ownedDesc(ownerID, scope) {
		if !s.CreatedAt.Before(start) && s.CreatedAt.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSitRepo) First(ctx context.Context, ownerID string, scope model.Scope) (*model.Sit, error) {
	owned := f.ownedDesc(ownerID, scope)
	if len(owned) == 0 {
		return nil, nil
	}
	first := owned[len(owned)-1]
	return &first, nil
}

func (f *fakeSitRepo) Latest(ctx context.Context, ownerID string, scope model.Scope) (*model.Sit, error) {
	owned := f.ownedDesc(ownerID, scope)
	if len(owned) == 0 {
		return nil, nil
	}
	latest := owned[0]
	return &latest, nil
}

func (f *fakeSitRepo) ListDatesDesc(ctx context.Context, ownerID string, scope model.Scope) ([]time.Time, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var dates []time.Time
	for _, s := range f.ownedDesc(ownerID, scope) {
		dates = append(dates, s.CreatedAt)
	}
	return dates, nil
}

func (f *fakeSitRepo) NextWithBody(ctx context.Context, ownerID string, scope model.Scope, after time.Time) (*model.Sit, error) {
	owned := f.ownedDesc(ownerID, scope)
	// owned is newest first; the next entry is the oldest one after `after`.
	for i := len(owned) - 1; i >= 0; i-- {
		if owned[i].CreatedAt.After(after) && !owned[i].Stub() {
			next := owned[i]
			return &next, nil
		}
	}
	return nil, nil
}

func (f *fakeSitRepo) PrevWithBody(ctx context.Context, ownerID string, scope model.Scope, before time.Time) (*model.Sit, error) {
	for _, s := range f.ownedDesc(ownerID, scope) {
		if s.CreatedAt.Before(before) && !s.Stub() {
			prev := s
			return &prev, nil
		}
	}
	return nil, nil
}

type fakeUserRepo struct {
	users      map[string]*model.User
	authorised map[string][]string // ownerID -> viewer IDs
	nextID     int

	createErr  error
	getErr     error
	setTierErr error

	// usernames already taken by unrelated accounts; UpsertByGitHubID
	// conflicts on these to exercise the retry path.
	takenUsernames map[string]bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:          make(map[string]*model.User),
		authorised:     make(map[string][]string),
		takenUsernames: make(map[string]bool),
	}
}

func (f *fakeUserRepo) add(u model.User) *model.User {
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("user-%d", f.nextID)
	}
	f.users[u.ID] = &u
	return &u
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) UpsertByGitHubID(ctx context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.GitHubID == user.GitHubID {
			u.Email = user.Email
			*user = *u
			return nil
		}
	}
	if f.takenUsernames[user.Username] {
		return apperror.Conflict("user", user.Username)
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var out []model.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) SetPrivacySetting(ctx context.Context, userID string, tier model.PrivacyTier) error {
	if f.setTierErr != nil {
		return f.setTierErr
	}
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	u.PrivacySetting = tier
	return nil
}

func (f *fakeUserRepo) ReplaceAuthorisedUsers(ctx context.Context, ownerID string, authorisedIDs []string) error {
	f.authorised[ownerID] = append([]string(nil), authorisedIDs...)
	return nil
}

func (f *fakeUserRepo) ListAuthorisedUserIDs(ctx context.Context, ownerID string) ([]string, error) {
	return f.authorised[ownerID], nil
}

func (f *fakeUserRepo) IsAuthorised(ctx context.Context, ownerID, viewerID string) (bool, error) {
	for _, id := range f.authorised[ownerID] {
		if id == viewerID {
			return true, nil
		}
	}
	return false, nil
}

type fakeRelRepo struct {
	// edges maps followerID -> set of followed IDs.
	edges map[string]map[string]bool
}

func newFakeRelRepo() *fakeRelRepo {
	return &fakeRelRepo{edges: make(map[string]map[string]bool)}
}

func (f *fakeRelRepo) Follow(ctx context.Context, followerID, followedID string) error {
	if f.edges[followerID] == nil {
		f.edges[followerID] = make(map[string]bool)
	}
	f.edges[followerID][followedID] = true
	return nil
}

func (f *fakeRelRepo) Unfollow(ctx context.Context, followerID, followedID string) error {
	if !f.edges[followerID][followedID] {
		return apperror.NotFound("relationship", followedID)
	}
	delete(f.edges[followerID], followedID)
	return nil
}

func (f *fakeRelRepo) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	return f.edges[followerID][followedID], nil
}

func (f *fakeRelRepo) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for follower, followed := range f.edges {
		if followed[userID] {
			ids = append(ids, follower)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeRelRepo) FollowedIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for id := range f.edges[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestJournalService pins "now" so streak and current-month tests are
// deterministic. All fixtures use UTC.
func newTestJournalService(sits *fakeSitRepo, users *fakeUserRepo, rels *fakeRelRepo, now time.Time) *JournalService {
	svc := NewJournalService(sits, NewVisibility(users, rels), time.UTC, testLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func newTestUserService(t *testing.T, users *fakeUserRepo, rels *fakeRelRepo) *UserService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewUserService(users, rels, auth.NewPasswordServiceForTest(4), tokens, testLogger())
}

// at builds a UTC timestamp fixture.
func at(year int, month time.Month, dom, hour int) time.Time {
	return time.Date(year, month, dom, hour, 0, 0, 0, time.UTC)
}
