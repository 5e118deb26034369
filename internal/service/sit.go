package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opensit/opensit/internal/apperror"
	"github.com/opensit/opensit/internal/model"
	"github.com/opensit/opensit/internal/repository"
)

// Validation limits for journal entries.
const (
	MaxTitleLength = 200
	MaxBodyLength  = 100000
	// MaxDuration caps a single timed sit at 24 hours of minutes.
	MaxDuration = 24 * 60
)

// SitService handles creating, reading, editing and deleting journal
// entries, including the per-entry visibility check and the best-effort view
// counter.
type SitService struct {
	sits       repository.SitRepository
	users      repository.UserRepository
	visibility *Visibility
	logger     *slog.Logger
}

func NewSitService(sits repository.SitRepository, users repository.UserRepository, visibility *Visibility, logger *slog.Logger) *SitService {
	return &SitService{
		sits:       sits,
		users:      users,
		visibility: visibility,
		logger:     logger,
	}
}

// CreateSitInput carries the fields a user submits for a new entry.
// CustomDate, when set, backdates the entry to a specific occurrence time
// (e.g. logging last night's session the morning after).
type CreateSitInput struct {
	Type       model.SitType
	Duration   int
	Title      string
	Body       string
	Private    bool
	CustomDate *time.Time
}

// Create validates and stores a new entry for ownerID.
//
// Type gates which field is required: a timed sit needs a positive duration,
// a diary entry or article needs a title. An empty body is fine — a quick
// duration log with no narrative is a valid stub.
//
// If the owner's account tier is currently 'private', the entry is born with
// its private flag set, so the bulk flag state stays consistent without
// waiting for the next tier change.
func (s *SitService) Create(ctx context.Context, ownerID string, in CreateSitInput) (*model.Sit, error) {
	sit, err := s.buildSit(in)
	if err != nil {
		return nil, err
	}
	sit.UserID = ownerID

	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.PrivateJournal() {
		sit.Private = true
	}

	if in.CustomDate != nil {
		sit.CreatedAt = *in.CustomDate
	}

	if err := s.sits.Create(ctx, sit); err != nil {
		s.logger.Error("failed to create sit",
			slog.String("userID", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating sit: %w", err)
	}

	s.logger.Info("sit created",
		slog.String("id", sit.ID),
		slog.String("userID", ownerID),
		slog.Int("type", int(sit.Type)),
	)

	return sit, nil
}

// buildSit applies the type-gated validation shared by Create and Update.
func (s *SitService) buildSit(in CreateSitInput) (*model.Sit, error) {
	if !in.Type.Valid() {
		return nil, apperror.ValidationFailed("type", "unknown entry type")
	}
	if in.Duration < 0 {
		return nil, apperror.ValidationFailed("duration", "duration must be positive")
	}
	if in.Duration > MaxDuration {
		return nil, apperror.ValidationFailed("duration",
			fmt.Sprintf("duration must be %d minutes or less", MaxDuration))
	}
	if len(in.Body) > MaxBodyLength {
		return nil, apperror.ValidationFailed("body",
			fmt.Sprintf("body must be %d characters or less", MaxBodyLength))
	}

	title := strings.TrimSpace(in.Title)
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}

	switch in.Type {
	case model.TypeTimedSit:
		if in.Duration == 0 {
			return nil, apperror.ValidationFailed("duration", "a timed sit requires a duration")
		}
	default:
		if title == "" {
			return nil, apperror.ValidationFailed("title", "a diary entry or article requires a title")
		}
	}

	return &model.Sit{
		Type:     in.Type,
		Duration: in.Duration,
		Title:    title,
		Body:     in.Body,
		Private:  in.Private,
	}, nil
}

// Get returns a single entry after the per-entry visibility check, bumping
// the view counter for external reads. viewerID is "" for anonymous.
func (s *SitService) Get(ctx context.Context, id, viewerID string) (*model.Sit, error) {
	sit, err := s.sits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, sit.UserID)
	if err != nil {
		return nil, err
	}

	ok, err := s.visibility.CanViewSit(ctx, sit, owner, viewerID)
	if err != nil {
		return nil, fmt.Errorf("checking sit visibility: %w", err)
	}
	if !ok {
		return nil, apperror.Forbidden("this entry is private")
	}

	// Owners reading their own entries don't count as views. The counter is
	// best-effort: a failed increment is logged, never surfaced.
	if viewerID != sit.UserID {
		if err := s.sits.IncrementViews(ctx, id); err != nil {
			s.logger.Warn("failed to increment views",
				slog.String("sitID", id),
				slog.String("error", err.Error()),
			)
		} else {
			sit.Views++
		}
	}

	return sit, nil
}

// Update edits an entry. Only the owner may edit; the same type-gated
// validation as Create applies.
func (s *SitService) Update(ctx context.Context, id, ownerID string, in CreateSitInput) (*model.Sit, error) {
	existing, err := s.sits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != ownerID {
		return nil, apperror.Forbidden("only the owner can edit an entry")
	}

	updated, err := s.buildSit(in)
	if err != nil {
		return nil, err
	}

	existing.Type = updated.Type
	existing.Duration = updated.Duration
	existing.Title = updated.Title
	existing.Body = updated.Body
	existing.Private = updated.Private
	if in.CustomDate != nil {
		existing.CreatedAt = *in.CustomDate
	}

	if err := s.sits.Update(ctx, existing); err != nil {
		s.logger.Error("failed to update sit",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating sit: %w", err)
	}

	s.logger.Info("sit updated", slog.String("id", id))
	return existing, nil
}

// Delete removes an entry. Only the owner may delete.
func (s *SitService) Delete(ctx context.Context, id, ownerID string) error {
	existing, err := s.sits.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.UserID != ownerID {
		return apperror.Forbidden("only the owner can delete an entry")
	}

	if err := s.sits.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("sit deleted", slog.String("id", id))
	return nil
}

// Next returns the owner's next non-stub entry after this one, as visible
// to viewerID, or nil at the boundary.
func (s *SitService) Next(ctx context.Context, sit *model.Sit, viewerID string) (*model.Sit, error) {
	return s.sits.NextWithBody(ctx, sit.UserID, navScope(sit, viewerID), sit.CreatedAt)
}

// Prev returns the owner's previous non-stub entry before this one, as
// visible to viewerID, or nil at the boundary.
func (s *SitService) Prev(ctx context.Context, sit *model.Sit, viewerID string) (*model.Sit, error) {
	return s.sits.PrevWithBody(ctx, sit.UserID, navScope(sit, viewerID), sit.CreatedAt)
}

func navScope(sit *model.Sit, viewerID string) model.Scope {
	if viewerID != "" && viewerID == sit.UserID {
		return model.OwnerView
	}
	return model.ExternalView
}
