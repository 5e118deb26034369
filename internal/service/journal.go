package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensit/opensit/internal/apperror"
	"github.com/opensit/opensit/internal/model"
	"github.com/opensit/opensit/internal/repository"
)

// JournalService computes calendar-bucketed statistics over a user's sits:
// per-month and per-year listings, the sparse month index with next/previous
// navigation, time totals, days-active counts, and the practice streak.
//
// All date math happens in loc, the application's day boundary. now is
// injectable so streak tests can pin "today".
type JournalService struct {
	sits       repository.SitRepository
	visibility *Visibility
	loc        *time.Location
	now        func() time.Time
	logger     *slog.Logger
}

func NewJournalService(sits repository.SitRepository, visibility *Visibility, loc *time.Location, logger *slog.Logger) *JournalService {
	if loc == nil {
		loc = time.UTC
	}
	return &JournalService{
		sits:       sits,
		visibility: visibility,
		loc:        loc,
		now:        time.Now,
		logger:     logger,
	}
}

// CurrentMonth returns today's year and month in the configured location.
// Handlers default the journal page to it so the page and the aggregates
// agree on what "this month" is near a day or month boundary.
func (s *JournalService) CurrentMonth() (int, time.Month) {
	now := s.now().In(s.loc)
	return now.Year(), now.Month()
}

// Journal is a view of one owner's journal through one viewer's eyes.
// viewerID is "" for anonymous visitors.
type Journal struct {
	svc      *JournalService
	owner    *model.User
	viewerID string
}

// For binds the service to an (owner, viewer) pair.
func (s *JournalService) For(owner *model.User, viewerID string) *Journal {
	return &Journal{svc: s, owner: owner, viewerID: viewerID}
}

// ViewingOwnJournal reports whether the viewer is the owner.
func (j *Journal) ViewingOwnJournal() bool {
	return j.viewerID != "" && j.viewerID == j.owner.ID
}

// scope returns OwnerView for the owner's own journal (private entries
// included) and ExternalView for everyone else.
func (j *Journal) scope() model.Scope {
	if j.ViewingOwnJournal() {
		return model.OwnerView
	}
	return model.ExternalView
}

// Viewable reports whether this viewer may see the journal at all.
func (j *Journal) Viewable(ctx context.Context) (bool, error) {
	return j.svc.visibility.CanViewProfile(ctx, j.owner, j.viewerID)
}

// ensureViewable gates every data-returning method. A denied viewer gets a
// Forbidden error; the Summary path translates denial into a Viewable=false
// result instead so "no access" stays distinguishable from "no entries".
func (j *Journal) ensureViewable(ctx context.Context) error {
	ok, err := j.Viewable(ctx)
	if err != nil {
		return fmt.Errorf("checking journal visibility: %w", err)
	}
	if !ok {
		return apperror.Forbidden("this journal is private")
	}
	return nil
}

// HasSat reports whether the journal has any entries in scope. Callers use
// it to guard date math that would dereference a missing first entry.
func (j *Journal) HasSat(ctx context.Context) (bool, error) {
	latest, err := j.svc.sits.Latest(ctx, j.owner.ID, j.scope())
	if err != nil {
		return false, err
	}
	return latest != nil, nil
}

// FirstSit returns the oldest entry in scope, or nil if there are none.
func (j *Journal) FirstSit(ctx context.Context) (*model.Sit, error) {
	if err := j.ensureViewable(ctx); err != nil {
		return nil, err
	}
	return j.svc.sits.First(ctx, j.owner.ID, j.scope())
}

// LatestSit returns the newest entry in scope, or nil if there are none.
func (j *Journal) LatestSit(ctx context.Context) (*model.Sit, error) {
	if err := j.ensureViewable(ctx); err != nil {
		return nil, err
	}
	return j.svc.sits.Latest(ctx, j.owner.ID, j.scope())
}

// SitsByMonth returns the entries dated in the given month, newest first.
// The owner sees private entries; everyone else does not.
func (j *Journal) SitsByMonth(ctx context.Context, year int, month time.Month) ([]model.Sit, error) {
	if err := j.ensureViewable(ctx); err != nil {
		return nil, err
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, j.svc.loc)
	return j.svc.sits.ListByRange(ctx, j.owner.ID, j.scope(), start, start.AddDate(0, 1, 0))
}

// SitsByYear returns the entries dated in the given year, newest first.
func (j *Journal) SitsByYear(ctx context.Context, year int) ([]model.Sit, error) {
	if err := j.ensureViewable(ctx); err != nil {
		return nil, err
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, j.svc.loc)
	return j.svc.sits.ListByRange(ctx, j.owner.ID, j.scope(), start, start.AddDate(1, 0, 0))
}

// MonthsWithActivity returns the sparse month index: every calendar month
// with at least one visible entry, most recent first, with entry counts.
// Months without activity are omitted, not zero-filled.
//
// Built from one dates-only query bucketed in memory, rather than a query
// per calendar month between the first entry and now.
func (j *Journal) MonthsWithActivity(ctx context.Context) ([]model.MonthActivity, error) {
	if err := j.ensureViewable(ctx); err != nil {
		return nil, err
	}
	return j.monthsWithActivity(ctx)
}

// monthsWithActivity skips the viewability gate; Summary handles that
// distinction itself.
func (j *Journal) monthsWithActivity(ctx context.Context) ([]model.MonthActivity, error) {
	dates, err := j.svc.sits.ListDatesDesc(ctx, j.owner.ID, j.scope())
	if err != nil {
		return nil, err
	}

	var months []model.MonthActivity
	for _, t := range dates {
		y, m, _ := t.In(j.svc.loc).Date()
		if n := len(months); n > 0 && months[n-1].Year == y && months[n-1].Month == m {
			months[n-1].Count++
			continue
		}
		months = append(months, model.MonthActivity{Year: y, Month: m, Count: 1})
	}

	return months, nil
}

// NextMonth returns the chronologically more recent neighbour of the given
// month within the sparse index, or nil if the month is the most recent one
// or is not itself in the index.
func (j *Journal) NextMonth(ctx context.Context, year int, month time.Month) (*model.MonthActivity, error) {
	months, idx, err := j.monthIndex(ctx, year, month)
	if err != nil || idx < 0 {
		return nil, err
	}
	if idx == 0 {
		return nil, nil
	}
	next := months[idx-1]
	return &next, nil
}

// PreviousMonth returns the chronologically older neighbour of the given
// month within the sparse index, or nil at the boundary or when the month
// is not in the index.
func (j *Journal) PreviousMonth(ctx context.Context, year int, month time.Month) (*model.MonthActivity, error) {
	months, idx, err := j.monthIndex(ctx, year, month)
	if err != nil || idx < 0 {
		return nil, err
	}
	if idx+1 >= len(months) {
		return nil, nil
	}
	prev := months[idx+1]
	return &prev, nil
}

func (j *Journal) monthIndex(ctx context.Context, year int, month time.Month) ([]model.MonthActivity, int, error) {
	months, err := j.MonthsWithActivity(ctx)
	if err != nil {
		return nil, -1, err
	}
	for i, m := range months {
		if m.Year == year && m.Month == month {
			return months, i, nil
		}
	}
	return months, -1, nil
}

// TimeSatThisMonth sums the visible durations in the month and renders them
// as hours and minutes, e.g. "2 hours 10 minutes". Exact hours omit the
// minutes clause; totals under an hour omit the hours clause.
func (j *Journal) TimeSatThisMonth(ctx context.Context, year int, month time.Month) (string, error) {
	sits, err := j.SitsByMonth(ctx, year, month)
	if err != nil {
		return "", err
	}

	total := 0
	for _, s := range sits {
		total += s.Duration
	}

	return formatMinutes(total), nil
}

// formatMinutes renders a minute total as "H hours M minutes", dropping
// whichever clause is zero ("45 minutes", "2 hours"). Zero renders as
// "0 minutes". Units are singular at exactly one.
func formatMinutes(total int) string {
	hours, minutes := total/60, total%60

	switch {
	case hours == 0:
		return fmt.Sprintf("%d %s", minutes, pluralize(minutes, "minute"))
	case minutes == 0:
		return fmt.Sprintf("%d %s", hours, pluralize(hours, "hour"))
	default:
		return fmt.Sprintf("%d %s %d %s",
			hours, pluralize(hours, "hour"),
			minutes, pluralize(minutes, "minute"))
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// rangeBuckets loads the sits whose calendar day falls in [start, end]
// (inclusive, interpreted in the application location) and groups them with
// the shared day-bucketing primitive. start after end yields no buckets.
func (j *Journal) rangeBuckets(ctx context.Context, start, end day) (map[day]dayBucket, error) {
	if err := j.ensureViewable(ctx); err != nil {
		return nil, err
	}
	if start.sub(end) > 0 {
		return map[day]dayBucket{}, nil
	}

	loc := j.svc.loc
	from := time.Date(start.year, start.month, start.dom, 0, 0, 0, 0, loc)
	to := time.Date(end.year, end.month, end.dom, 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	sits, err := j.svc.sits.ListByRange(ctx, j.owner.ID, j.scope(), from, to)
	if err != nil {
		return nil, err
	}

	return bucketByDay(sits, loc), nil
}

// DaysActiveInRange counts the distinct calendar days in [start, end] with
// at least one visible entry. Multiple entries on one day count once.
func (j *Journal) DaysActiveInRange(ctx context.Context, start, end time.Time) (int, error) {
	loc := j.svc.loc
	buckets, err := j.rangeBuckets(ctx, dayOf(start, loc), dayOf(end, loc))
	if err != nil {
		return 0, err
	}
	return len(buckets), nil
}

// DaysMeetingDurationInRange counts the distinct calendar days in
// [start, end] where the day's summed durations reach minMinutes. The sum is
// per day, not per entry: two 15-minute sits meet a 30-minute threshold.
func (j *Journal) DaysMeetingDurationInRange(ctx context.Context, minMinutes int, start, end time.Time) (int, error) {
	loc := j.svc.loc
	buckets, err := j.rangeBuckets(ctx, dayOf(start, loc), dayOf(end, loc))
	if err != nil {
		return 0, err
	}

	days := 0
	for _, b := range buckets {
		if b.minutes >= minMinutes {
			days++
		}
	}
	return days, nil
}

// SatOnDate reports whether the journal has a visible entry on the given
// calendar day. Do not call it in a loop over a range — use
// DaysActiveInRange, which buckets a single query.
func (j *Journal) SatOnDate(ctx context.Context, date time.Time) (bool, error) {
	_, present, err := j.dayStats(ctx, date)
	return present, err
}

// TimeSatOnDate returns the total visible minutes logged on the given
// calendar day.
func (j *Journal) TimeSatOnDate(ctx context.Context, date time.Time) (int, error) {
	minutes, _, err := j.dayStats(ctx, date)
	return minutes, err
}

// SatForDurationOnDate reports whether the day's summed durations reach
// minMinutes.
func (j *Journal) SatForDurationOnDate(ctx context.Context, minMinutes int, date time.Time) (bool, error) {
	minutes, present, err := j.dayStats(ctx, date)
	if err != nil {
		return false, err
	}
	return present && minutes >= minMinutes, nil
}

// dayStats is the single-day point query behind SatOnDate, TimeSatOnDate
// and SatForDurationOnDate: one bucket lookup for one calendar day.
func (j *Journal) dayStats(ctx context.Context, date time.Time) (minutes int, present bool, err error) {
	d := dayOf(date, j.svc.loc)
	buckets, err := j.rangeBuckets(ctx, d, d)
	if err != nil {
		return 0, false, err
	}
	b, ok := buckets[d]
	return b.minutes, ok, nil
}

// MonthlyStats bundles the numbers shown in a journal month header.
type MonthlyStats struct {
	Year       int        `json:"year"`
	Month      time.Month `json:"month"`
	Entries    int        `json:"entries"`
	DaysActive int        `json:"daysActive"`
	TimeSat    string     `json:"timeSat"`
}

// StatsForMonth computes the month's entry count, distinct active days and
// formatted time total in one pass over the month's visible entries.
func (j *Journal) StatsForMonth(ctx context.Context, year int, month time.Month) (*MonthlyStats, error) {
	sits, err := j.SitsByMonth(ctx, year, month)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, s := range sits {
		total += s.Duration
	}
	buckets := bucketByDay(sits, j.svc.loc)

	return &MonthlyStats{
		Year:       year,
		Month:      month,
		Entries:    len(sits),
		DaysActive: len(buckets),
		TimeSat:    formatMinutes(total),
	}, nil
}

// Summary is the per-(owner, viewer) journal overview handed to page
// renderers. Viewable=false means access was denied: every other field is
// zero and nothing about the journal's contents is disclosed. That is
// deliberately distinct from a viewable journal with no entries.
type Summary struct {
	Viewable           bool                  `json:"viewable"`
	HasSat             bool                  `json:"hasSat"`
	FirstSitDate       *time.Time            `json:"firstSitDate,omitempty"`
	LatestSit          *model.Sit            `json:"latestSit,omitempty"`
	MonthsWithActivity []model.MonthActivity `json:"monthsWithActivity,omitempty"`
	Streak             int                   `json:"streak"`
	CurrentMonth       *MonthlyStats         `json:"currentMonth,omitempty"`
}

// Summary assembles the journal overview for this (owner, viewer) pair.
func (j *Journal) Summary(ctx context.Context) (*Summary, error) {
	viewable, err := j.Viewable(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking journal visibility: %w", err)
	}
	if !viewable {
		return &Summary{Viewable: false}, nil
	}

	summary := &Summary{Viewable: true}

	first, err := j.svc.sits.First(ctx, j.owner.ID, j.scope())
	if err != nil {
		return nil, err
	}
	if first == nil {
		// Nothing logged yet: skip all date math on the missing first entry.
		return summary, nil
	}
	summary.HasSat = true
	firstDate := first.CreatedAt
	summary.FirstSitDate = &firstDate

	if summary.LatestSit, err = j.svc.sits.Latest(ctx, j.owner.ID, j.scope()); err != nil {
		return nil, err
	}
	if summary.MonthsWithActivity, err = j.monthsWithActivity(ctx); err != nil {
		return nil, err
	}
	if summary.Streak, err = j.svc.Streak(ctx, j.owner.ID); err != nil {
		return nil, err
	}

	now := j.svc.now().In(j.svc.loc)
	if summary.CurrentMonth, err = j.StatsForMonth(ctx, now.Year(), now.Month()); err != nil {
		return nil, err
	}

	return summary, nil
}
