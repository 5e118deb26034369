package service

import (
	"context"
	"testing"
	"time"

	"github.com/opensit/opensit/internal/model"
)

// now is pinned mid-afternoon so "today" and "yesterday" are unambiguous.
var streakNow = at(2014, time.March, 20, 15)

func streakFixture(t *testing.T, sitDays ...time.Time) *JournalService {
	t.Helper()
	sits := newFakeSitRepo()
	for _, d := range sitDays {
		sits.add(model.Sit{UserID: "owner", Duration: 30, CreatedAt: d})
	}
	return newTestJournalService(sits, newFakeUserRepo(), newFakeRelRepo(), streakNow)
}

func TestStreak(t *testing.T) {
	day := func(offset int) time.Time { return streakNow.AddDate(0, 0, offset) }

	tests := []struct {
		name string
		days []time.Time
		want int
	}{
		{"no sits at all", nil, 0},
		{"today only — yesterday missing", []time.Time{day(0)}, 0},
		{"yesterday only — no sit today collapses the chain", []time.Time{day(-1)}, 0},
		{"yesterday and today — minimum nonzero streak", []time.Time{day(-1), day(0)}, 2},
		{"five consecutive days ending today", []time.Time{day(-4), day(-3), day(-2), day(-1), day(0)}, 5},
		{"chain ending yesterday without today", []time.Time{day(-3), day(-2), day(-1)}, 0},
		{"gap breaks the chain", []time.Time{day(-5), day(-4), day(-1), day(0)}, 2},
		{"old chain with yesterday missing", []time.Time{day(-10), day(-9), day(-8), day(0)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := streakFixture(t, tt.days...)
			got, err := svc.Streak(context.Background(), "owner")
			if err != nil {
				t.Fatalf("Streak() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Streak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStreak_MultipleSitsOneDayCountOnce(t *testing.T) {
	svc := streakFixture(t,
		streakNow.AddDate(0, 0, -1),
		streakNow.AddDate(0, 0, -1).Add(-10*time.Hour), // same calendar day, morning
		streakNow,
	)

	got, err := svc.Streak(context.Background(), "owner")
	if err != nil {
		t.Fatalf("Streak() error = %v", err)
	}
	if got != 2 {
		t.Errorf("Streak() = %d, want 2 (two sits yesterday are one day)", got)
	}
}

func TestStreak_MidnightBoundary(t *testing.T) {
	// Two sits 30 minutes apart straddling midnight land on different
	// calendar days, so together with today they form a 3-day streak.
	svc := streakFixture(t,
		at(2014, time.March, 18, 23).Add(45*time.Minute),
		at(2014, time.March, 19, 0).Add(15*time.Minute),
		streakNow,
	)

	got, err := svc.Streak(context.Background(), "owner")
	if err != nil {
		t.Fatalf("Streak() error = %v", err)
	}
	if got != 3 {
		t.Errorf("Streak() = %d, want 3", got)
	}
}

func TestStreak_IncludesPrivateSits(t *testing.T) {
	sits := newFakeSitRepo()
	sits.add(model.Sit{UserID: "owner", Private: true, CreatedAt: streakNow.AddDate(0, 0, -1)})
	sits.add(model.Sit{UserID: "owner", Private: true, CreatedAt: streakNow})
	svc := newTestJournalService(sits, newFakeUserRepo(), newFakeRelRepo(), streakNow)

	got, err := svc.Streak(context.Background(), "owner")
	if err != nil {
		t.Fatalf("Streak() error = %v", err)
	}
	if got != 2 {
		t.Errorf("Streak() = %d, want 2 (private entries count toward the owner's streak)", got)
	}
}
