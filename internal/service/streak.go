package service

import (
	"context"

	"github.com/opensit/opensit/internal/model"
)

// Streak returns the owner's current consecutive-day practice streak.
//
// The streak is an owner-only metric computed over the owner's full entry
// set, private entries included — viewer visibility never applies here.
//
// Rules:
//   - no entry dated yesterday: streak is 0, regardless of history
//   - walk distinct calendar days newest-first; each exactly-one-day gap
//     extends the chain, any larger gap ends it
//   - a nonzero chain only counts if the owner also sat today; without a
//     sit today the whole streak collapses to 0. A lone sit yesterday is
//     therefore never a streak of 1: the minimum nonzero streak is 2
//     (yesterday and today).
//
// Days are calendar days in the application location: two sits 18 hours
// apart on one date are one day, two sits just over midnight apart are two.
func (s *JournalService) Streak(ctx context.Context, ownerID string) (int, error) {
	dates, err := s.sits.ListDatesDesc(ctx, ownerID, model.OwnerView)
	if err != nil {
		return 0, err
	}

	days := distinctDaysDesc(dates, s.loc)
	today := dayOf(s.now(), s.loc)
	yesterday := today.addDays(-1)

	if !containsDay(days, yesterday) {
		return 0, nil
	}

	// Count the unbroken chain of one-day gaps from the newest day back.
	streak := 0
	for i := 0; i+1 < len(days); i++ {
		if days[i].sub(days[i+1]) == 1 {
			streak++
		} else {
			break
		}
	}

	if streak == 0 {
		return 0, nil
	}
	if !containsDay(days, today) {
		return 0, nil
	}

	// Today's sit extends the chain by one.
	return streak + 1, nil
}

func containsDay(days []day, d day) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
