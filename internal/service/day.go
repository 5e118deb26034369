package service

import (
	"time"

	"github.com/opensit/opensit/internal/model"
)

// day is a calendar date with no wall-clock component. All the journal
// statistics are calendar-day questions ("did they sit on the 5th?"), and
// comparing timestamps directly gets them wrong: two sits 18 hours apart on
// the same date are one day of practice, two sits 24h01s apart across
// midnight are two.
type day struct {
	year  int
	month time.Month
	dom   int
}

// dayOf buckets a timestamp into its calendar day in the given location.
// The location is the application's day boundary; it is fixed per deployment.
func dayOf(t time.Time, loc *time.Location) day {
	y, m, d := t.In(loc).Date()
	return day{year: y, month: m, dom: d}
}

// ordinal converts the day to a count of days since the epoch, so gaps
// between days are plain integer subtraction. Going through UTC makes the
// arithmetic immune to DST (23- and 25-hour days).
func (d day) ordinal() int {
	return int(time.Date(d.year, d.month, d.dom, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// sub returns the number of whole calendar days between d and o (positive
// when d is later).
func (d day) sub(o day) int {
	return d.ordinal() - o.ordinal()
}

func (d day) addDays(n int) day {
	t := time.Date(d.year, d.month, d.dom+n, 0, 0, 0, 0, time.UTC)
	return day{year: t.Year(), month: t.Month(), dom: t.Day()}
}

// dayBucket aggregates all of one calendar day's entries.
type dayBucket struct {
	count   int // number of entries that day
	minutes int // total duration that day
}

// bucketByDay is the single day-bucketing primitive every multi-day
// aggregate is built on. Grouping first and summing per bucket is what
// guarantees multiple entries on one calendar day can never double count —
// per-entry loops kept reintroducing that bug, so it lives in exactly one
// place.
func bucketByDay(sits []model.Sit, loc *time.Location) map[day]dayBucket {
	buckets := make(map[day]dayBucket)
	for _, s := range sits {
		d := dayOf(s.CreatedAt, loc)
		b := buckets[d]
		b.count++
		b.minutes += s.Duration
		buckets[d] = b
	}
	return buckets
}

// distinctDaysDesc collapses a newest-first timestamp list into its distinct
// calendar days, preserving the newest-first order. Used by the streak walk
// and the sparse month index.
func distinctDaysDesc(dates []time.Time, loc *time.Location) []day {
	var days []day
	for _, t := range dates {
		d := dayOf(t, loc)
		if len(days) == 0 || days[len(days)-1] != d {
			days = append(days, d)
		}
	}
	return days
}
