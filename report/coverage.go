/*
Package report builds staffing summaries on top of the roster engine.

PURPOSE:
  Answers "how many scheduled hours does each person have inside this
  window?". This is the join-and-aggregate layer the core deliberately
  does not do. Intervals are clipped to the window, so a night shift crossing the
  window edge only counts the hours inside it.

PRECISION:
  Hours are decimal.Decimal, not float64. A 22:00-06:00 shift clipped at
  23:30 is 6.5 hours exactly, and payroll-adjacent numbers should stay
  exact.

SEE ALSO:
  - roster/query.go: the Overlapping query this report is built on
*/
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/roster-engine/roster"
)

var minutesPerHour = decimal.NewFromInt(60)

// SubjectHours is one row of a coverage report.
type SubjectHours struct {
	Subject     roster.SubjectID
	Hours       decimal.Decimal
	Allocations int
}

// Coverage summarizes scheduled hours inside a half-open window.
type Coverage struct {
	WindowStart  time.Time
	WindowFinish time.Time

	// TotalHours counts allocation-hours: an interval with two assignees
	// contributes its clipped span once per assignee.
	TotalHours decimal.Decimal

	// Subjects is sorted by subject ID for stable output.
	Subjects []SubjectHours

	// Unassigned counts allocations in the window with no assignees.
	Unassigned int
}

// Compute builds a coverage report for [start, finish). Fails with
// roster.ErrInvalidRange on a malformed window, like any other query.
func Compute(e *roster.Engine, start, finish time.Time) (*Coverage, error) {
	ids, err := e.Overlapping(start, finish)
	if err != nil {
		return nil, err
	}

	perSubject := make(map[roster.SubjectID]*SubjectHours)
	cov := &Coverage{
		WindowStart:  start,
		WindowFinish: finish,
		TotalHours:   decimal.Zero,
	}

	for _, id := range ids {
		iv, ok := e.Interval(id)
		if !ok {
			continue // removed between query and join; nothing to report
		}
		alloc, ok := e.Allocation(id)
		if !ok {
			continue
		}

		hours := clippedHours(iv, start, finish)
		if len(alloc.Assignees) == 0 {
			cov.Unassigned++
			continue
		}
		for _, sub := range alloc.Assignees {
			row, ok := perSubject[sub]
			if !ok {
				row = &SubjectHours{Subject: sub, Hours: decimal.Zero}
				perSubject[sub] = row
			}
			row.Hours = row.Hours.Add(hours)
			row.Allocations++
			cov.TotalHours = cov.TotalHours.Add(hours)
		}
	}

	cov.Subjects = make([]SubjectHours, 0, len(perSubject))
	for _, row := range perSubject {
		cov.Subjects = append(cov.Subjects, *row)
	}
	sort.Slice(cov.Subjects, func(i, j int) bool {
		return cov.Subjects[i].Subject < cov.Subjects[j].Subject
	})
	return cov, nil
}

// clippedHours returns the span of the interval inside [start, finish),
// in exact decimal hours.
func clippedHours(iv roster.ResolvedInterval, start, finish time.Time) decimal.Decimal {
	s := iv.StartAt
	if s.Before(start) {
		s = start
	}
	f := iv.FinishAt
	if f.After(finish) {
		f = finish
	}
	if !s.Before(f) {
		return decimal.Zero
	}
	minutes := decimal.NewFromInt(int64(f.Sub(s) / time.Minute))
	return minutes.Div(minutesPerHour)
}
