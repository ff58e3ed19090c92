// Package forecast aggregates allocations into Monday-start weeks and derives conflict,
// utilization and capacity reports from the result. Nothing here is persisted; every call
// recomputes from the allocations it is given.
package forecast

import (
	"time"

	"github.com/shopspring/decimal"

	"staffline/internal/calendar"
	"staffline/internal/domain"
)

// DefaultWeeklyCapacity is a full-time week of allocation days.
const DefaultWeeklyCapacity = 4.5

const epsilon = 1e-9

// Load holds allocation days per resource per week start.
type Load map[int64]map[time.Time]float64

// WeeklyLoad spreads each allocation's factor over the working days it shares with every week
// it touches and sums the result per resource and week.
func WeeklyLoad(allocs []domain.Allocation) Load {
	load := Load{}
	for _, a := range allocs {
		for _, week := range calendar.Weeks(a.StartDate, a.EndDate) {
			overlap := calendar.WeekOverlap(a.StartDate, a.EndDate, week)
			if overlap == 0 {
				continue
			}
			weeks, ok := load[a.ResourceID]
			if !ok {
				weeks = map[time.Time]float64{}
				load[a.ResourceID] = weeks
			}
			weeks[week] += a.Factor * float64(overlap)
		}
	}
	return load
}

// At is the load of a resource in the week starting at week; zero when there is none.
func (l Load) At(resourceID int64, week time.Time) float64 {
	return l[resourceID][week]
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Range is an inclusive reporting window. A week belongs to the range when it starts on or
// before To and ends on or after From.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) Weeks() []time.Time {
	return calendar.Weeks(r.From, r.To)
}

// SkillFilter narrows reports to a skill function and, optionally, a sub-function.
// The zero value matches everything.
type SkillFilter struct {
	SkillFunction domain.SkillFunction
	SubFunction   string
}

func (f SkillFilter) Match(r domain.Resource) bool {
	if f.SkillFunction != "" && r.SkillFunction != f.SkillFunction {
		return false
	}
	if f.SubFunction != "" && r.SubFunction != f.SubFunction {
		return false
	}
	return true
}

func available(capacity, allocated float64) float64 {
	v := Round2(capacity - allocated)
	if v < 0 {
		return 0
	}
	return v
}
