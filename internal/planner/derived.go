package planner

import (
	"staffline/internal/domain"
)

// DerivedEffort is percent of the total effort estimated for the source phase, across all
// skills and sub-functions.
func DerivedEffort(estimates []domain.EffortEstimate, source domain.PhaseType, percent float64) float64 {
	total := 0.0
	for _, e := range estimates {
		if e.PhaseType == source {
			total += e.EffortDays
		}
	}
	return total * percent / 100
}

// derivedSide is one half of a derived phase: effort taken from a source phase, staffed from
// a skill (and optional sub-function).
type derivedSide struct {
	source      domain.PhaseType
	skill       domain.SkillFunction
	subFunction string
}

// AllocateDerived staffs a derived phase in window. Each side is sized independently with
// the same headcount and factor rules as primary phases.
func AllocateDerived(releaseID int64, phase domain.PhaseType, w Window, percent float64, sides []derivedSide, estimates []domain.EffortEstimate, pool Pool, r Rules) ([]domain.Allocation, []Shortfall) {
	var (
		allocations []domain.Allocation
		shortfalls  []Shortfall
	)
	for _, side := range sides {
		effort := DerivedEffort(estimates, side.source, percent)
		rows, short := staffBucket(bucket{
			releaseID:   releaseID,
			phase:       phase,
			skill:       side.skill,
			subFunction: side.subFunction,
			effort:      effort,
			window:      w,
		}, pool, r)
		allocations = append(allocations, rows...)
		if short != nil {
			shortfalls = append(shortfalls, *short)
		}
	}
	return allocations, shortfalls
}

// uatWindow is the UAT phase window.
func uatWindow(phases map[domain.PhaseType]domain.Phase, _ Rules) (Window, bool) {
	uat, ok := phases[domain.PhaseUAT]
	if !ok {
		return Window{}, false
	}
	return WindowOf(uat), true
}

// smokeWindow is the explicit Smoke Testing window, or SmokeDefaultDays calendar days starting
// the day after UAT ends. Without a UAT phase there is no smoke window.
func smokeWindow(phases map[domain.PhaseType]domain.Phase, r Rules) (Window, bool) {
	uat, ok := phases[domain.PhaseUAT]
	if !ok {
		return Window{}, false
	}
	if smoke, ok := phases[domain.PhaseSmokeTesting]; ok {
		return WindowOf(smoke), true
	}
	days := r.SmokeDefaultDays
	if days < 1 {
		days = 1
	}
	start := WindowOf(uat).End.AddDate(0, 0, 1)
	return Window{Start: start, End: start.AddDate(0, 0, days-1)}, true
}
