package planner

import (
	"time"

	"staffline/internal/calendar"
	"staffline/internal/domain"
)

// Rules are the tunables of the allocation algorithm.
type Rules struct {
	MinFactor        float64
	MaxFactor        float64
	SITSubFunction   string
	UATPercent       float64
	SmokePercent     float64
	SmokeDefaultDays int
	PhaseSkills      map[domain.PhaseType]domain.SkillFunction
}

func DefaultRules() Rules {
	return Rules{
		MinFactor:        0.5,
		MaxFactor:        0.9,
		SITSubFunction:   "Manual",
		UATPercent:       30,
		SmokePercent:     10,
		SmokeDefaultDays: 7,
		PhaseSkills: map[domain.PhaseType]domain.SkillFunction{
			domain.PhaseFunctionalDesign: domain.SkillFunctionalDesign,
			domain.PhaseTechnicalDesign:  domain.SkillTechnicalDesign,
			domain.PhaseBuild:            domain.SkillBuild,
			domain.PhaseSIT:              domain.SkillTest,
		},
	}
}

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

func WindowOf(p domain.Phase) Window {
	return Window{Start: calendar.Day(p.StartDate), End: calendar.Day(p.EndDate)}
}

func (w Window) WorkingDays() int {
	return calendar.WorkingDays(w.Start, w.End)
}

const (
	ReasonUnderCovered  = "under_covered"
	ReasonNoCandidates  = "no_candidates"
	ReasonNoWorkingDays = "no_working_days"
)

// Shortfall records a slice of effort the pool could not fully cover. It never blocks generation.
type Shortfall struct {
	PhaseType     domain.PhaseType     `json:"phase_type"`
	SkillFunction domain.SkillFunction `json:"skill_function"`
	SubFunction   string               `json:"skill_sub_function,omitempty"`
	EffortDays    float64              `json:"effort_days"`
	CoveredDays   float64              `json:"covered_days"`
	Reason        string               `json:"reason"`
}

func (s Shortfall) MissingDays() float64 {
	if s.CoveredDays >= s.EffortDays {
		return 0
	}
	return s.EffortDays - s.CoveredDays
}
