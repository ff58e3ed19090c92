package planner

import (
	"staffline/internal/domain"
)

// strategy staffs one phase type of a release.
type strategy interface {
	allocate(in Input, r Rules) ([]domain.Allocation, []Shortfall)
}

// primaryStrategy staffs a phase from its own estimates.
type primaryStrategy struct {
	phase            domain.PhaseType
	skill            domain.SkillFunction
	forceSubFunction string
}

func (s primaryStrategy) allocate(in Input, r Rules) ([]domain.Allocation, []Shortfall) {
	phase, ok := in.Phases[s.phase]
	if !ok {
		return nil, nil
	}
	return AllocatePhase(PhaseRequest{
		ReleaseID:        in.ReleaseID,
		Phase:            phase,
		Skill:            s.skill,
		ForceSubFunction: s.forceSubFunction,
	}, in.Estimates, in.Pool, r)
}

// derivedStrategy staffs a phase from a percentage of earlier phases' effort.
type derivedStrategy struct {
	phase   domain.PhaseType
	percent float64
	window  func(map[domain.PhaseType]domain.Phase, Rules) (Window, bool)
	sides   []derivedSide
}

func (s derivedStrategy) allocate(in Input, r Rules) ([]domain.Allocation, []Shortfall) {
	w, ok := s.window(in.Phases, r)
	if !ok {
		return nil, nil
	}
	return AllocateDerived(in.ReleaseID, s.phase, w, s.percent, s.sides, in.Estimates, in.Pool, r)
}

// strategies builds the phase dispatch table and the order it runs in: primary phases in
// release order, then UAT, then Smoke Testing.
func strategies(r Rules) ([]domain.PhaseType, map[domain.PhaseType]strategy) {
	table := map[domain.PhaseType]strategy{}
	var order []domain.PhaseType
	for _, pt := range domain.PhaseTypes {
		skill, ok := r.PhaseSkills[pt]
		if !ok || IsDerived(pt) {
			continue
		}
		s := primaryStrategy{phase: pt, skill: skill}
		if pt == domain.PhaseSIT {
			s.forceSubFunction = r.SITSubFunction
		}
		table[pt] = s
		order = append(order, pt)
	}
	derivedSides := []derivedSide{
		{source: domain.PhaseSIT, skill: domain.SkillTest, subFunction: r.SITSubFunction},
		{source: domain.PhaseBuild, skill: domain.SkillBuild},
	}
	table[domain.PhaseUAT] = derivedStrategy{
		phase:   domain.PhaseUAT,
		percent: r.UATPercent,
		window:  uatWindow,
		sides:   derivedSides,
	}
	table[domain.PhaseSmokeTesting] = derivedStrategy{
		phase:   domain.PhaseSmokeTesting,
		percent: r.SmokePercent,
		window:  smokeWindow,
		sides:   derivedSides,
	}
	order = append(order, domain.PhaseUAT, domain.PhaseSmokeTesting)
	return order, table
}
