package planner

import (
	"math"
	"sort"

	"staffline/internal/domain"
)

const epsilon = 1e-9

// Assignment is the result of sizing one effort bucket against a candidate list.
type Assignment struct {
	Resources   []domain.Resource
	Factor      float64
	WorkingDays int
}

// Days is the allocation days each selected resource receives.
func (a Assignment) Days() float64 {
	return a.Factor * float64(a.WorkingDays)
}

// Covered is the total effort the assignment represents.
func (a Assignment) Covered() float64 {
	return a.Days() * float64(len(a.Resources))
}

// Staff picks the smallest headcount that keeps the per-person factor at or under
// MaxFactor. When that leaves the factor under MinFactor the headcount is recomputed
// at MinFactor and the factor clamped, so nobody is booked below the floor even if
// the effort is then over- or under-represented. Candidates must already be ordered.
// ok is false when there is nothing to staff.
func Staff(effort float64, w Window, candidates []domain.Resource, r Rules) (Assignment, bool) {
	wd := w.WorkingDays()
	if effort <= 0 || wd == 0 || len(candidates) == 0 {
		return Assignment{}, false
	}
	days := float64(wd)
	h := headcount(effort, r.MaxFactor*days, len(candidates))
	factor := math.Min(r.MaxFactor, effort/(days*float64(h)))
	if factor < r.MinFactor {
		h = headcount(effort, r.MinFactor*days, len(candidates))
		factor = clamp(effort/(days*float64(h)), r.MinFactor, r.MaxFactor)
	}
	selected := make([]domain.Resource, h)
	copy(selected, candidates[:h])
	return Assignment{Resources: selected, Factor: factor, WorkingDays: wd}, true
}

func headcount(effort, perPerson float64, poolSize int) int {
	h := int(math.Ceil(effort/perPerson - epsilon))
	if h > poolSize {
		h = poolSize
	}
	if h < 1 {
		h = 1
	}
	return h
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// PhaseRequest describes one primary phase slice: the phase window and the skill it needs.
// ForceSubFunction, when set, replaces the estimate's own sub-function for candidate selection.
type PhaseRequest struct {
	ReleaseID        int64
	Phase            domain.Phase
	Skill            domain.SkillFunction
	ForceSubFunction string
}

// AllocatePhase staffs a primary phase from the release estimates matching its phase and skill.
// Estimates are summed per sub-function and each bucket is staffed independently, so a
// resource matching several buckets can receive several rows for the same phase.
func AllocatePhase(req PhaseRequest, estimates []domain.EffortEstimate, pool Pool, r Rules) ([]domain.Allocation, []Shortfall) {
	totals := map[string]float64{}
	for _, e := range estimates {
		if e.PhaseType != req.Phase.Type || e.SkillFunction != req.Skill {
			continue
		}
		totals[e.SubFunction] += e.EffortDays
	}
	if len(totals) == 0 {
		return nil, nil
	}
	subs := make([]string, 0, len(totals))
	for sub := range totals {
		subs = append(subs, sub)
	}
	sort.Strings(subs)

	w := WindowOf(req.Phase)
	var (
		allocations []domain.Allocation
		shortfalls  []Shortfall
	)
	for _, sub := range subs {
		effort := totals[sub]
		if effort <= 0 {
			continue
		}
		candidateSub := sub
		if req.ForceSubFunction != "" {
			candidateSub = req.ForceSubFunction
		}
		rows, short := staffBucket(bucket{
			releaseID:   req.ReleaseID,
			phase:       req.Phase.Type,
			skill:       req.Skill,
			subFunction: candidateSub,
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

type bucket struct {
	releaseID   int64
	phase       domain.PhaseType
	skill       domain.SkillFunction
	subFunction string
	effort      float64
	window      Window
}

// staffBucket turns one effort bucket into allocation rows and reports any shortfall.
func staffBucket(b bucket, pool Pool, r Rules) ([]domain.Allocation, *Shortfall) {
	if b.effort <= 0 {
		return nil, nil
	}
	short := &Shortfall{
		PhaseType:     b.phase,
		SkillFunction: b.skill,
		SubFunction:   b.subFunction,
		EffortDays:    b.effort,
	}
	if b.window.WorkingDays() == 0 {
		short.Reason = ReasonNoWorkingDays
		return nil, short
	}
	candidates := pool.Candidates(b.skill, b.subFunction)
	a, ok := Staff(b.effort, b.window, candidates, r)
	if !ok {
		short.Reason = ReasonNoCandidates
		return nil, short
	}
	rows := make([]domain.Allocation, 0, len(a.Resources))
	for _, res := range a.Resources {
		rows = append(rows, domain.Allocation{
			ResourceID:   res.ID,
			ResourceName: res.Name,
			ReleaseID:    b.releaseID,
			PhaseType:    b.phase,
			SubFunction:  b.subFunction,
			StartDate:    b.window.Start,
			EndDate:      b.window.End,
			Factor:       a.Factor,
			Days:         a.Days(),
		})
	}
	if covered := a.Covered(); covered+epsilon < b.effort {
		short.CoveredDays = covered
		short.Reason = ReasonUnderCovered
		return rows, short
	}
	return rows, nil
}
