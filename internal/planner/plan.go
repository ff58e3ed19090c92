package planner

import (
	"fmt"

	"github.com/google/uuid"

	"staffline/internal/domain"
)

// Input is everything a release needs to be planned, already loaded from storage.
type Input struct {
	ReleaseID int64
	Estimates []domain.EffortEstimate
	Phases    map[domain.PhaseType]domain.Phase
	Pool      Pool
}

type Result struct {
	Allocations []domain.Allocation
	Shortfalls  []Shortfall
}

// IsDerived reports whether a phase's effort comes from other phases rather than its own estimates.
func IsDerived(pt domain.PhaseType) bool {
	return pt == domain.PhaseUAT || pt == domain.PhaseSmokeTesting
}

// Plan produces the full allocation set for one release. Output order and ids are
// deterministic for identical input.
func Plan(in Input, r Rules) Result {
	var res Result
	if len(in.Estimates) == 0 {
		return res
	}
	order, table := strategies(r)
	for _, pt := range order {
		rows, shortfalls := table[pt].allocate(in, r)
		res.Allocations = append(res.Allocations, rows...)
		res.Shortfalls = append(res.Shortfalls, shortfalls...)
	}
	for i := range res.Allocations {
		res.Allocations[i].ID = AllocationID(res.Allocations[i], i)
	}
	return res
}

// AllocationID derives a stable id from the allocation identity and its position in the plan.
func AllocationID(a domain.Allocation, seq int) string {
	key := fmt.Sprintf("%d|%s|%d|%s|%d", a.ReleaseID, a.PhaseType, a.ResourceID, a.SubFunction, seq)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
