package forecast

import (
	"sort"
	"time"

	"staffline/internal/domain"
)

// Conflicts lists, per resource, every week whose total load exceeds capacity. It takes the
// allocations of all releases, since overload is a property of the person, not the release.
// Resources without conflicting weeks are omitted. Output is ordered by resource id and week.
func Conflicts(allocs []domain.Allocation, capacity float64) []domain.ResourceConflicts {
	load := WeeklyLoad(allocs)
	names := map[int64]string{}
	for _, a := range allocs {
		if a.ResourceName != "" {
			names[a.ResourceID] = a.ResourceName
		}
	}

	ids := make([]int64, 0, len(load))
	for id := range load {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []domain.ResourceConflicts
	for _, id := range ids {
		weeks := make([]time.Time, 0, len(load[id]))
		for w := range load[id] {
			weeks = append(weeks, w)
		}
		sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

		var conflicts []domain.ConflictWeek
		for _, w := range weeks {
			total := load[id][w]
			if total <= capacity+epsilon {
				continue
			}
			conflicts = append(conflicts, domain.ConflictWeek{
				WeekStart:       w,
				TotalAllocation: Round2(total),
				Threshold:       capacity,
				Excess:          Round2(total - capacity),
			})
		}
		if len(conflicts) == 0 {
			continue
		}
		out = append(out, domain.ResourceConflicts{ResourceID: id, ResourceName: names[id], Weeks: conflicts})
	}
	return out
}
