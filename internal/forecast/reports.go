package forecast

import (
	"sort"
	"time"

	"staffline/internal/domain"
)

// Utilization reports allocated days against capacity for every (resource, week) in range.
// With no ids it covers active resources; with ids it covers exactly those resources, whatever
// their status. Rows are ordered by week, then resource id.
func Utilization(resources []domain.Resource, allocs []domain.Allocation, rng Range, capacity float64, ids []int64) []domain.UtilizationRow {
	scope := selectResources(resources, func(r domain.Resource) bool {
		if len(ids) == 0 {
			return r.Active()
		}
		for _, id := range ids {
			if r.ID == id {
				return true
			}
		}
		return false
	})
	load := WeeklyLoad(allocs)

	var out []domain.UtilizationRow
	for _, week := range rng.Weeks() {
		for _, r := range scope {
			allocated := load.At(r.ID, week)
			pct := 0.0
			if capacity > 0 {
				pct = Round2(allocated / capacity * 100)
			}
			out = append(out, domain.UtilizationRow{
				ResourceID:         r.ID,
				ResourceName:       r.Name,
				WeekStart:          week,
				AllocatedDays:      Round2(allocated),
				CapacityDays:       capacity,
				UtilizationPercent: pct,
			})
		}
	}
	return out
}

// Capacity reports remaining days per active resource and week, optionally narrowed by skill.
func Capacity(resources []domain.Resource, allocs []domain.Allocation, rng Range, capacity float64, filter SkillFilter) []domain.CapacityRow {
	scope := selectResources(resources, func(r domain.Resource) bool {
		return r.Active() && filter.Match(r)
	})
	load := WeeklyLoad(allocs)

	var out []domain.CapacityRow
	for _, week := range rng.Weeks() {
		for _, r := range scope {
			allocated := load.At(r.ID, week)
			out = append(out, domain.CapacityRow{
				ResourceID:    r.ID,
				ResourceName:  r.Name,
				SkillFunction: r.SkillFunction,
				SubFunction:   r.SubFunction,
				WeekStart:     week,
				AllocatedDays: Round2(allocated),
				CapacityDays:  capacity,
				AvailableDays: available(capacity, allocated),
			})
		}
	}
	return out
}

type skillKey struct {
	skill domain.SkillFunction
	sub   string
}

func (k skillKey) less(o skillKey) bool {
	if k.skill != o.skill {
		return k.skill < o.skill
	}
	return k.sub < o.sub
}

// SkillCapacity groups load by (skill function, sub-function, week). Capacity of a group is
// the active headcount of its whole skill function times the weekly capacity, so sub-function
// groups of one skill share the same capacity figure. Load of inactive resources still counts
// toward their group.
func SkillCapacity(resources []domain.Resource, allocs []domain.Allocation, rng Range, capacity float64, filter SkillFilter) []domain.SkillCapacityRow {
	headcount := map[domain.SkillFunction]int{}
	groups := map[skillKey]bool{}
	byID := map[int64]domain.Resource{}
	for _, r := range resources {
		byID[r.ID] = r
		if !r.Active() {
			continue
		}
		headcount[r.SkillFunction]++
		if filter.Match(r) {
			groups[skillKey{r.SkillFunction, r.SubFunction}] = true
		}
	}

	weeks := rng.Weeks()
	load := WeeklyLoad(allocs)
	grouped := map[skillKey]map[time.Time]float64{}
	for id, perWeek := range load {
		r, ok := byID[id]
		if !ok || !filter.Match(r) {
			continue
		}
		key := skillKey{r.SkillFunction, r.SubFunction}
		for _, week := range weeks {
			days, ok := perWeek[week]
			if !ok {
				continue
			}
			groups[key] = true
			if grouped[key] == nil {
				grouped[key] = map[time.Time]float64{}
			}
			grouped[key][week] += days
		}
	}

	keys := make([]skillKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	var out []domain.SkillCapacityRow
	for _, week := range weeks {
		for _, k := range keys {
			allocated := grouped[k][week]
			total := float64(headcount[k.skill]) * capacity
			out = append(out, domain.SkillCapacityRow{
				SkillFunction: k.skill,
				SubFunction:   k.sub,
				WeekStart:     week,
				Headcount:     headcount[k.skill],
				AllocatedDays: Round2(allocated),
				CapacityDays:  total,
				AvailableDays: available(total, allocated),
			})
		}
	}
	return out
}

func selectResources(resources []domain.Resource, keep func(domain.Resource) bool) []domain.Resource {
	var out []domain.Resource
	for _, r := range resources {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
