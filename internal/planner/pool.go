package planner

import (
	"sort"

	"staffline/internal/domain"
)

// Pool is the set of active resources partitioned by skill function, each bucket ordered by id.
// It is built once per generation run and passed by value to the allocation functions.
type Pool struct {
	bySkill map[domain.SkillFunction][]domain.Resource
}

func NewPool(resources []domain.Resource) Pool {
	p := Pool{bySkill: make(map[domain.SkillFunction][]domain.Resource)}
	for _, r := range resources {
		if !r.Active() {
			continue
		}
		p.bySkill[r.SkillFunction] = append(p.bySkill[r.SkillFunction], r)
	}
	for skill := range p.bySkill {
		bucket := p.bySkill[skill]
		sort.SliceStable(bucket, func(i, j int) bool { return bucket[i].ID < bucket[j].ID })
	}
	return p
}

// Candidates returns the resources of a skill, narrowed to a sub-function when one is given.
func (p Pool) Candidates(skill domain.SkillFunction, subFunction string) []domain.Resource {
	var out []domain.Resource
	for _, r := range p.bySkill[skill] {
		if subFunction != "" && r.SubFunction != subFunction {
			continue
		}
		out = append(out, r)
	}
	return out
}
