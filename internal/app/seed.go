package app

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"staffline/internal/calendar"
	"staffline/internal/domain"
	"staffline/internal/engine"
)

// DemoOptions configures SeedDemo. A zero Start means the Monday after today.
type DemoOptions struct {
	ReleaseName string
	Start       time.Time
	Seed        int64
	ActorID     string
}

type DemoResult struct {
	Release    domain.Release
	Resources  []domain.Resource
	Estimates  int
	Generation engine.GenerationSummary
}

// demoPhases are offsets in days from the start Monday; every window runs Monday to Friday.
var demoPhases = []struct {
	Type       domain.PhaseType
	Start, End int
}{
	{domain.PhaseFunctionalDesign, 0, 11},
	{domain.PhaseTechnicalDesign, 14, 25},
	{domain.PhaseBuild, 28, 53},
	{domain.PhaseSIT, 56, 67},
	{domain.PhaseUAT, 70, 74},
}

var demoPool = []struct {
	Skill domain.SkillFunction
	Sub   string
	Count int
}{
	{domain.SkillFunctionalDesign, "", 2},
	{domain.SkillTechnicalDesign, "", 2},
	{domain.SkillBuild, "Java", 2},
	{domain.SkillBuild, ".NET", 2},
	{domain.SkillTest, "Manual", 3},
}

// SeedDemo creates a release with a full phase plan, a fake resource pool and random estimates,
// then generates its allocations. The same seed always yields the same names and efforts.
func SeedDemo(ctx context.Context, e engine.Engine, opts DemoOptions) (DemoResult, error) {
	faker := gofakeit.New(opts.Seed)
	start := opts.Start
	if start.IsZero() {
		now := time.Now
		if e.Now != nil {
			now = e.Now
		}
		start = calendar.WeekStart(calendar.Day(now())).AddDate(0, 0, 7)
	}
	start = calendar.WeekStart(start)
	name := opts.ReleaseName
	if name == "" {
		name = fmt.Sprintf("%s %s", faker.AppName(), faker.AppVersion())
	}

	var out DemoResult
	rel, err := e.CreateRelease(ctx, engine.ReleaseCreateOptions{Name: name, Status: "planned", ActorID: opts.ActorID})
	if err != nil {
		return out, err
	}
	out.Release = rel
	for _, p := range demoPhases {
		if _, err := e.SetPhase(ctx, engine.PhaseOptions{
			ReleaseID: rel.ID,
			Type:      string(p.Type),
			StartDate: calendar.Format(start.AddDate(0, 0, p.Start)),
			EndDate:   calendar.Format(start.AddDate(0, 0, p.End)),
			ActorID:   opts.ActorID,
		}); err != nil {
			return out, err
		}
	}
	for _, slot := range demoPool {
		for i := 0; i < slot.Count; i++ {
			res, err := e.CreateResource(ctx, engine.ResourceCreateOptions{
				Name:          faker.Name(),
				SkillFunction: string(slot.Skill),
				SubFunction:   slot.Sub,
				ActorID:       opts.ActorID,
			})
			if err != nil {
				return out, err
			}
			out.Resources = append(out.Resources, res)
		}
	}

	for i := 0; i < 3; i++ {
		item, err := e.CreateScopeItem(ctx, rel.ID, faker.BuzzWord()+" "+faker.NounAbstract(), opts.ActorID)
		if err != nil {
			return out, err
		}
		efforts := []engine.EstimateOptions{
			{PhaseType: string(domain.PhaseFunctionalDesign), SkillFunction: string(domain.SkillFunctionalDesign), EffortDays: float64(faker.IntRange(2, 6))},
			{PhaseType: string(domain.PhaseTechnicalDesign), SkillFunction: string(domain.SkillTechnicalDesign), EffortDays: float64(faker.IntRange(2, 6))},
			{PhaseType: string(domain.PhaseBuild), SkillFunction: string(domain.SkillBuild), SubFunction: faker.RandomString([]string{"Java", ".NET"}), EffortDays: float64(faker.IntRange(5, 15))},
			{PhaseType: string(domain.PhaseSIT), SkillFunction: string(domain.SkillTest), EffortDays: float64(faker.IntRange(3, 8))},
		}
		for _, est := range efforts {
			est.ScopeItemID = item.ID
			est.ActorID = opts.ActorID
			if _, err := e.AddEstimate(ctx, est); err != nil {
				return out, err
			}
			out.Estimates++
		}
	}

	out.Generation, err = e.GenerateAllocation(ctx, rel.ID, opts.ActorID)
	return out, err
}
