package engine

import (
	"context"
	"database/sql"
	"strings"

	"staffline/internal/domain"
	"staffline/internal/forecast"
	"staffline/internal/metrics"
	"staffline/internal/repo"
)

// AllocationQuery selects stored allocations by release or by resource.
type AllocationQuery struct {
	ReleaseID  int64
	ResourceID int64
}

// Allocations reads stored rows; it never recomputes.
func (e Engine) Allocations(ctx context.Context, q AllocationQuery) ([]domain.Allocation, error) {
	if q.ReleaseID != 0 {
		if _, err := e.Repo.GetRelease(ctx, q.ReleaseID); err != nil {
			return nil, err
		}
	}
	if q.ResourceID != 0 {
		if _, err := e.Repo.GetResource(ctx, q.ResourceID); err != nil {
			return nil, err
		}
	}
	return e.Repo.ListAllocations(ctx, repo.AllocationFilter{ReleaseID: q.ReleaseID, ResourceID: q.ResourceID})
}

// Conflicts scans the allocations of every release for overloaded weeks.
func (e Engine) Conflicts(ctx context.Context) ([]domain.ResourceConflicts, error) {
	allocs, err := e.Repo.ListAllocations(ctx, repo.AllocationFilter{})
	if err != nil {
		return nil, err
	}
	out := forecast.Conflicts(allocs, e.weeklyCapacity())
	weeks := 0
	for _, c := range out {
		weeks += len(c.Weeks)
	}
	metrics.ConflictWeeks.Set(float64(weeks))
	metrics.ReportRequests.WithLabelValues("conflicts").Inc()
	return out, nil
}

// ReportQuery is the common input of the weekly reports. Dates are YYYY-MM-DD.
type ReportQuery struct {
	From          string
	To            string
	ResourceIDs   []int64
	SkillFunction string
	SubFunction   string
}

func (q ReportQuery) rng() (forecast.Range, error) {
	from, err := parseDate("from", q.From)
	if err != nil {
		return forecast.Range{}, err
	}
	to, err := parseDate("to", q.To)
	if err != nil {
		return forecast.Range{}, err
	}
	if to.Before(from) {
		return forecast.Range{}, invalid("to %s is before from %s", q.To, q.From)
	}
	return forecast.Range{From: from, To: to}, nil
}

func (q ReportQuery) filter() (forecast.SkillFilter, error) {
	f := forecast.SkillFilter{
		SkillFunction: domain.SkillFunction(strings.TrimSpace(q.SkillFunction)),
		SubFunction:   strings.TrimSpace(q.SubFunction),
	}
	if f.SkillFunction != "" && !f.SkillFunction.Valid() {
		return f, invalid("unknown skill function %q", q.SkillFunction)
	}
	return f, nil
}

// reportInputs loads every resource and allocation in one read-only transaction so a report never
// mixes the sets before and after a concurrent regeneration. Read-only transactions skip the
// immediate write lock and read the last committed snapshot.
func (e Engine) reportInputs(ctx context.Context) ([]domain.Resource, []domain.Allocation, error) {
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()
	resources, err := e.Repo.ListResourcesTx(ctx, tx, repo.ResourceFilter{})
	if err != nil {
		return nil, nil, err
	}
	allocs, err := e.Repo.ListAllocationsTx(ctx, tx, repo.AllocationFilter{})
	if err != nil {
		return nil, nil, err
	}
	return resources, allocs, tx.Commit()
}

func (e Engine) Utilization(ctx context.Context, q ReportQuery) ([]domain.UtilizationRow, error) {
	rng, err := q.rng()
	if err != nil {
		return nil, err
	}
	resources, allocs, err := e.reportInputs(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ReportRequests.WithLabelValues("utilization").Inc()
	return forecast.Utilization(resources, allocs, rng, e.weeklyCapacity(), q.ResourceIDs), nil
}

func (e Engine) CapacityForecast(ctx context.Context, q ReportQuery) ([]domain.CapacityRow, error) {
	rng, err := q.rng()
	if err != nil {
		return nil, err
	}
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	resources, allocs, err := e.reportInputs(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ReportRequests.WithLabelValues("capacity").Inc()
	return forecast.Capacity(resources, allocs, rng, e.weeklyCapacity(), f), nil
}

func (e Engine) SkillCapacityForecast(ctx context.Context, q ReportQuery) ([]domain.SkillCapacityRow, error) {
	rng, err := q.rng()
	if err != nil {
		return nil, err
	}
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	resources, allocs, err := e.reportInputs(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ReportRequests.WithLabelValues("skill_capacity").Inc()
	return forecast.SkillCapacity(resources, allocs, rng, e.weeklyCapacity(), f), nil
}
