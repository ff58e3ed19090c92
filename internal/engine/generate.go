package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"staffline/internal/domain"
	"staffline/internal/events"
	"staffline/internal/metrics"
	"staffline/internal/planner"
	"staffline/internal/repo"
)

// GenerationSummary reports what a regeneration replaced. Shortfalls list effort the pool
// could not cover; they never fail the run.
type GenerationSummary struct {
	ReleaseID  int64               `json:"release_id"`
	Removed    int                 `json:"removed"`
	Inserted   int                 `json:"inserted"`
	Shortfalls []planner.Shortfall `json:"shortfalls"`
}

// GenerateAllocation recomputes the allocation set of a release from its estimates, phases and
// the active resource pool, and swaps it in atomically. Loading, clearing and inserting share one
// transaction: on any failure the previous set stays in place. Running it twice on unchanged
// inputs writes the same rows.
func (e Engine) GenerateAllocation(ctx context.Context, releaseID int64, actorID string) (summary GenerationSummary, err error) {
	started := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		metrics.GenerationRuns.WithLabelValues(outcome).Inc()
		metrics.GenerationDurationSeconds.Observe(time.Since(started).Seconds())
	}()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return summary, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetReleaseTx(ctx, tx, releaseID); err != nil {
		return summary, err
	}
	in, err := e.loadPlanInput(ctx, tx, releaseID)
	if err != nil {
		return summary, err
	}
	if len(in.Estimates) == 0 {
		outcome = "empty"
	}
	result := planner.Plan(in, e.rules())

	replaced, err := e.Repo.ReplaceAllocations(ctx, tx, releaseID, result.Allocations, e.timestamp())
	if err != nil {
		return summary, err
	}
	summary = GenerationSummary{
		ReleaseID:  releaseID,
		Removed:    replaced.Removed,
		Inserted:   replaced.Inserted,
		Shortfalls: result.Shortfalls,
	}
	if summary.Shortfalls == nil {
		summary.Shortfalls = []planner.Shortfall{}
	}
	if err := e.Events.Append(ctx, tx, events.AllocationGenerated, events.KindRelease, fmt.Sprint(releaseID), actor(actorID), events.EventPayload{
		"removed":    summary.Removed,
		"inserted":   summary.Inserted,
		"shortfalls": len(summary.Shortfalls),
	}); err != nil {
		return summary, err
	}
	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit allocations: %w", err)
	}

	for _, a := range result.Allocations {
		metrics.AllocationsWritten.WithLabelValues(string(a.PhaseType)).Inc()
	}
	for _, s := range summary.Shortfalls {
		metrics.ShortfallDays.WithLabelValues(s.Reason).Add(s.MissingDays())
		e.Log.Warn().
			Int64("release_id", releaseID).
			Str("phase_type", string(s.PhaseType)).
			Str("skill_function", string(s.SkillFunction)).
			Str("skill_sub_function", s.SubFunction).
			Float64("effort_days", s.EffortDays).
			Float64("covered_days", s.CoveredDays).
			Str("reason", s.Reason).
			Msg("capacity shortfall")
	}
	e.Log.Info().
		Int64("release_id", releaseID).
		Int("removed", summary.Removed).
		Int("inserted", summary.Inserted).
		Dur("duration", time.Since(started)).
		Msg("allocations generated")
	return summary, nil
}

func (e Engine) loadPlanInput(ctx context.Context, tx *sql.Tx, releaseID int64) (planner.Input, error) {
	estimates, err := e.Repo.ListEstimatesTx(ctx, tx, releaseID)
	if err != nil {
		return planner.Input{}, fmt.Errorf("load estimates: %w", err)
	}
	phases, err := e.Repo.ListPhasesTx(ctx, tx, releaseID)
	if err != nil {
		return planner.Input{}, fmt.Errorf("load phases: %w", err)
	}
	resources, err := e.Repo.ListResourcesTx(ctx, tx, repo.ResourceFilter{Status: domain.ResourceActive})
	if err != nil {
		return planner.Input{}, fmt.Errorf("load resources: %w", err)
	}
	byType := make(map[domain.PhaseType]domain.Phase, len(phases))
	for _, p := range phases {
		byType[p.Type] = p
	}
	return planner.Input{
		ReleaseID: releaseID,
		Estimates: estimates,
		Phases:    byType,
		Pool:      planner.NewPool(resources),
	}, nil
}
