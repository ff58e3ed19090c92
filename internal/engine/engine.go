package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"staffline/internal/calendar"
	"staffline/internal/config"
	"staffline/internal/domain"
	"staffline/internal/events"
	"staffline/internal/forecast"
	"staffline/internal/planner"
	"staffline/internal/repo"
)

// ErrInvalidInput marks requests rejected at the boundary before reaching the planner.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Log    zerolog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Log:    zerolog.Nop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return repo.Timestamp(e.now())
}

func (e Engine) rules() planner.Rules {
	if e.Config == nil {
		return planner.DefaultRules()
	}
	return e.Config.Rules()
}

func (e Engine) weeklyCapacity() float64 {
	if e.Config == nil || e.Config.Planning.WeeklyCapacityDays <= 0 {
		return forecast.DefaultWeeklyCapacity
	}
	return e.Config.Planning.WeeklyCapacityDays
}

func actor(id string) string {
	if strings.TrimSpace(id) == "" {
		return "local-user"
	}
	return id
}

func parseDate(field, value string) (time.Time, error) {
	d, err := calendar.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, invalid("%s: %v", field, err)
	}
	return d, nil
}

var releaseStatuses = map[string]bool{"planned": true, "active": true, "closed": true}

// ReleaseCreateOptions are parameters for creating a release.
type ReleaseCreateOptions struct {
	Name    string
	Status  string
	ActorID string
}

func (e Engine) CreateRelease(ctx context.Context, opts ReleaseCreateOptions) (domain.Release, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Release{}, invalid("release name is required")
	}
	if opts.Status == "" {
		opts.Status = "planned"
	}
	if !releaseStatuses[opts.Status] {
		return domain.Release{}, invalid("unknown release status %q", opts.Status)
	}
	rel := domain.Release{Name: name, Status: opts.Status, CreatedAt: e.timestamp()}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Release{}, err
	}
	defer tx.Rollback()
	if rel.ID, err = e.Repo.InsertReleaseTx(ctx, tx, rel); err != nil {
		return domain.Release{}, fmt.Errorf("insert release: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.ReleaseCreated, events.KindRelease, fmt.Sprint(rel.ID), actor(opts.ActorID),
		events.EventPayload{"name": rel.Name, "status": rel.Status}); err != nil {
		return domain.Release{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Release{}, err
	}
	return rel, nil
}

func (e Engine) SetReleaseStatus(ctx context.Context, id int64, status, actorID string) (domain.Release, error) {
	if !releaseStatuses[status] {
		return domain.Release{}, invalid("unknown release status %q", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Release{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateReleaseStatusTx(ctx, tx, id, status); err != nil {
		return domain.Release{}, err
	}
	rel, err := e.Repo.GetReleaseTx(ctx, tx, id)
	if err != nil {
		return domain.Release{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ReleaseStatus, events.KindRelease, fmt.Sprint(id), actor(actorID),
		events.EventPayload{"status": status}); err != nil {
		return domain.Release{}, err
	}
	return rel, tx.Commit()
}

// PhaseOptions sets the window of one phase of a release. Dates are YYYY-MM-DD, both inclusive.
type PhaseOptions struct {
	ReleaseID int64
	Type      string
	StartDate string
	EndDate   string
	ActorID   string
}

func (e Engine) SetPhase(ctx context.Context, opts PhaseOptions) (domain.Phase, error) {
	pt := domain.PhaseType(strings.TrimSpace(opts.Type))
	if !pt.Valid() {
		return domain.Phase{}, invalid("unknown phase type %q", opts.Type)
	}
	start, err := parseDate("start_date", opts.StartDate)
	if err != nil {
		return domain.Phase{}, err
	}
	end, err := parseDate("end_date", opts.EndDate)
	if err != nil {
		return domain.Phase{}, err
	}
	if end.Before(start) {
		return domain.Phase{}, invalid("phase %s ends %s before it starts %s", pt, calendar.Format(end), calendar.Format(start))
	}
	p := domain.Phase{ReleaseID: opts.ReleaseID, Type: pt, StartDate: start, EndDate: end}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Phase{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetReleaseTx(ctx, tx, opts.ReleaseID); err != nil {
		return domain.Phase{}, err
	}
	if err := e.Repo.UpsertPhaseTx(ctx, tx, p, e.timestamp()); err != nil {
		return domain.Phase{}, fmt.Errorf("upsert phase: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.PhaseSet, events.KindRelease, fmt.Sprint(p.ReleaseID), actor(opts.ActorID), events.EventPayload{
		"phase_type": string(pt),
		"start_date": calendar.Format(start),
		"end_date":   calendar.Format(end),
	}); err != nil {
		return domain.Phase{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Phase{}, err
	}
	return p, nil
}

// ResourceCreateOptions are parameters for adding a resource to the pool.
type ResourceCreateOptions struct {
	Name          string
	SkillFunction string
	SubFunction   string
	ActorID       string
}

func (e Engine) CreateResource(ctx context.Context, opts ResourceCreateOptions) (domain.Resource, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Resource{}, invalid("resource name is required")
	}
	skill := domain.SkillFunction(strings.TrimSpace(opts.SkillFunction))
	if !skill.Valid() {
		return domain.Resource{}, invalid("unknown skill function %q", opts.SkillFunction)
	}
	res := domain.Resource{
		Name:          name,
		SkillFunction: skill,
		SubFunction:   strings.TrimSpace(opts.SubFunction),
		Status:        domain.ResourceActive,
		CreatedAt:     e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Resource{}, err
	}
	defer tx.Rollback()
	if res.ID, err = e.Repo.InsertResourceTx(ctx, tx, res); err != nil {
		return domain.Resource{}, fmt.Errorf("insert resource: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.ResourceCreated, events.KindResource, fmt.Sprint(res.ID), actor(opts.ActorID), events.EventPayload{
		"name":               res.Name,
		"skill_function":     string(res.SkillFunction),
		"skill_sub_function": res.SubFunction,
	}); err != nil {
		return domain.Resource{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Resource{}, err
	}
	return res, nil
}

// SetResourceStatus activates or deactivates a resource. Existing allocations are kept; the
// resource only leaves the candidate pool for later generations.
func (e Engine) SetResourceStatus(ctx context.Context, id int64, status, actorID string) (domain.Resource, error) {
	if status != domain.ResourceActive && status != domain.ResourceInactive {
		return domain.Resource{}, invalid("unknown resource status %q", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Resource{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.SetResourceStatusTx(ctx, tx, id, status); err != nil {
		return domain.Resource{}, err
	}
	if err := e.Events.Append(ctx, tx, events.ResourceStatus, events.KindResource, fmt.Sprint(id), actor(actorID),
		events.EventPayload{"status": status}); err != nil {
		return domain.Resource{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Resource{}, err
	}
	return e.Repo.GetResource(ctx, id)
}

func (e Engine) CreateScopeItem(ctx context.Context, releaseID int64, name, actorID string) (domain.ScopeItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ScopeItem{}, invalid("scope item name is required")
	}
	item := domain.ScopeItem{ReleaseID: releaseID, Name: name, CreatedAt: e.timestamp()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ScopeItem{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetReleaseTx(ctx, tx, releaseID); err != nil {
		return domain.ScopeItem{}, err
	}
	if item.ID, err = e.Repo.InsertScopeItemTx(ctx, tx, item); err != nil {
		return domain.ScopeItem{}, fmt.Errorf("insert scope item: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.ScopeItemCreated, events.KindScopeItem, fmt.Sprint(item.ID), actor(actorID),
		events.EventPayload{"release_id": releaseID, "name": name}); err != nil {
		return domain.ScopeItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ScopeItem{}, err
	}
	return item, nil
}

// EstimateOptions records effort for one skill in one phase of a scope item.
type EstimateOptions struct {
	ScopeItemID   int64
	SkillFunction string
	SubFunction   string
	PhaseType     string
	EffortDays    float64
	ActorID       string
}

func (e Engine) AddEstimate(ctx context.Context, opts EstimateOptions) (domain.EffortEstimate, error) {
	pt := domain.PhaseType(strings.TrimSpace(opts.PhaseType))
	if !pt.Valid() {
		return domain.EffortEstimate{}, invalid("unknown phase type %q", opts.PhaseType)
	}
	if planner.IsDerived(pt) {
		return domain.EffortEstimate{}, invalid("phase %s is derived from build and sit effort and takes no estimates", pt)
	}
	skill := domain.SkillFunction(strings.TrimSpace(opts.SkillFunction))
	if !skill.Valid() {
		return domain.EffortEstimate{}, invalid("unknown skill function %q", opts.SkillFunction)
	}
	if opts.EffortDays < 0 {
		return domain.EffortEstimate{}, invalid("effort days must not be negative")
	}
	est := domain.EffortEstimate{
		ScopeItemID:   opts.ScopeItemID,
		SkillFunction: skill,
		SubFunction:   strings.TrimSpace(opts.SubFunction),
		PhaseType:     pt,
		EffortDays:    opts.EffortDays,
	}
	if _, err := e.Repo.GetScopeItem(ctx, opts.ScopeItemID); err != nil {
		return domain.EffortEstimate{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.EffortEstimate{}, err
	}
	defer tx.Rollback()
	if est.ID, err = e.Repo.InsertEstimateTx(ctx, tx, est); err != nil {
		return domain.EffortEstimate{}, fmt.Errorf("insert estimate: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.EstimateCreated, events.KindScopeItem, fmt.Sprint(est.ScopeItemID), actor(opts.ActorID), events.EventPayload{
		"estimate_id":        est.ID,
		"phase_type":         string(pt),
		"skill_function":     string(skill),
		"skill_sub_function": est.SubFunction,
		"effort_days":        est.EffortDays,
	}); err != nil {
		return domain.EffortEstimate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.EffortEstimate{}, err
	}
	return est, nil
}

func (e Engine) Estimates(ctx context.Context, releaseID int64) ([]domain.EffortEstimate, error) {
	if _, err := e.Repo.GetRelease(ctx, releaseID); err != nil {
		return nil, err
	}
	return e.Repo.ListEstimates(ctx, releaseID)
}

func (e Engine) Phases(ctx context.Context, releaseID int64) ([]domain.Phase, error) {
	if _, err := e.Repo.GetRelease(ctx, releaseID); err != nil {
		return nil, err
	}
	return e.Repo.ListPhases(ctx, releaseID)
}
