package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"staffline/internal/calendar"
	"staffline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

// Releases

func (r Repo) InsertReleaseTx(ctx context.Context, tx *sql.Tx, rel domain.Release) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO releases(name,status,created_at) VALUES (?,?,?)`, rel.Name, rel.Status, rel.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetRelease(ctx context.Context, id int64) (domain.Release, error) {
	return r.getRelease(ctx, r.DB, id)
}

func (r Repo) GetReleaseTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Release, error) {
	return r.getRelease(ctx, tx, id)
}

func (r Repo) getRelease(ctx context.Context, q querier, id int64) (domain.Release, error) {
	var rel domain.Release
	err := q.QueryRowContext(ctx, `SELECT id,name,status,created_at FROM releases WHERE id=?`, id).
		Scan(&rel.ID, &rel.Name, &rel.Status, &rel.CreatedAt)
	if err == sql.ErrNoRows {
		return rel, ErrNotFound
	}
	return rel, err
}

func (r Repo) ListReleases(ctx context.Context, status string) ([]domain.Release, error) {
	query := `SELECT id,name,status,created_at FROM releases`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Release
	for rows.Next() {
		var rel domain.Release
		if err := rows.Scan(&rel.ID, &rel.Name, &rel.Status, &rel.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rel)
	}
	return res, rows.Err()
}

func (r Repo) UpdateReleaseStatusTx(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE releases SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Phases

// UpsertPhaseTx sets the window of a phase; a release has at most one phase per type.
func (r Repo) UpsertPhaseTx(ctx context.Context, tx *sql.Tx, p domain.Phase, now string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO phases(release_id,phase_type,start_date,end_date,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(release_id,phase_type) DO UPDATE SET start_date=excluded.start_date, end_date=excluded.end_date, updated_at=excluded.updated_at`,
		p.ReleaseID, string(p.Type), calendar.Format(p.StartDate), calendar.Format(p.EndDate), now)
	return err
}

func (r Repo) ListPhases(ctx context.Context, releaseID int64) ([]domain.Phase, error) {
	return r.listPhases(ctx, r.DB, releaseID)
}

func (r Repo) ListPhasesTx(ctx context.Context, tx *sql.Tx, releaseID int64) ([]domain.Phase, error) {
	return r.listPhases(ctx, tx, releaseID)
}

func (r Repo) listPhases(ctx context.Context, q querier, releaseID int64) ([]domain.Phase, error) {
	rows, err := q.QueryContext(ctx, `SELECT release_id,phase_type,start_date,end_date FROM phases WHERE release_id=? ORDER BY start_date, phase_type`, releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Phase
	for rows.Next() {
		var (
			p          domain.Phase
			pt         string
			start, end string
		)
		if err := rows.Scan(&p.ReleaseID, &pt, &start, &end); err != nil {
			return nil, err
		}
		p.Type = domain.PhaseType(pt)
		if p.StartDate, err = calendar.ParseDate(start); err != nil {
			return nil, fmt.Errorf("phase %s start: %w", pt, err)
		}
		if p.EndDate, err = calendar.ParseDate(end); err != nil {
			return nil, fmt.Errorf("phase %s end: %w", pt, err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Resources

type ResourceFilter struct {
	SkillFunction domain.SkillFunction
	SubFunction   string
	Status        string
	IDs           []int64
}

func (r Repo) InsertResourceTx(ctx context.Context, tx *sql.Tx, res domain.Resource) (int64, error) {
	out, err := tx.ExecContext(ctx, `INSERT INTO resources(name,skill_function,skill_sub_function,status,created_at) VALUES (?,?,?,?,?)`,
		res.Name, string(res.SkillFunction), res.SubFunction, res.Status, res.CreatedAt)
	if err != nil {
		return 0, err
	}
	return out.LastInsertId()
}

func (r Repo) GetResource(ctx context.Context, id int64) (domain.Resource, error) {
	var res domain.Resource
	var skill string
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,skill_function,skill_sub_function,status,created_at FROM resources WHERE id=?`, id).
		Scan(&res.ID, &res.Name, &skill, &res.SubFunction, &res.Status, &res.CreatedAt)
	if err == sql.ErrNoRows {
		return res, ErrNotFound
	}
	res.SkillFunction = domain.SkillFunction(skill)
	return res, err
}

func (r Repo) SetResourceStatusTx(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE resources SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListResources(ctx context.Context, f ResourceFilter) ([]domain.Resource, error) {
	return r.listResources(ctx, r.DB, f)
}

func (r Repo) ListResourcesTx(ctx context.Context, tx *sql.Tx, f ResourceFilter) ([]domain.Resource, error) {
	return r.listResources(ctx, tx, f)
}

func (r Repo) listResources(ctx context.Context, q querier, f ResourceFilter) ([]domain.Resource, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.SkillFunction != "" {
		clauses = append(clauses, "skill_function=?")
		args = append(args, string(f.SkillFunction))
	}
	if f.SubFunction != "" {
		clauses = append(clauses, "skill_sub_function=?")
		args = append(args, f.SubFunction)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if len(f.IDs) > 0 {
		clauses = append(clauses, "id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	query := `SELECT id,name,skill_function,skill_sub_function,status,created_at FROM resources WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Resource
	for rows.Next() {
		var item domain.Resource
		var skill string
		if err := rows.Scan(&item.ID, &item.Name, &skill, &item.SubFunction, &item.Status, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.SkillFunction = domain.SkillFunction(skill)
		res = append(res, item)
	}
	return res, rows.Err()
}

// Scope items and estimates

func (r Repo) InsertScopeItemTx(ctx context.Context, tx *sql.Tx, s domain.ScopeItem) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO scope_items(release_id,name,created_at) VALUES (?,?,?)`, s.ReleaseID, s.Name, s.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetScopeItem(ctx context.Context, id int64) (domain.ScopeItem, error) {
	var s domain.ScopeItem
	err := r.DB.QueryRowContext(ctx, `SELECT id,release_id,name,created_at FROM scope_items WHERE id=?`, id).
		Scan(&s.ID, &s.ReleaseID, &s.Name, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) ListScopeItems(ctx context.Context, releaseID int64) ([]domain.ScopeItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,release_id,name,created_at FROM scope_items WHERE release_id=? ORDER BY id`, releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScopeItem
	for rows.Next() {
		var s domain.ScopeItem
		if err := rows.Scan(&s.ID, &s.ReleaseID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) InsertEstimateTx(ctx context.Context, tx *sql.Tx, e domain.EffortEstimate) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO effort_estimates(scope_item_id,skill_function,skill_sub_function,phase_type,effort_days) VALUES (?,?,?,?,?)`,
		e.ScopeItemID, string(e.SkillFunction), e.SubFunction, string(e.PhaseType), e.EffortDays)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEstimates returns every estimate of the scope items of a release.
func (r Repo) ListEstimates(ctx context.Context, releaseID int64) ([]domain.EffortEstimate, error) {
	return r.listEstimates(ctx, r.DB, releaseID)
}

func (r Repo) ListEstimatesTx(ctx context.Context, tx *sql.Tx, releaseID int64) ([]domain.EffortEstimate, error) {
	return r.listEstimates(ctx, tx, releaseID)
}

func (r Repo) listEstimates(ctx context.Context, q querier, releaseID int64) ([]domain.EffortEstimate, error) {
	rows, err := q.QueryContext(ctx, `SELECT e.id,e.scope_item_id,e.skill_function,e.skill_sub_function,e.phase_type,e.effort_days
FROM effort_estimates e JOIN scope_items s ON s.id=e.scope_item_id
WHERE s.release_id=? ORDER BY e.id`, releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EffortEstimate
	for rows.Next() {
		var e domain.EffortEstimate
		var skill, phase string
		if err := rows.Scan(&e.ID, &e.ScopeItemID, &skill, &e.SubFunction, &phase, &e.EffortDays); err != nil {
			return nil, err
		}
		e.SkillFunction = domain.SkillFunction(skill)
		e.PhaseType = domain.PhaseType(phase)
		res = append(res, e)
	}
	return res, rows.Err()
}

// Events

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id DESC LIMIT ?`, strings.Join(clauses, " AND "))
	args = append(args, limit)
	return r.scanEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.scanEvents(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

// LatestEventID returns the most recent event ID, or 0 when there are none.
func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) scanEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Timestamp formats t the way every created_at column stores it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
