package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"staffline/internal/calendar"
	"staffline/internal/domain"
)

// ReplaceResult is the before/after snapshot of a release's allocation set.
type ReplaceResult struct {
	Removed  int `json:"removed"`
	Inserted int `json:"inserted"`
}

// ReplaceAllocations deletes every allocation of a release and inserts rows in their place.
// It runs inside the caller's transaction; nothing is visible to other readers until commit.
func (r Repo) ReplaceAllocations(ctx context.Context, tx *sql.Tx, releaseID int64, rows []domain.Allocation, now string) (ReplaceResult, error) {
	var out ReplaceResult
	res, err := tx.ExecContext(ctx, `DELETE FROM allocations WHERE release_id=?`, releaseID)
	if err != nil {
		return out, fmt.Errorf("clear allocations: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return out, fmt.Errorf("clear allocations: %w", err)
	}
	out.Removed = int(removed)
	if len(rows) == 0 {
		return out, nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO allocations(id,resource_id,release_id,phase_type,sub_function,start_date,end_date,allocation_factor,allocation_days,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return out, err
	}
	defer stmt.Close()
	for _, a := range rows {
		if a.ReleaseID != releaseID {
			return out, fmt.Errorf("allocation %s belongs to release %d, not %d", a.ID, a.ReleaseID, releaseID)
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.ResourceID, a.ReleaseID, string(a.PhaseType), a.SubFunction,
			calendar.Format(a.StartDate), calendar.Format(a.EndDate), a.Factor, a.Days, now); err != nil {
			return out, fmt.Errorf("insert allocation: %w", err)
		}
		out.Inserted++
	}
	return out, nil
}

// AllocationFilter selects allocations by release and/or resource; zero fields match everything.
type AllocationFilter struct {
	ReleaseID  int64
	ResourceID int64
}

func (r Repo) ListAllocations(ctx context.Context, f AllocationFilter) ([]domain.Allocation, error) {
	return r.listAllocations(ctx, r.DB, f)
}

func (r Repo) ListAllocationsTx(ctx context.Context, tx *sql.Tx, f AllocationFilter) ([]domain.Allocation, error) {
	return r.listAllocations(ctx, tx, f)
}

func (r Repo) listAllocations(ctx context.Context, q querier, f AllocationFilter) ([]domain.Allocation, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.ReleaseID != 0 {
		clauses = append(clauses, "a.release_id=?")
		args = append(args, f.ReleaseID)
	}
	if f.ResourceID != 0 {
		clauses = append(clauses, "a.resource_id=?")
		args = append(args, f.ResourceID)
	}
	query := `SELECT a.id,a.resource_id,COALESCE(r.name,''),a.release_id,a.phase_type,a.sub_function,a.start_date,a.end_date,a.allocation_factor,a.allocation_days,a.created_at
FROM allocations a LEFT JOIN resources r ON r.id=a.resource_id
WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY a.release_id, a.start_date, a.phase_type, a.resource_id, a.id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Allocation
	for rows.Next() {
		var (
			a          domain.Allocation
			phase      string
			start, end string
		)
		if err := rows.Scan(&a.ID, &a.ResourceID, &a.ResourceName, &a.ReleaseID, &phase, &a.SubFunction,
			&start, &end, &a.Factor, &a.Days, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.PhaseType = domain.PhaseType(phase)
		if a.StartDate, err = calendar.ParseDate(start); err != nil {
			return nil, err
		}
		if a.EndDate, err = calendar.ParseDate(end); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// CountAllocations returns the number of allocation rows of a release.
func (r Repo) CountAllocations(ctx context.Context, releaseID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM allocations WHERE release_id=?`, releaseID).Scan(&n)
	return n, err
}
