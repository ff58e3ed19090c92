package server

import (
	"encoding/json"

	"staffline/internal/calendar"
	"staffline/internal/domain"
	"staffline/internal/engine"
	"staffline/internal/planner"
)

// Request payloads

type CreateReleaseRequest struct {
	Name   string `json:"name" minLength:"1"`
	Status string `json:"status,omitempty" enum:"planned,active,closed"`
}

type UpdateReleaseRequest struct {
	Status string `json:"status" enum:"planned,active,closed"`
}

type SetPhaseRequest struct {
	StartDate string `json:"start_date" format:"date" example:"2024-01-01"`
	EndDate   string `json:"end_date" format:"date" example:"2024-01-12"`
}

type CreateResourceRequest struct {
	Name             string `json:"name" minLength:"1"`
	SkillFunction    string `json:"skill_function" enum:"functional_design,technical_design,build,test"`
	SkillSubFunction string `json:"skill_sub_function,omitempty"`
}

type UpdateResourceRequest struct {
	Status string `json:"status" enum:"active,inactive"`
}

type CreateScopeItemRequest struct {
	Name string `json:"name" minLength:"1"`
}

type CreateEstimateRequest struct {
	SkillFunction    string  `json:"skill_function" enum:"functional_design,technical_design,build,test"`
	SkillSubFunction string  `json:"skill_sub_function,omitempty"`
	PhaseType        string  `json:"phase_type"`
	EffortDays       float64 `json:"effort_days" minimum:"0"`
}

// Response payloads

type PhaseResponse struct {
	ReleaseID int64  `json:"release_id"`
	PhaseType string `json:"phase_type"`
	StartDate string `json:"start_date" format:"date"`
	EndDate   string `json:"end_date" format:"date"`
}

func phaseResponse(p domain.Phase) PhaseResponse {
	return PhaseResponse{
		ReleaseID: p.ReleaseID,
		PhaseType: string(p.Type),
		StartDate: calendar.Format(p.StartDate),
		EndDate:   calendar.Format(p.EndDate),
	}
}

type AllocationResponse struct {
	ID               string  `json:"id"`
	ResourceID       int64   `json:"resource_id"`
	ResourceName     string  `json:"resource_name,omitempty"`
	ReleaseID        int64   `json:"release_id"`
	PhaseType        string  `json:"phase_type"`
	SubFunction      string  `json:"sub_function,omitempty"`
	StartDate        string  `json:"start_date" format:"date"`
	EndDate          string  `json:"end_date" format:"date"`
	AllocationFactor float64 `json:"allocation_factor"`
	AllocationDays   float64 `json:"allocation_days"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

func allocationResponse(a domain.Allocation) AllocationResponse {
	return AllocationResponse{
		ID:               a.ID,
		ResourceID:       a.ResourceID,
		ResourceName:     a.ResourceName,
		ReleaseID:        a.ReleaseID,
		PhaseType:        string(a.PhaseType),
		SubFunction:      a.SubFunction,
		StartDate:        calendar.Format(a.StartDate),
		EndDate:          calendar.Format(a.EndDate),
		AllocationFactor: a.Factor,
		AllocationDays:   a.Days,
		CreatedAt:        a.CreatedAt,
	}
}

type GenerationResponse struct {
	ReleaseID  int64               `json:"release_id"`
	Removed    int                 `json:"removed"`
	Inserted   int                 `json:"inserted"`
	Shortfalls []planner.Shortfall `json:"shortfalls"`
}

func generationResponse(s engine.GenerationSummary) GenerationResponse {
	out := GenerationResponse(s)
	if out.Shortfalls == nil {
		out.Shortfalls = []planner.Shortfall{}
	}
	return out
}

type ConflictWeekResponse struct {
	WeekStart       string  `json:"week_start" format:"date"`
	TotalAllocation float64 `json:"total_allocation"`
	Threshold       float64 `json:"threshold"`
	Excess          float64 `json:"excess"`
}

type ResourceConflictsResponse struct {
	ResourceID   int64                  `json:"resource_id"`
	ResourceName string                 `json:"resource_name,omitempty"`
	Weeks        []ConflictWeekResponse `json:"weeks"`
}

func conflictsResponse(items []domain.ResourceConflicts) []ResourceConflictsResponse {
	out := make([]ResourceConflictsResponse, 0, len(items))
	for _, c := range items {
		r := ResourceConflictsResponse{ResourceID: c.ResourceID, ResourceName: c.ResourceName}
		for _, w := range c.Weeks {
			r.Weeks = append(r.Weeks, ConflictWeekResponse{
				WeekStart:       calendar.Format(w.WeekStart),
				TotalAllocation: w.TotalAllocation,
				Threshold:       w.Threshold,
				Excess:          w.Excess,
			})
		}
		out = append(out, r)
	}
	return out
}

type UtilizationResponse struct {
	ResourceID         int64   `json:"resource_id"`
	ResourceName       string  `json:"resource_name,omitempty"`
	WeekStart          string  `json:"week_start" format:"date"`
	AllocatedDays      float64 `json:"allocated_days"`
	CapacityDays       float64 `json:"capacity_days"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

type CapacityResponse struct {
	ResourceID       int64   `json:"resource_id"`
	ResourceName     string  `json:"resource_name,omitempty"`
	SkillFunction    string  `json:"skill_function"`
	SkillSubFunction string  `json:"skill_sub_function,omitempty"`
	WeekStart        string  `json:"week_start" format:"date"`
	AllocatedDays    float64 `json:"allocated_days"`
	CapacityDays     float64 `json:"capacity_days"`
	AvailableDays    float64 `json:"available_days"`
}

type SkillCapacityResponse struct {
	SkillFunction    string  `json:"skill_function"`
	SkillSubFunction string  `json:"skill_sub_function,omitempty"`
	WeekStart        string  `json:"week_start" format:"date"`
	Headcount        int     `json:"headcount"`
	AllocatedDays    float64 `json:"allocated_days"`
	CapacityDays     float64 `json:"capacity_days"`
	AvailableDays    float64 `json:"available_days"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

func eventResponse(evt domain.Event) EventResponse {
	payload := json.RawMessage("{}")
	if json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

func utilizationResponse(rows []domain.UtilizationRow) []UtilizationResponse {
	out := make([]UtilizationResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, UtilizationResponse{
			ResourceID:         r.ResourceID,
			ResourceName:       r.ResourceName,
			WeekStart:          calendar.Format(r.WeekStart),
			AllocatedDays:      r.AllocatedDays,
			CapacityDays:       r.CapacityDays,
			UtilizationPercent: r.UtilizationPercent,
		})
	}
	return out
}

func capacityResponse(rows []domain.CapacityRow) []CapacityResponse {
	out := make([]CapacityResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, CapacityResponse{
			ResourceID:       r.ResourceID,
			ResourceName:     r.ResourceName,
			SkillFunction:    string(r.SkillFunction),
			SkillSubFunction: r.SubFunction,
			WeekStart:        calendar.Format(r.WeekStart),
			AllocatedDays:    r.AllocatedDays,
			CapacityDays:     r.CapacityDays,
			AvailableDays:    r.AvailableDays,
		})
	}
	return out
}

func skillCapacityResponse(rows []domain.SkillCapacityRow) []SkillCapacityResponse {
	out := make([]SkillCapacityResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, SkillCapacityResponse{
			SkillFunction:    string(r.SkillFunction),
			SkillSubFunction: r.SubFunction,
			WeekStart:        calendar.Format(r.WeekStart),
			Headcount:        r.Headcount,
			AllocatedDays:    r.AllocatedDays,
			CapacityDays:     r.CapacityDays,
			AvailableDays:    r.AvailableDays,
		})
	}
	return out
}
