package domain

import "time"

// PhaseType identifies a stage of a release. At most one phase per type exists per release.
type PhaseType string

const (
	PhaseFunctionalDesign  PhaseType = "functional_design"
	PhaseTechnicalDesign   PhaseType = "technical_design"
	PhaseBuild             PhaseType = "build"
	PhaseSIT               PhaseType = "sit"
	PhaseUAT               PhaseType = "uat"
	PhaseSmokeTesting      PhaseType = "smoke_testing"
	PhaseGoLive            PhaseType = "go_live"
	PhaseRegressionTesting PhaseType = "regression_testing"
	PhaseHypercare         PhaseType = "hypercare"
)

// PhaseTypes lists every known phase type in release order.
var PhaseTypes = []PhaseType{
	PhaseFunctionalDesign,
	PhaseTechnicalDesign,
	PhaseBuild,
	PhaseSIT,
	PhaseUAT,
	PhaseSmokeTesting,
	PhaseGoLive,
	PhaseRegressionTesting,
	PhaseHypercare,
}

func (p PhaseType) Valid() bool {
	for _, known := range PhaseTypes {
		if p == known {
			return true
		}
	}
	return false
}

// SkillFunction is the primary discipline of a resource or an estimate.
type SkillFunction string

const (
	SkillFunctionalDesign SkillFunction = "functional_design"
	SkillTechnicalDesign  SkillFunction = "technical_design"
	SkillBuild            SkillFunction = "build"
	SkillTest             SkillFunction = "test"
)

var SkillFunctions = []SkillFunction{SkillFunctionalDesign, SkillTechnicalDesign, SkillBuild, SkillTest}

func (s SkillFunction) Valid() bool {
	for _, known := range SkillFunctions {
		if s == known {
			return true
		}
	}
	return false
}

const (
	ResourceActive   = "active"
	ResourceInactive = "inactive"
)

type Release struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status" enum:"planned,active,closed"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Phase is a dated stage of a release. Dates are calendar days at UTC midnight, both inclusive.
type Phase struct {
	ReleaseID int64     `json:"release_id"`
	Type      PhaseType `json:"phase_type"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type Resource struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	SkillFunction SkillFunction `json:"skill_function"`
	SubFunction   string        `json:"skill_sub_function,omitempty"`
	Status        string        `json:"status" enum:"active,inactive"`
	CreatedAt     string        `json:"created_at" format:"date-time"`
}

func (r Resource) Active() bool { return r.Status == ResourceActive }

type ScopeItem struct {
	ID        int64  `json:"id"`
	ReleaseID int64  `json:"release_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// EffortEstimate is planned work in days for one skill (and optional sub-skill) in one phase.
type EffortEstimate struct {
	ID            int64         `json:"id"`
	ScopeItemID   int64         `json:"scope_item_id"`
	SkillFunction SkillFunction `json:"skill_function"`
	SubFunction   string        `json:"skill_sub_function,omitempty"`
	PhaseType     PhaseType     `json:"phase_type"`
	EffortDays    float64       `json:"effort_days"`
}

// Allocation commits a resource to a phase window for Factor of each working day.
// Days is Factor times the working days of the window.
type Allocation struct {
	ID           string    `json:"id"`
	ResourceID   int64     `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	ReleaseID    int64     `json:"release_id"`
	PhaseType    PhaseType `json:"phase_type"`
	SubFunction  string    `json:"sub_function,omitempty"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Factor       float64   `json:"allocation_factor"`
	Days         float64   `json:"allocation_days"`
	CreatedAt    string    `json:"created_at,omitempty"`
}

type ConflictWeek struct {
	WeekStart       time.Time `json:"week_start"`
	TotalAllocation float64   `json:"total_allocation"`
	Threshold       float64   `json:"threshold"`
	Excess          float64   `json:"excess"`
}

type ResourceConflicts struct {
	ResourceID   int64          `json:"resource_id"`
	ResourceName string         `json:"resource_name,omitempty"`
	Weeks        []ConflictWeek `json:"weeks"`
}

type UtilizationRow struct {
	ResourceID         int64     `json:"resource_id"`
	ResourceName       string    `json:"resource_name,omitempty"`
	WeekStart          time.Time `json:"week_start"`
	AllocatedDays      float64   `json:"allocated_days"`
	CapacityDays       float64   `json:"capacity_days"`
	UtilizationPercent float64   `json:"utilization_percent"`
}

type CapacityRow struct {
	ResourceID    int64         `json:"resource_id"`
	ResourceName  string        `json:"resource_name,omitempty"`
	SkillFunction SkillFunction `json:"skill_function"`
	SubFunction   string        `json:"skill_sub_function,omitempty"`
	WeekStart     time.Time     `json:"week_start"`
	AllocatedDays float64       `json:"allocated_days"`
	CapacityDays  float64       `json:"capacity_days"`
	AvailableDays float64       `json:"available_days"`
}

type SkillCapacityRow struct {
	SkillFunction SkillFunction `json:"skill_function"`
	SubFunction   string        `json:"skill_sub_function,omitempty"`
	WeekStart     time.Time     `json:"week_start"`
	Headcount     int           `json:"headcount"`
	AllocatedDays float64       `json:"allocated_days"`
	CapacityDays  float64       `json:"capacity_days"`
	AvailableDays float64       `json:"available_days"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
