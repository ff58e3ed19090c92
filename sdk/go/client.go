package stafflinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Staffline HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// ActorID is sent as X-Actor-Id; the server only honours it when bearer auth is off.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Release struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Phase dates are YYYY-MM-DD, both inclusive.
type Phase struct {
	ReleaseID int64  `json:"release_id"`
	PhaseType string `json:"phase_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type Resource struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	SkillFunction    string `json:"skill_function"`
	SkillSubFunction string `json:"skill_sub_function,omitempty"`
	Status           string `json:"status"`
}

type ScopeItem struct {
	ID        int64  `json:"id"`
	ReleaseID int64  `json:"release_id"`
	Name      string `json:"name"`
}

type Estimate struct {
	ID               int64   `json:"id"`
	ScopeItemID      int64   `json:"scope_item_id"`
	SkillFunction    string  `json:"skill_function"`
	SkillSubFunction string  `json:"skill_sub_function,omitempty"`
	PhaseType        string  `json:"phase_type"`
	EffortDays       float64 `json:"effort_days"`
}

type Allocation struct {
	ID               string  `json:"id"`
	ResourceID       int64   `json:"resource_id"`
	ResourceName     string  `json:"resource_name,omitempty"`
	ReleaseID        int64   `json:"release_id"`
	PhaseType        string  `json:"phase_type"`
	SubFunction      string  `json:"sub_function,omitempty"`
	StartDate        string  `json:"start_date"`
	EndDate          string  `json:"end_date"`
	AllocationFactor float64 `json:"allocation_factor"`
	AllocationDays   float64 `json:"allocation_days"`
}

type Shortfall struct {
	PhaseType        string  `json:"phase_type"`
	SkillFunction    string  `json:"skill_function"`
	SkillSubFunction string  `json:"skill_sub_function,omitempty"`
	EffortDays       float64 `json:"effort_days"`
	CoveredDays      float64 `json:"covered_days"`
	Reason           string  `json:"reason"`
}

// Generation summarises one regeneration of a release.
type Generation struct {
	ReleaseID  int64       `json:"release_id"`
	Removed    int         `json:"removed"`
	Inserted   int         `json:"inserted"`
	Shortfalls []Shortfall `json:"shortfalls"`
}

type ConflictWeek struct {
	WeekStart       string  `json:"week_start"`
	TotalAllocation float64 `json:"total_allocation"`
	Threshold       float64 `json:"threshold"`
	Excess          float64 `json:"excess"`
}

type ResourceConflicts struct {
	ResourceID   int64          `json:"resource_id"`
	ResourceName string         `json:"resource_name,omitempty"`
	Weeks        []ConflictWeek `json:"weeks"`
}

type UtilizationRow struct {
	ResourceID         int64   `json:"resource_id"`
	ResourceName       string  `json:"resource_name,omitempty"`
	WeekStart          string  `json:"week_start"`
	AllocatedDays      float64 `json:"allocated_days"`
	CapacityDays       float64 `json:"capacity_days"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

type CapacityRow struct {
	ResourceID       int64   `json:"resource_id"`
	ResourceName     string  `json:"resource_name,omitempty"`
	SkillFunction    string  `json:"skill_function"`
	SkillSubFunction string  `json:"skill_sub_function,omitempty"`
	WeekStart        string  `json:"week_start"`
	AllocatedDays    float64 `json:"allocated_days"`
	CapacityDays     float64 `json:"capacity_days"`
	AvailableDays    float64 `json:"available_days"`
}

type SkillCapacityRow struct {
	SkillFunction    string  `json:"skill_function"`
	SkillSubFunction string  `json:"skill_sub_function,omitempty"`
	WeekStart        string  `json:"week_start"`
	Headcount        int     `json:"headcount"`
	AllocatedDays    float64 `json:"allocated_days"`
	CapacityDays     float64 `json:"capacity_days"`
	AvailableDays    float64 `json:"available_days"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses. Code and Message come from the error envelope when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ReportQuery selects the week range and scope of a report. Dates are YYYY-MM-DD.
type ReportQuery struct {
	From             string
	To               string
	ResourceIDs      []int64
	SkillFunction    string
	SkillSubFunction string
}

func (q ReportQuery) values() url.Values {
	v := url.Values{}
	v.Set("from", q.From)
	v.Set("to", q.To)
	if len(q.ResourceIDs) > 0 {
		ids := make([]string, 0, len(q.ResourceIDs))
		for _, id := range q.ResourceIDs {
			ids = append(ids, fmt.Sprint(id))
		}
		v.Set("resource_ids", strings.Join(ids, ","))
	}
	if q.SkillFunction != "" {
		v.Set("skill_function", q.SkillFunction)
	}
	if q.SkillSubFunction != "" {
		v.Set("skill_sub_function", q.SkillSubFunction)
	}
	return v
}

func (c *Client) CreateRelease(ctx context.Context, name string) (Release, error) {
	var resp Release
	err := c.do(ctx, http.MethodPost, "releases", map[string]any{"name": name}, &resp)
	return resp, err
}

func (c *Client) ListReleases(ctx context.Context) ([]Release, error) {
	var resp []Release
	err := c.do(ctx, http.MethodGet, "releases", nil, &resp)
	return resp, err
}

func (c *Client) GetRelease(ctx context.Context, id int64) (Release, error) {
	var resp Release
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("releases/%d", id), nil, &resp)
	return resp, err
}

// SetPhase creates or replaces the window of one phase of a release.
func (c *Client) SetPhase(ctx context.Context, releaseID int64, phaseType, start, end string) (Phase, error) {
	var resp Phase
	endpoint := fmt.Sprintf("releases/%d/phases/%s", releaseID, url.PathEscape(phaseType))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"start_date": start, "end_date": end}, &resp)
	return resp, err
}

func (c *Client) CreateResource(ctx context.Context, name, skillFunction, subFunction string) (Resource, error) {
	body := map[string]any{"name": name, "skill_function": skillFunction}
	if subFunction != "" {
		body["skill_sub_function"] = subFunction
	}
	var resp Resource
	err := c.do(ctx, http.MethodPost, "resources", body, &resp)
	return resp, err
}

// SetResourceStatus activates or deactivates a resource.
func (c *Client) SetResourceStatus(ctx context.Context, id int64, status string) (Resource, error) {
	var resp Resource
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("resources/%d", id), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) CreateScopeItem(ctx context.Context, releaseID int64, name string) (ScopeItem, error) {
	var resp ScopeItem
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("releases/%d/scope-items", releaseID), map[string]any{"name": name}, &resp)
	return resp, err
}

func (c *Client) AddEstimate(ctx context.Context, scopeItemID int64, est Estimate) (Estimate, error) {
	body := map[string]any{
		"skill_function": est.SkillFunction,
		"phase_type":     est.PhaseType,
		"effort_days":    est.EffortDays,
	}
	if est.SkillSubFunction != "" {
		body["skill_sub_function"] = est.SkillSubFunction
	}
	var resp Estimate
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("scope-items/%d/estimates", scopeItemID), body, &resp)
	return resp, err
}

// GenerateAllocations replaces the stored allocations of a release.
func (c *Client) GenerateAllocations(ctx context.Context, releaseID int64) (Generation, error) {
	var resp Generation
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("releases/%d/allocations/generate", releaseID), nil, &resp)
	return resp, err
}

func (c *Client) ReleaseAllocations(ctx context.Context, releaseID int64) ([]Allocation, error) {
	var resp []Allocation
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("releases/%d/allocations", releaseID), nil, &resp)
	return resp, err
}

func (c *Client) ResourceAllocations(ctx context.Context, resourceID int64) ([]Allocation, error) {
	var resp []Allocation
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("resources/%d/allocations", resourceID), nil, &resp)
	return resp, err
}

func (c *Client) Conflicts(ctx context.Context) ([]ResourceConflicts, error) {
	var resp []ResourceConflicts
	err := c.do(ctx, http.MethodGet, "conflicts", nil, &resp)
	return resp, err
}

func (c *Client) Utilization(ctx context.Context, q ReportQuery) ([]UtilizationRow, error) {
	var resp []UtilizationRow
	err := c.do(ctx, http.MethodGet, "reports/utilization?"+q.values().Encode(), nil, &resp)
	return resp, err
}

func (c *Client) Capacity(ctx context.Context, q ReportQuery) ([]CapacityRow, error) {
	var resp []CapacityRow
	err := c.do(ctx, http.MethodGet, "reports/capacity?"+q.values().Encode(), nil, &resp)
	return resp, err
}

func (c *Client) SkillCapacity(ctx context.Context, q ReportQuery) ([]SkillCapacityRow, error) {
	var resp []SkillCapacityRow
	err := c.do(ctx, http.MethodGet, "reports/skill-capacity?"+q.values().Encode(), nil, &resp)
	return resp, err
}

// Events lists the most recent audit events, newest first. An empty type lists all.
func (c *Client) Events(ctx context.Context, eventType string, limit int) ([]Event, error) {
	v := url.Values{}
	if eventType != "" {
		v.Set("type", eventType)
	}
	if limit > 0 {
		v.Set("limit", fmt.Sprint(limit))
	}
	endpoint := "events"
	if len(v) > 0 {
		endpoint += "?" + v.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
