package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"staffline/internal/domain"
	"staffline/internal/engine"
	"staffline/internal/repo"
)

// bodyOf wraps a response payload for huma.
type bodyOf[T any] struct {
	Body T `json:"body"`
}

func reply[T any](v T) *bodyOf[T] { return &bodyOf[T]{Body: v} }

type IDPath struct {
	ID int64 `path:"id" minimum:"1"`
}

var (
	readErrors  = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError}
	writeErrors = []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError}
)

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*bodyOf[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

func registerReleases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-release",
		Method:        http.MethodPost,
		Path:          "/releases",
		Summary:       "Create release",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateReleaseRequest `json:"body"`
	}) (*bodyOf[domain.Release], error) {
		rel, err := e.CreateRelease(ctx, engine.ReleaseCreateOptions{
			Name:    input.Body.Name,
			Status:  input.Body.Status,
			ActorID: actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(rel), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-releases",
		Method:      http.MethodGet,
		Path:        "/releases",
		Summary:     "List releases",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"planned,active,closed"`
	}) (*bodyOf[[]domain.Release], error) {
		items, err := e.Repo.ListReleases(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Release{}
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-release",
		Method:      http.MethodGet,
		Path:        "/releases/{id}",
		Summary:     "Get release",
		Errors:      readErrors,
	}, func(ctx context.Context, input *IDPath) (*bodyOf[domain.Release], error) {
		rel, err := e.Repo.GetRelease(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(rel), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-release",
		Method:      http.MethodPatch,
		Path:        "/releases/{id}",
		Summary:     "Change release status",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		IDPath
		Body UpdateReleaseRequest `json:"body"`
	}) (*bodyOf[domain.Release], error) {
		rel, err := e.SetReleaseStatus(ctx, input.ID, input.Body.Status, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(rel), nil
	})
}

func registerPhases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "set-phase",
		Method:      http.MethodPut,
		Path:        "/releases/{id}/phases/{phase_type}",
		Summary:     "Set the window of a release phase",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		IDPath
		PhaseType string          `path:"phase_type"`
		Body      SetPhaseRequest `json:"body"`
	}) (*bodyOf[PhaseResponse], error) {
		p, err := e.SetPhase(ctx, engine.PhaseOptions{
			ReleaseID: input.ID,
			Type:      input.PhaseType,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			ActorID:   actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(phaseResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-phases",
		Method:      http.MethodGet,
		Path:        "/releases/{id}/phases",
		Summary:     "List release phases",
		Errors:      readErrors,
	}, func(ctx context.Context, input *IDPath) (*bodyOf[[]PhaseResponse], error) {
		phases, err := e.Phases(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]PhaseResponse, 0, len(phases))
		for _, p := range phases {
			out = append(out, phaseResponse(p))
		}
		return reply(out), nil
	})
}

func registerResources(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-resource",
		Method:        http.MethodPost,
		Path:          "/resources",
		Summary:       "Add resource to the pool",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateResourceRequest `json:"body"`
	}) (*bodyOf[domain.Resource], error) {
		res, err := e.CreateResource(ctx, engine.ResourceCreateOptions{
			Name:          input.Body.Name,
			SkillFunction: input.Body.SkillFunction,
			SubFunction:   input.Body.SkillSubFunction,
			ActorID:       actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-resources",
		Method:      http.MethodGet,
		Path:        "/resources",
		Summary:     "List resources",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		SkillFunction string `query:"skill_function"`
		SubFunction   string `query:"skill_sub_function"`
		Status        string `query:"status" enum:"active,inactive"`
	}) (*bodyOf[[]domain.Resource], error) {
		items, err := e.Repo.ListResources(ctx, repo.ResourceFilter{
			SkillFunction: domain.SkillFunction(input.SkillFunction),
			SubFunction:   input.SubFunction,
			Status:        input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Resource{}
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-resource",
		Method:      http.MethodGet,
		Path:        "/resources/{id}",
		Summary:     "Get resource",
		Errors:      readErrors,
	}, func(ctx context.Context, input *IDPath) (*bodyOf[domain.Resource], error) {
		res, err := e.Repo.GetResource(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-resource",
		Method:      http.MethodPatch,
		Path:        "/resources/{id}",
		Summary:     "Activate or deactivate a resource",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		IDPath
		Body UpdateResourceRequest `json:"body"`
	}) (*bodyOf[domain.Resource], error) {
		res, err := e.SetResourceStatus(ctx, input.ID, input.Body.Status, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})
}

func registerEstimates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-scope-item",
		Method:        http.MethodPost,
		Path:          "/releases/{id}/scope-items",
		Summary:       "Add scope item to a release",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		IDPath
		Body CreateScopeItemRequest `json:"body"`
	}) (*bodyOf[domain.ScopeItem], error) {
		item, err := e.CreateScopeItem(ctx, input.ID, input.Body.Name, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(item), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-scope-items",
		Method:      http.MethodGet,
		Path:        "/releases/{id}/scope-items",
		Summary:     "List scope items of a release",
		Errors:      readErrors,
	}, func(ctx context.Context, input *IDPath) (*bodyOf[[]domain.ScopeItem], error) {
		if _, err := e.Repo.GetRelease(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListScopeItems(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.ScopeItem{}
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-estimate",
		Method:        http.MethodPost,
		Path:          "/scope-items/{id}/estimates",
		Summary:       "Record effort for a scope item",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		IDPath
		Body CreateEstimateRequest `json:"body"`
	}) (*bodyOf[domain.EffortEstimate], error) {
		est, err := e.AddEstimate(ctx, engine.EstimateOptions{
			ScopeItemID:   input.ID,
			SkillFunction: input.Body.SkillFunction,
			SubFunction:   input.Body.SkillSubFunction,
			PhaseType:     input.Body.PhaseType,
			EffortDays:    input.Body.EffortDays,
			ActorID:       actorFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(est), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-estimates",
		Method:      http.MethodGet,
		Path:        "/releases/{id}/estimates",
		Summary:     "List effort estimates of a release",
		Errors:      readErrors,
	}, func(ctx context.Context, input *IDPath) (*bodyOf[[]domain.EffortEstimate], error) {
		items, err := e.Estimates(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.EffortEstimate{}
		}
		return reply(items), nil
	})
}

func registerAllocations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "generate-allocations",
		Method:      http.MethodPost,
		Path:        "/releases/{id}/allocations/generate",
		Summary:     "Regenerate the allocations of a release",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *IDPath) (*bodyOf[GenerationResponse], error) {
		summary, err := e.GenerateAllocation(ctx, input.ID, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return reply(generationResponse(summary)), nil
	})

	listAllocations := func(ctx context.Context, q engine.AllocationQuery) (*bodyOf[[]AllocationResponse], error) {
		items, err := e.Allocations(ctx, q)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]AllocationResponse, 0, len(items))
		for _, a := range items {
			out = append(out, allocationResponse(a))
		}
		return reply(out), nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-release-allocations",
		Method:      http.MethodGet,
		Path:        "/releases/{id}/allocations",
		Summary:     "List stored allocations of a release",
		Errors:      readErrors,
	}, func(ctx context.Context, input *IDPath) (*bodyOf[[]AllocationResponse], error) {
		return listAllocations(ctx, engine.AllocationQuery{ReleaseID: input.ID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-resource-allocations",
		Method:      http.MethodGet,
		Path:        "/resources/{id}/allocations",
		Summary:     "List stored allocations of a resource across releases",
		Errors:      readErrors,
	}, func(ctx context.Context, input *IDPath) (*bodyOf[[]AllocationResponse], error) {
		return listAllocations(ctx, engine.AllocationQuery{ResourceID: input.ID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-conflicts",
		Method:      http.MethodGet,
		Path:        "/conflicts",
		Summary:     "Resources booked above weekly capacity",
		Errors:      readErrors,
	}, func(ctx context.Context, _ *struct{}) (*bodyOf[[]ResourceConflictsResponse], error) {
		items, err := e.Conflicts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(conflictsResponse(items)), nil
	})
}

type reportInput struct {
	From          string `query:"from" format:"date" example:"2024-01-01"`
	To            string `query:"to" format:"date" example:"2024-03-31"`
	SkillFunction string `query:"skill_function"`
	SubFunction   string `query:"skill_sub_function"`
}

func (in reportInput) query() engine.ReportQuery {
	return engine.ReportQuery{From: in.From, To: in.To, SkillFunction: in.SkillFunction, SubFunction: in.SubFunction}
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid resource id", map[string]any{"resource_ids": raw})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "utilization-report",
		Method:      http.MethodGet,
		Path:        "/reports/utilization",
		Summary:     "Weekly utilization per resource",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		From        string `query:"from" format:"date" example:"2024-01-01"`
		To          string `query:"to" format:"date" example:"2024-03-31"`
		ResourceIDs string `query:"resource_ids" doc:"Comma separated resource ids; any status"`
	}) (*bodyOf[[]UtilizationResponse], error) {
		ids, err := parseIDs(input.ResourceIDs)
		if err != nil {
			return nil, err
		}
		rows, err := e.Utilization(ctx, engine.ReportQuery{From: input.From, To: input.To, ResourceIDs: ids})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(utilizationResponse(rows)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "capacity-report",
		Method:      http.MethodGet,
		Path:        "/reports/capacity",
		Summary:     "Weekly available capacity per resource",
		Errors:      readErrors,
	}, func(ctx context.Context, input *reportInput) (*bodyOf[[]CapacityResponse], error) {
		rows, err := e.CapacityForecast(ctx, input.query())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(capacityResponse(rows)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "skill-capacity-report",
		Method:      http.MethodGet,
		Path:        "/reports/skill-capacity",
		Summary:     "Weekly available capacity per skill",
		Errors:      readErrors,
	}, func(ctx context.Context, input *reportInput) (*bodyOf[[]SkillCapacityResponse], error) {
		rows, err := e.SkillCapacityForecast(ctx, input.query())
		if err != nil {
			return nil, handleError(err)
		}
		return reply(skillCapacityResponse(rows)), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent audit events",
		Errors:      readErrors,
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"release,resource,scope_item"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*bodyOf[[]EventResponse], error) {
		items, err := e.Repo.LatestEvents(ctx, input.Limit, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]EventResponse, 0, len(items))
		for _, evt := range items {
			out = append(out, eventResponse(evt))
		}
		return reply(out), nil
	})
}
