package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"skytrack/internal/config"
	"skytrack/internal/engine"
	"skytrack/internal/repo"
)

type idPath struct {
	ID int64 `path:"id"`
}

func registerPlanes(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-plane",
		Method:        http.MethodPost,
		Path:          "/planes",
		Summary:       "Register a plane",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreatePlaneRequest `json:"body"`
	}) (*struct {
		Body PlaneResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermPlaneWrite)
		if authErr != nil {
			return nil, authErr
		}
		opts, apiErr := validateCreatePlane(input.Body, actorID)
		if apiErr != nil {
			return nil, apiErr
		}
		p, err := e.CreatePlane(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlaneResponse `json:"body"`
		}{Body: planeResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-planes",
		Method:      http.MethodGet,
		Path:        "/planes",
		Summary:     "List planes",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []PlaneResponse `json:"body"`
	}, error) {
		items, err := e.ListPlanes(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PlaneResponse `json:"body"`
		}{Body: mapPlanes(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-plane",
		Method:      http.MethodGet,
		Path:        "/planes/{id}",
		Summary:     "Get plane",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body PlaneResponse `json:"body"`
	}, error) {
		p, err := e.GetPlane(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlaneResponse `json:"body"`
		}{Body: planeResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-plane",
		Method:      http.MethodPatch,
		Path:        "/planes/{id}",
		Summary:     "Update plane model or registration",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64              `path:"id"`
		Body UpdatePlaneRequest `json:"body"`
	}) (*struct {
		Body PlaneResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermPlaneWrite)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdatePlane(ctx, engine.PlaneUpdateOptions{
			ID:           input.ID,
			Model:        input.Body.Model,
			Registration: input.Body.Registration,
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlaneResponse `json:"body"`
		}{Body: planeResponse(p)}, nil
	})
}

func registerCrewMembers(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-crew-member",
		Method:        http.MethodPost,
		Path:          "/crew",
		Summary:       "Create crew member",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCrewMemberRequest `json:"body"`
	}) (*struct {
		Body CrewMemberResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermCrewWrite)
		if authErr != nil {
			return nil, authErr
		}
		opts, apiErr := validateCreateCrewMember(input.Body, actorID)
		if apiErr != nil {
			return nil, apiErr
		}
		c, err := e.CreateCrewMember(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewMemberResponse `json:"body"`
		}{Body: crewMemberResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-crew-members",
		Method:      http.MethodGet,
		Path:        "/crew",
		Summary:     "List crew members",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []CrewMemberResponse `json:"body"`
	}, error) {
		items, err := e.ListCrewMembers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CrewMemberResponse `json:"body"`
		}{Body: mapCrewMembers(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-crew-member",
		Method:      http.MethodGet,
		Path:        "/crew/{id}",
		Summary:     "Get crew member",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body CrewMemberResponse `json:"body"`
	}, error) {
		c, err := e.GetCrewMember(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewMemberResponse `json:"body"`
		}{Body: crewMemberResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-crew-member",
		Method:      http.MethodPatch,
		Path:        "/crew/{id}",
		Summary:     "Update crew member",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64                   `path:"id"`
		Body UpdateCrewMemberRequest `json:"body"`
	}) (*struct {
		Body CrewMemberResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermCrewWrite)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateCrewMember(ctx, engine.CrewUpdateOptions{
			ID:       input.ID,
			FullName: input.Body.FullName,
			Role:     input.Body.Role,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewMemberResponse `json:"body"`
		}{Body: crewMemberResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-crew-member",
		Method:      http.MethodDelete,
		Path:        "/crew/{id}",
		Summary:     "Soft-delete crew member",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body CrewMemberResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermCrewWrite)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.SoftDeleteCrewMember(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewMemberResponse `json:"body"`
		}{Body: crewMemberResponse(c)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"flight,plane,crew"`
		EntityID   int64  `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.ListEvents(ctx, repo.EventFilter{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Limit:      normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
