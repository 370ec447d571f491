package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"skytrack/internal/config"
	"skytrack/internal/engine"
)

type flightPath struct {
	ID int64 `path:"id"`
}

func registerFlights(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-flight",
		Method:        http.MethodPost,
		Path:          "/flights",
		Summary:       "Schedule a flight",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateFlightRequest `json:"body"`
	}) (*struct {
		Body FlightResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermFlightWrite)
		if authErr != nil {
			return nil, authErr
		}
		opts, apiErr := validateCreateFlight(input.Body, actorID)
		if apiErr != nil {
			return nil, apiErr
		}
		f, err := e.CreateFlight(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FlightResponse `json:"body"`
		}{Body: flightResponse(f)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-flights",
		Method:      http.MethodGet,
		Path:        "/flights",
		Summary:     "List flights",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Origin      string `query:"origin"`
		Destination string `query:"destination"`
		Status      string `query:"status"`
	}) (*struct {
		Body []FlightResponse `json:"body"`
	}, error) {
		filter, apiErr := validateFlightFilter(input.Origin, input.Destination, input.Status)
		if apiErr != nil {
			return nil, apiErr
		}
		items, err := e.ListFlights(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []FlightResponse `json:"body"`
		}{Body: mapFlights(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-flight",
		Method:      http.MethodGet,
		Path:        "/flights/{id}",
		Summary:     "Get flight",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *flightPath) (*struct {
		Body FlightResponse `json:"body"`
	}, error) {
		f, err := e.GetFlight(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FlightResponse `json:"body"`
		}{Body: flightResponse(f)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-flight",
		Method:      http.MethodPatch,
		Path:        "/flights/{id}",
		Summary:     "Update flight",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64               `path:"id"`
		Body UpdateFlightRequest `json:"body"`
	}) (*struct {
		Body FlightResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermFlightUpdate)
		if authErr != nil {
			return nil, authErr
		}
		if len(rawBody(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts, apiErr := validateUpdateFlight(input.ID, input.Body, explicitNull(ctx, "plane_id"), actorID)
		if apiErr != nil {
			return nil, apiErr
		}
		f, err := e.UpdateFlight(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FlightResponse `json:"body"`
		}{Body: flightResponse(f)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-flight",
		Method:      http.MethodDelete,
		Path:        "/flights/{id}",
		Summary:     "Soft-delete flight",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *flightPath) (*struct {
		Body FlightResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermFlightDelete)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.SoftDeleteFlight(ctx, input.ID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FlightResponse `json:"body"`
		}{Body: flightResponse(f)}, nil
	})
}

func registerFlightCrew(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "list-flight-crew",
		Method:      http.MethodGet,
		Path:        "/flights/{id}/crew",
		Summary:     "List crew assigned to a flight",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *flightPath) (*struct {
		Body []CrewAssignmentResponse `json:"body"`
	}, error) {
		items, err := e.GetCrewForFlight(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []CrewAssignmentResponse `json:"body"`
		}{Body: mapAssignments(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-flight-crew",
		Method:        http.MethodPost,
		Path:          "/flights/{id}/crew",
		Summary:       "Assign a crew member to a flight",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64          `path:"id"`
		Body AddCrewRequest `json:"body"`
	}) (*struct {
		Body CrewAssignmentResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermCrewAssign)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.AddCrewMember(ctx, input.ID, input.Body.CrewMemberID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewAssignmentResponse `json:"body"`
		}{Body: assignmentResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-flight-crew",
		Method:      http.MethodDelete,
		Path:        "/flights/{id}/crew/{crew_member_id}",
		Summary:     "Remove a crew member from a flight",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID           int64 `path:"id"`
		CrewMemberID int64 `path:"crew_member_id"`
	}) (*struct {
		Body CrewAssignmentResponse `json:"body"`
	}, error) {
		actorID, authErr := requirePermission(ctx, authCfg, config.PermCrewAssign)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.RemoveCrewMember(ctx, input.ID, input.CrewMemberID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CrewAssignmentResponse `json:"body"`
		}{Body: assignmentResponse(a)}, nil
	})
}
