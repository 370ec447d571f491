package skytracksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal SkyTrack HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. baseURL includes the API prefix,
// e.g. http://localhost:8080/v1.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Flight struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureTime string  `json:"departure_time"`
	ArrivalTime   string  `json:"arrival_time"`
	Status        string  `json:"status"`
	PlaneID       *int64  `json:"plane_id"`
	State         string  `json:"state"`
	DeletedAt     *string `json:"deleted_at"`
}

type Plane struct {
	ID           int64  `json:"id"`
	Model        string `json:"model"`
	Registration string `json:"registration"`
	Status       string `json:"status"`
}

type CrewMember struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	State    string `json:"state"`
}

type CrewAssignment struct {
	ID           int64       `json:"id"`
	FlightID     int64       `json:"flight_id"`
	CrewMemberID int64       `json:"crew_member_id"`
	CrewMember   *CrewMember `json:"crew_member,omitempty"`
}

type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// CreateFlightInput mirrors the create-flight body. Times are sent as
// RFC 3339.
type CreateFlightInput struct {
	Code          string    `json:"code"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	Status        string    `json:"status,omitempty"`
	PlaneID       *int64    `json:"plane_id,omitempty"`
}

// UpdateFlightInput is a partial update. Set UnbindPlane to send
// "plane_id": null.
type UpdateFlightInput struct {
	Code          *string
	Origin        *string
	Destination   *string
	DepartureTime *time.Time
	ArrivalTime   *time.Time
	Status        *string
	PlaneID       *int64
	UnbindPlane   bool
}

func (in UpdateFlightInput) body() map[string]any {
	b := map[string]any{}
	if in.Code != nil {
		b["code"] = *in.Code
	}
	if in.Origin != nil {
		b["origin"] = *in.Origin
	}
	if in.Destination != nil {
		b["destination"] = *in.Destination
	}
	if in.DepartureTime != nil {
		b["departure_time"] = in.DepartureTime.UTC().Format(time.RFC3339)
	}
	if in.ArrivalTime != nil {
		b["arrival_time"] = in.ArrivalTime.UTC().Format(time.RFC3339)
	}
	if in.Status != nil {
		b["status"] = *in.Status
	}
	switch {
	case in.PlaneID != nil:
		b["plane_id"] = *in.PlaneID
	case in.UnbindPlane:
		b["plane_id"] = nil
	}
	return b
}

// FlightFilter narrows ListFlights. Empty fields are ignored.
type FlightFilter struct {
	Origin      string
	Destination string
	Status      string
}

// APIError wraps non-2xx responses.
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

// ErrorCode returns the envelope code of an *APIError, or "".
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

func (c *Client) CreateFlight(ctx context.Context, in CreateFlightInput) (Flight, error) {
	var resp Flight
	err := c.do(ctx, http.MethodPost, "flights", in, &resp)
	return resp, err
}

func (c *Client) UpdateFlight(ctx context.Context, id int64, in UpdateFlightInput) (Flight, error) {
	var resp Flight
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("flights/%d", id), in.body(), &resp)
	return resp, err
}

func (c *Client) DeleteFlight(ctx context.Context, id int64) (Flight, error) {
	var resp Flight
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("flights/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) GetFlight(ctx context.Context, id int64) (Flight, error) {
	var resp Flight
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("flights/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) ListFlights(ctx context.Context, f FlightFilter) ([]Flight, error) {
	q := url.Values{}
	if f.Origin != "" {
		q.Set("origin", f.Origin)
	}
	if f.Destination != "" {
		q.Set("destination", f.Destination)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	endpoint := "flights"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Flight
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) AddCrew(ctx context.Context, flightID, crewMemberID int64) (CrewAssignment, error) {
	var resp CrewAssignment
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("flights/%d/crew", flightID), map[string]any{"crew_member_id": crewMemberID}, &resp)
	return resp, err
}

func (c *Client) RemoveCrew(ctx context.Context, flightID, crewMemberID int64) (CrewAssignment, error) {
	var resp CrewAssignment
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("flights/%d/crew/%d", flightID, crewMemberID), nil, &resp)
	return resp, err
}

func (c *Client) ListCrewForFlight(ctx context.Context, flightID int64) ([]CrewAssignment, error) {
	var resp []CrewAssignment
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("flights/%d/crew", flightID), nil, &resp)
	return resp, err
}

func (c *Client) CreatePlane(ctx context.Context, model, registration, status string) (Plane, error) {
	body := map[string]any{"model": model, "registration": registration}
	if status != "" {
		body["status"] = status
	}
	var resp Plane
	err := c.do(ctx, http.MethodPost, "planes", body, &resp)
	return resp, err
}

func (c *Client) GetPlane(ctx context.Context, id int64) (Plane, error) {
	var resp Plane
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("planes/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) ListPlanes(ctx context.Context) ([]Plane, error) {
	var resp []Plane
	err := c.do(ctx, http.MethodGet, "planes", nil, &resp)
	return resp, err
}

func (c *Client) CreateCrewMember(ctx context.Context, fullName, role string) (CrewMember, error) {
	var resp CrewMember
	err := c.do(ctx, http.MethodPost, "crew", map[string]any{"full_name": fullName, "role": role}, &resp)
	return resp, err
}

func (c *Client) DeleteCrewMember(ctx context.Context, id int64) (CrewMember, error) {
	var resp CrewMember
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("crew/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) ListCrewMembers(ctx context.Context) ([]CrewMember, error) {
	var resp []CrewMember
	err := c.do(ctx, http.MethodGet, "crew", nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("events?limit=%d", limit), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
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
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
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
