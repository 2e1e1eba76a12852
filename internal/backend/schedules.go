// ABOUTME: Scheduled report endpoints
// ABOUTME: List, create, edit, and delete recurring report schedules of a tenant

package backend

import (
	"context"
	"net/http"
	"strconv"
)

// Schedule is a recurring report. Day is a comma-separated list of day
// codes ("mon,wed"); Hour is 0-23.
type Schedule struct {
	ID       int64  `json:"id"`
	Query    string `json:"query"`
	ToNumber string `json:"to_number"`
	Day      string `json:"day"`
	Hour     int    `json:"hour"`
}

// ScheduleRequest is the payload for creating or editing a schedule.
type ScheduleRequest struct {
	Request      string   `json:"request"`
	ToNumber     string   `json:"to_number"`
	Days         []string `json:"days"`
	Hour         int      `json:"hour"`
	TwilioNumber string   `json:"twilio_number,omitempty"`
}

type schedulesResponse struct {
	Envelope
	Schedules []Schedule `json:"schedules"`
}

type deleteScheduleRequest struct {
	ToNumber string `json:"to_number"`
}

// ListSchedules returns the schedules of dbName, narrowed to phoneNumber
// when it is non-empty.
func (c *Client) ListSchedules(ctx context.Context, dbName, phoneNumber string) ([]Schedule, error) {
	var resp schedulesResponse
	path := tenantPath("/api/schedules", dbName, phoneNumber)
	if err := c.doJSON(ctx, "list schedules", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schedules, nil
}

// CreateSchedule adds a schedule to dbName.
func (c *Client) CreateSchedule(ctx context.Context, dbName string, req ScheduleRequest) error {
	var resp Envelope
	return c.doJSON(ctx, "create schedule", http.MethodPost, tenantPath("/api/schedules", dbName), req, &resp)
}

// EditSchedule replaces the schedule with id.
func (c *Client) EditSchedule(ctx context.Context, dbName string, id int64, req ScheduleRequest) error {
	var resp Envelope
	path := tenantPath("/api/schedules", dbName, strconv.FormatInt(id, 10))
	return c.doJSON(ctx, "edit schedule", http.MethodPut, path, req, &resp)
}

// DeleteSchedule removes the schedule with id. toNumber, when set, is sent
// in the body so the backend can match the recipient.
func (c *Client) DeleteSchedule(ctx context.Context, dbName string, id int64, toNumber string) error {
	var (
		resp Envelope
		body any
	)
	if toNumber != "" {
		body = deleteScheduleRequest{ToNumber: toNumber}
	}
	path := tenantPath("/api/schedules", dbName, strconv.FormatInt(id, 10))
	return c.doJSON(ctx, "delete schedule", http.MethodDelete, path, body, &resp)
}
