// Package client talks to the api-server over HTTP.
package client

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

	"github.com/cockroachdb/errors"

	"github.com/hackgods/clinic-scheduling/internal/api"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Details)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.StatusCode)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Schedule(ctx context.Context, req api.ScheduleRequest) (api.AppointmentResponse, error) {
	var out api.AppointmentResponse
	err := c.do(ctx, http.MethodPost, "/appointments", nil, req, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id int64, req api.UpdateRequest) (api.AppointmentResponse, error) {
	var out api.AppointmentResponse
	err := c.do(ctx, http.MethodPatch, appointmentPath(id, ""), nil, req, &out)
	return out, err
}

func (c *Client) Confirm(ctx context.Context, id int64) (api.AppointmentResponse, error) {
	return c.transition(ctx, id, "confirm", nil)
}

func (c *Client) Cancel(ctx context.Context, id int64) (api.AppointmentResponse, error) {
	return c.transition(ctx, id, "cancel", nil)
}

func (c *Client) Complete(ctx context.Context, id int64, notes *string) (api.AppointmentResponse, error) {
	var body any
	if notes != nil {
		body = api.CompleteRequest{Notes: notes}
	}
	return c.transition(ctx, id, "complete", body)
}

func (c *Client) NoShow(ctx context.Context, id int64) (api.AppointmentResponse, error) {
	return c.transition(ctx, id, "no-show", nil)
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, appointmentPath(id, ""), nil, nil, nil)
}

func (c *Client) Get(ctx context.Context, id int64) (api.AppointmentResponse, error) {
	var out api.AppointmentResponse
	err := c.do(ctx, http.MethodGet, appointmentPath(id, ""), nil, nil, &out)
	return out, err
}

// List passes filters straight through as query parameters.
func (c *Client) List(ctx context.Context, filters url.Values) (api.AppointmentListResponse, error) {
	var out api.AppointmentListResponse
	err := c.do(ctx, http.MethodGet, "/appointments", filters, nil, &out)
	return out, err
}

func (c *Client) ProcessNext(ctx context.Context) (api.AppointmentResponse, error) {
	var out api.AppointmentResponse
	err := c.do(ctx, http.MethodPost, "/queue/next", nil, nil, &out)
	return out, err
}

func (c *Client) Queue(ctx context.Context) (api.QueueResponse, error) {
	var out api.QueueResponse
	err := c.do(ctx, http.MethodGet, "/queue", nil, nil, &out)
	return out, err
}

func (c *Client) Undo(ctx context.Context) (api.UndoResponse, error) {
	var out api.UndoResponse
	err := c.do(ctx, http.MethodPost, "/undo", nil, nil, &out)
	return out, err
}

func (c *Client) DailyReport(ctx context.Context, date string) (api.DailyReportResponse, error) {
	var out api.DailyReportResponse
	err := c.do(ctx, http.MethodGet, "/reports/daily", url.Values{"date": {date}}, nil, &out)
	return out, err
}

// Export streams the server's export for format into w.
func (c *Client) Export(ctx context.Context, format string, filters url.Values, w io.Writer) error {
	q := url.Values{}
	for k, v := range filters {
		q[k] = v
	}
	q.Set("format", format)

	resp, err := c.send(ctx, http.MethodGet, "/export", q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.Wrap(err, "read export")
	}
	return nil
}

func (c *Client) transition(ctx context.Context, id int64, action string, body any) (api.AppointmentResponse, error) {
	var out api.AppointmentResponse
	err := c.do(ctx, http.MethodPost, appointmentPath(id, action), nil, body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}

// send returns the response only for 2xx statuses; anything else is turned
// into an APIError and the body is closed.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	var payload api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Code = payload.Error
		apiErr.Details = payload.Details
	}
	return nil, apiErr
}

func appointmentPath(id int64, action string) string {
	p := fmt.Sprintf("/appointments/%d", id)
	if action != "" {
		p += "/" + action
	}
	return p
}
