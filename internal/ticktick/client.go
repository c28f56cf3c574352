// Package ticktick is a client for the TickTick Open API.
package ticktick

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/metalagman/tickwise/internal/failure"
	"github.com/metalagman/tickwise/internal/model"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public Open API endpoint.
	DefaultBaseURL = "https://api.ticktick.com"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
	dateLayout     = "2006-01-02T15:04:05+0000"
)

var priorityValues = map[model.Priority]int{
	model.PriorityNone:   0,
	model.PriorityLow:    1,
	model.PriorityMedium: 3,
	model.PriorityHigh:   5,
}

// Client talks to the TickTick Open API with a bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout   time.Duration
	transport http.RoundTripper
	now       func() time.Time
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTransport sets the base transport under the token transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.transport = rt
	}
}

// WithClock sets the time used as the start of recurring tasks created
// without a due date.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		o.now = now
	}
}

// New creates a client. An empty baseURL selects DefaultBaseURL.
func New(baseURL, accessToken string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("ticktick: access token is required")
	}
	o := clientOptions{timeout: defaultTimeout, transport: http.DefaultTransport, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = DefaultBaseURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   o.timeout,
			Transport: &oauth2.Transport{Source: src, Base: o.transport},
		},
		now: o.now,
	}, nil
}

// taskPayload is the task body. TickTick needs StartDate alongside a
// RepeatFlag rule.
type taskPayload struct {
	ID         string    `json:"id,omitempty"`
	ProjectID  string    `json:"projectId,omitempty"`
	Title      *string   `json:"title,omitempty"`
	Content    *string   `json:"content,omitempty"`
	DueDate    string    `json:"dueDate,omitempty"`
	StartDate  string    `json:"startDate,omitempty"`
	Priority   *int      `json:"priority,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
	Reminders  *[]string `json:"reminders,omitempty"`
	RepeatFlag *string   `json:"repeatFlag,omitempty"`
	Status     *int      `json:"status,omitempty"`
}

type taskResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
}

type projectResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

func payloadFrom(changes model.Changes) taskPayload {
	p := taskPayload{
		Title:   changes.Title,
		Content: changes.Notes,
	}
	if changes.Due != nil {
		p.DueDate = FormatDate(*changes.Due)
	}
	if changes.Priority != nil {
		v := priorityValues[*changes.Priority]
		p.Priority = &v
	}
	if changes.Tags != nil {
		tags := append([]string{}, changes.Tags...)
		p.Tags = &tags
	}
	if changes.Reminders != nil {
		reminders := append([]string{}, changes.Reminders...)
		p.Reminders = &reminders
	}
	if changes.Recurrence != nil {
		rule := *changes.Recurrence
		p.RepeatFlag = &rule
		if rule != "" {
			p.StartDate = p.DueDate
		}
	}
	return p
}

// FormatDate renders t in the wire format, always in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// CreateTask creates a task in containerID.
func (c *Client) CreateTask(ctx context.Context, title, containerID string, changes model.Changes) (model.RemoteTask, error) {
	p := payloadFrom(changes)
	p.Title = &title
	p.ProjectID = containerID
	status := 0
	p.Status = &status
	if p.RepeatFlag != nil && *p.RepeatFlag != "" && p.StartDate == "" {
		p.StartDate = FormatDate(c.now())
		p.DueDate = p.StartDate
	}

	var out taskResponse
	if err := c.do(ctx, "create task", http.MethodPost, "/open/v1/task", p, &out); err != nil {
		return model.RemoteTask{}, err
	}
	return model.RemoteTask{ID: out.ID, ContainerID: out.ProjectID}, nil
}

// UpdateTask updates the changed fields of a task. A container change in
// changes moves the task.
func (c *Client) UpdateTask(ctx context.Context, id, containerID string, changes model.Changes) (model.RemoteTask, error) {
	p := payloadFrom(changes)
	p.ID = id
	p.ProjectID = containerID
	if changes.ContainerID != nil {
		p.ProjectID = *changes.ContainerID
	}

	var out taskResponse
	if err := c.do(ctx, "update task", http.MethodPost, "/open/v1/task/"+id, p, &out); err != nil {
		return model.RemoteTask{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	if out.ProjectID == "" {
		out.ProjectID = p.ProjectID
	}
	return model.RemoteTask{ID: out.ID, ContainerID: out.ProjectID}, nil
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id, containerID string) error {
	path := fmt.Sprintf("/open/v1/project/%s/task/%s/complete", containerID, id)
	return c.do(ctx, "complete task", http.MethodPost, path, struct{}{}, nil)
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id, containerID string) error {
	path := fmt.Sprintf("/open/v1/project/%s/task/%s", containerID, id)
	return c.do(ctx, "delete task", http.MethodDelete, path, nil, nil)
}

// Containers lists the user's projects.
func (c *Client) Containers(ctx context.Context) ([]model.Container, error) {
	var out []projectResponse
	if err := c.do(ctx, "list projects", http.MethodGet, "/open/v1/project", nil, &out); err != nil {
		return nil, err
	}
	items := make([]model.Container, 0, len(out))
	for _, p := range out {
		items = append(items, model.Container{ID: p.ID, Name: p.Name, Closed: p.Closed})
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return failure.RemoteUnavailable(op, err)
	}
	defer resp.Body.Close()
	zerolog.Ctx(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("ticktick request")

	if err := classify(op, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.RemoteUnavailable(op, fmt.Errorf("read response: %w", err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return failure.RemoteRejected(op, "malformed response", err)
	}
	return nil
}

func classify(op string, resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(data))
	status := fmt.Errorf("status %d", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return failure.NotFound(op, "")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		if detail != "" {
			status = fmt.Errorf("status %d: %s", resp.StatusCode, detail)
		}
		return failure.RemoteUnavailable(op, status)
	default:
		return failure.RemoteRejected(op, detail, status)
	}
}
