// Package monitoring provides a client for the monitoring platform API.
// The engine only models the problem-details boundary; the platform's own
// data model stays external.
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/argus-ai/argus/pkg/logging"
)

// ErrProblemNotFound indicates the platform knows no problem with that ID.
var ErrProblemNotFound = errors.New("monitoring: problem not found")

// Problem is the subset of the platform's problem record the assistant
// speaks about.
type Problem struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	Status         string   `json:"status"` // OPEN or RESOLVED
	SeverityLevel  string   `json:"severityLevel"`
	ImpactLevel    string   `json:"impactLevel"`
	HasRootCause   bool     `json:"hasRootCause"`
	RootCauseText  string   `json:"rootCauseText,omitempty"`
	AffectedEntity string   `json:"affectedEntity,omitempty"`
	OwnerEmail     string   `json:"ownerEmail,omitempty"`
	TagsApplied    []string `json:"tags,omitempty"`
	StartTime      int64    `json:"startTime"`
	EndTime        int64    `json:"endTime"` // -1 while open
}

// Open reports whether the problem is still active.
func (p *Problem) Open() bool {
	return strings.EqualFold(p.Status, "OPEN")
}

// Client talks to the monitoring platform's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a monitoring API client.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logging.Default().Component("monitoring"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProblemDetails fetches one problem by ID.
func (c *Client) ProblemDetails(ctx context.Context, problemID string) (*Problem, error) {
	if strings.TrimSpace(problemID) == "" {
		return nil, errors.New("monitoring: problem ID required")
	}

	endpoint := fmt.Sprintf("%s/api/v1/problems/%s", c.baseURL, url.PathEscape(problemID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("monitoring: build request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monitoring: fetch problem %s: %w", problemID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProblemNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("monitoring: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var problem Problem
	if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil {
		return nil, fmt.Errorf("monitoring: decode problem: %w", err)
	}

	c.logger.Debug("fetched problem details",
		"problem_id", problem.ID,
		"status", problem.Status,
		"severity", problem.SeverityLevel,
	)
	return &problem, nil
}
