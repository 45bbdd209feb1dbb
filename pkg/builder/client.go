package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/kode4food/stepflow/pkg/api"
)

// Client submits graphs to a stepflow server and queries run state
type Client struct {
	httpClient *http.Client
	baseURL    string
}

var (
	ErrStartRun  = errors.New("failed to start run")
	ErrGetRun    = errors.New("failed to get run")
	ErrListRuns  = errors.New("failed to list runs")
	ErrCancelRun = errors.New("failed to cancel run")
	ErrPlan      = errors.New("failed to plan graph")
)

const (
	routeRun  = "/engine/run"
	routePlan = "/engine/plan"
)

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// StartRun submits a graph and returns the new run's ID
func (c *Client) StartRun(
	ctx context.Context, graph *api.Graph,
) (api.RunID, error) {
	var res api.RunStartedResponse
	err := c.do(ctx, http.MethodPost, routeRun,
		&api.StartRunRequest{Graph: graph}, &res, ErrStartRun,
		http.StatusOK, http.StatusCreated,
	)
	if err != nil {
		return "", err
	}
	return res.RunID, nil
}

// GetRun retrieves the current state of a run
func (c *Client) GetRun(
	ctx context.Context, runID api.RunID,
) (*api.RunState, error) {
	var res api.RunState
	err := c.do(ctx, http.MethodGet, runPath(runID), nil, &res, ErrGetRun,
		http.StatusOK,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListRuns retrieves summaries of the runs the server retains
func (c *Client) ListRuns(ctx context.Context) (*api.RunsListResponse, error) {
	var res api.RunsListResponse
	err := c.do(ctx, http.MethodGet, routeRun, nil, &res, ErrListRuns,
		http.StatusOK,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelRun requests cooperative cancellation of a run
func (c *Client) CancelRun(ctx context.Context, runID api.RunID) error {
	return c.do(ctx, http.MethodPost, runPath(runID)+"/cancel", nil, nil,
		ErrCancelRun, http.StatusOK, http.StatusAccepted,
	)
}

// Plan returns the execution order the server would use for a graph
func (c *Client) Plan(
	ctx context.Context, graph *api.Graph,
) ([]api.StepID, error) {
	var res api.PlanResponse
	err := c.do(ctx, http.MethodPost, routePlan,
		&api.PlanRequest{Graph: graph}, &res, ErrPlan, http.StatusOK,
	)
	if err != nil {
		return nil, err
	}
	return res.Order, nil
}

func (c *Client) do(
	ctx context.Context, method, path string, body, out any, failure error,
	accept ...int,
) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if !slices.Contains(accept, resp.StatusCode) {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d, body: %s",
			failure, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func runPath(runID api.RunID) string {
	return routeRun + "/" + url.PathEscape(string(runID))
}
