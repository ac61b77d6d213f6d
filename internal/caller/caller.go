// Package caller is the boundary adapter to the call-execution service,
// which owns the actual outbound API request logic. This engine only hands
// over the schedule's opaque definition references and reads the verdict.
package caller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mkarlsen/relayd/internal/executor"
	"github.com/mkarlsen/relayd/internal/models"
)

// Client talks to the call-execution service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for the service at baseURL. The HTTP client timeout
// backs up the executor's per-attempt context deadline.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type executeRequest struct {
	ScheduleID    int64 `json:"schedule_id"`
	SourceID      int64 `json:"source_id"`
	RequestID     int64 `json:"request_id"`
	ExtractID     int64 `json:"extract_id"`
	DestinationID int64 `json:"destination_id"`
}

// ExecuteScheduledCall submits the schedule for execution and returns the
// service's verdict. Transport errors and non-200 responses are failures.
func (c *Client) ExecuteScheduledCall(ctx context.Context, s models.Schedule) (executor.Result, error) {
	body, err := json.Marshal(executeRequest{
		ScheduleID:    s.ID,
		SourceID:      s.SourceID,
		RequestID:     s.RequestID,
		ExtractID:     s.ExtractID,
		DestinationID: s.DestinationID,
	})
	if err != nil {
		return executor.Result{}, fmt.Errorf("encode execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/executions", bytes.NewReader(body))
	if err != nil {
		return executor.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return executor.Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return executor.Result{}, fmt.Errorf("call-execution service returned %d", resp.StatusCode)
	}

	var res executor.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return executor.Result{}, fmt.Errorf("decode execution result: %w", err)
	}
	return res, nil
}
