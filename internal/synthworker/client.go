package synthworker

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

	"server/internal/workflow"
)

// Client drives a synthworker Server over HTTP. It implements the
// workflow.TaskClient protocol surface; the task handle is the submission id,
// which keeps the handle derivable after a crash mid-poll.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("synthworker: base url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Submit(ctx context.Context, task workflow.Task) (string, error) {
	body, err := json.Marshal(processRequest{Text: task.Text})
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/process/%s", c.baseURL, task.SubmissionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("submit status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	io.Copy(io.Discard, resp.Body)
	return task.SubmissionID, nil
}

func (c *Client) Status(ctx context.Context, handle string) (workflow.TaskStatus, error) {
	endpoint := fmt.Sprintf("%s/status/%s", c.baseURL, handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return workflow.TaskStatus{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return workflow.TaskStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return workflow.TaskStatus{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return workflow.TaskStatus{}, fmt.Errorf("decode status: %w", err)
	}
	return workflow.TaskStatus{
		State:     body.Status,
		ResultKey: body.ResultKey,
		Error:     body.Error,
	}, nil
}

var _ workflow.TaskClient = (*Client)(nil)
