package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/hypernode-labs/node-agent/internal/gpu"
	"github.com/hypernode-labs/node-agent/internal/jobs"
)

// StatusError is returned when the backend answered but rejected the request.
// Transport failures surface as plain wrapped errors instead, so callers can
// tell the two apart. Neither is retried here; retry policy belongs to them.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.Code, e.Body)
}

// Client performs the authenticated HTTP calls to the coordination backend.
// All fields are fixed at construction except nodeID, which is written once
// after registration and only read afterwards, so the client is safe for
// concurrent use by the loops.
type Client struct {
	baseURL    string
	token      string
	wallet     string
	nodeID     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, token, wallet string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		wallet:  wallet,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type registerRequest struct {
	WalletAddress string                 `json:"walletAddress"`
	GPUModel      string                 `json:"gpuModel"`
	VRAM          uint64                 `json:"vram"` // GB
	DriverVersion string                 `json:"driverVersion"`
	CUDAVersion   string                 `json:"cudaVersion"`
	HostOS        string                 `json:"hostOS"`
	CPUModel      string                 `json:"cpuModel"`
	RAMTotal      uint64                 `json:"ramTotal"` // MB
	Location      map[string]interface{} `json:"location"`
	Capabilities  []string               `json:"capabilities"`
}

type registerResponse struct {
	Node struct {
		NodeID string `json:"nodeId"`
	} `json:"node"`
}

// Register advertises the node's capabilities and returns the
// backend-assigned node ID.
func (c *Client) Register(ctx context.Context, snap gpu.Snapshot) (string, error) {
	req := registerRequest{
		WalletAddress: c.wallet,
		GPUModel:      snap.GPUModel,
		VRAM:          snap.VRAMTotalMB / 1024,
		DriverVersion: snap.DriverVersion,
		CUDAVersion:   snap.CUDAVersion,
		HostOS:        snap.OS,
		CPUModel:      snap.CPUModel,
		RAMTotal:      snap.RAMTotalMB,
		Location: map[string]interface{}{
			"country": "Unknown",
			"city":    "Unknown",
			"lat":     0,
			"lon":     0,
		},
		Capabilities: snap.Capabilities,
	}

	var resp registerResponse
	if err := c.postJSON(ctx, "register", "/api/nodes/register", req, &resp); err != nil {
		return "", err
	}
	if resp.Node.NodeID == "" {
		return "", fmt.Errorf("register: backend response carried no node id")
	}
	c.logger.Info("Node registered", zap.String("node_id", resp.Node.NodeID))
	return resp.Node.NodeID, nil
}

// Heartbeat asserts the node is online.
func (c *Client) Heartbeat(ctx context.Context) error {
	req := map[string]string{
		"walletAddress": c.wallet,
		"status":        "online",
	}
	return c.postJSON(ctx, "heartbeat", "/api/nodes/heartbeat", req, nil)
}

type listJobsResponse struct {
	Job *jobs.Description `json:"job"`
}

// ListAvailableJobs polls for work. A nil job with a nil error means the
// backend had nothing to hand out.
func (c *Client) ListAvailableJobs(ctx context.Context) (*jobs.Description, error) {
	endpoint := c.baseURL + "/api/jobs/available?wallet=" + url.QueryEscape(c.wallet)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("list jobs: failed to build request: %w", err)
	}

	var resp listJobsResponse
	if err := c.do("list jobs", httpReq, &resp); err != nil {
		return nil, err
	}
	return resp.Job, nil
}

// ReportResult delivers a successful job outcome.
func (c *Client) ReportResult(ctx context.Context, jobID string, output map[string]interface{}, metrics map[string]interface{}) error {
	req := map[string]interface{}{
		"nodeId":  c.nodeID,
		"result":  output,
		"logs":    []string{},
		"metrics": metrics,
	}
	path := "/api/jobs/" + url.PathEscape(jobID) + "/result"
	return c.postJSON(ctx, "report result", path, req, nil)
}

// ReportFailure delivers a failed job outcome.
func (c *Client) ReportFailure(ctx context.Context, jobID string, reason string) error {
	req := map[string]string{"error": reason}
	path := "/api/jobs/" + url.PathEscape(jobID) + "/failure"
	return c.postJSON(ctx, "report failure", path, req, nil)
}

// SetNodeID records the backend-assigned identity for result reporting.
// It is called once after registration, before any loop starts.
func (c *Client) SetNodeID(nodeID string) {
	c.nodeID = nodeID
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(op, httpReq, result)
}

func (c *Client) do(op string, req *http.Request, result interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Op: op, Code: resp.StatusCode, Body: string(body)}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
	}
	return nil
}
