// File: internal/solver/oracle.go
// Description: Client for a remote neural pathfinding oracle. The oracle
// speaks a small HTTP JSON protocol matching the solve/solution wire shape,
// so the same model service can back both this client and legacy direct
// solve requests.

package solver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// OracleClient calls a remote grid-solving model. Transport failures are
// returned as errors; a model that ran but produced no usable path is
// reported as ok=false so callers fall back to the reference solver.
type OracleClient struct {
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

var _ schemas.Solver = (*OracleClient)(nil)

type oracleRequest struct {
	RequestID string `json:"requestId"`
	Grid      []int  `json:"grid"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type oracleResponse struct {
	Path            [][2]int `json:"path"`
	Success         bool     `json:"success"`
	InferenceTimeMs int64    `json:"inferenceTimeMs"`
}

// NewOracleClient creates a client for the oracle at endpoint.
func NewOracleClient(endpoint string, timeout time.Duration, logger *zap.Logger) *OracleClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OracleClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      logger.Named("oracle"),
	}
}

// Solve submits the field to the oracle and returns its path, if any.
func (o *OracleClient) Solve(ctx context.Context, grid []int, width, height int) ([][2]int, bool, error) {
	reqID := uuid.New().String()
	body, err := json.Marshal(oracleRequest{
		RequestID: reqID,
		Grid:      grid,
		Width:     width,
		Height:    height,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var out oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("failed to decode oracle response: %w", err)
	}

	o.log.Debug("Oracle inference finished",
		zap.String("request_id", reqID),
		zap.Bool("success", out.Success),
		zap.Int("path_len", len(out.Path)),
		zap.Duration("round_trip", time.Since(started)),
		zap.Int64("inference_ms", out.InferenceTimeMs))

	if !out.Success || len(out.Path) == 0 {
		return nil, false, nil
	}
	return out.Path, true, nil
}
