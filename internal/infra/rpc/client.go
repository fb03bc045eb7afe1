// Package rpc queries Tendermint/CometBFT nodes for their sync status and,
// for validators, the Cosmos SDK slashing module for signing info.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

const maxBodySize = 4 << 20

// Client queries node status over HTTP.
type Client struct {
	httpClient *http.Client
	log        *slog.Logger
	now        func() time.Time
}

// NewClient creates a new status client. Per-call deadlines come from the
// caller's context; timeout is a ceiling for a single HTTP round trip.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: slog.Default().With("component", "rpc"),
		now: time.Now,
	}
}

// statusResponse is the JSON-RPC envelope of GET /status.
type statusResponse struct {
	Result *struct {
		NodeInfo struct {
			Moniker string `json:"moniker"`
			Network string `json:"network"`
		} `json:"node_info"`
		SyncInfo struct {
			LatestBlockHeight string    `json:"latest_block_height"`
			LatestBlockTime   time.Time `json:"latest_block_time"`
			CatchingUp        bool      `json:"catching_up"`
		} `json:"sync_info"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error"`
}

// signingInfoResponse is the body of the slashing signing_infos endpoint.
type signingInfoResponse struct {
	ValSigningInfo *struct {
		Address             string    `json:"address"`
		JailedUntil         time.Time `json:"jailed_until"`
		Tombstoned          bool      `json:"tombstoned"`
		MissedBlocksCounter string    `json:"missed_blocks_counter"`
	} `json:"val_signing_info"`
}

// GetStatus returns the node's current height and sync flag. For validator
// nodes it also fetches signing info; a failure there is logged and leaves
// Validator nil rather than failing the whole status call.
func (c *Client) GetStatus(ctx context.Context, node domain.NodeConfig) (*domain.NodeStatus, error) {
	endpoint := strings.TrimRight(node.RPCURL, "/") + "/status"

	var resp statusResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, newError(KindMalformedResponse, endpoint,
			fmt.Errorf("rpc error %d: %s %s", resp.Error.Code, resp.Error.Message, resp.Error.Data))
	}
	if resp.Result == nil {
		return nil, newError(KindMalformedResponse, endpoint, fmt.Errorf("missing result"))
	}

	height, err := strconv.ParseInt(resp.Result.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return nil, newError(KindMalformedResponse, endpoint,
			fmt.Errorf("parse latest_block_height %q: %w", resp.Result.SyncInfo.LatestBlockHeight, err))
	}

	status := &domain.NodeStatus{
		Moniker:         resp.Result.NodeInfo.Moniker,
		Network:         resp.Result.NodeInfo.Network,
		Height:          height,
		LatestBlockTime: resp.Result.SyncInfo.LatestBlockTime,
		CatchingUp:      resp.Result.SyncInfo.CatchingUp,
	}

	if node.IsValidator() {
		info, err := c.GetValidatorInfo(ctx, node)
		if err != nil {
			c.log.Warn("Failed to fetch signing info", "node", node.Moniker, "error", err)
		} else {
			status.Validator = info
		}
	}

	return status, nil
}

// GetValidatorInfo reads the validator's signing info from the LCD API.
func (c *Client) GetValidatorInfo(ctx context.Context, node domain.NodeConfig) (*domain.ValidatorInfo, error) {
	endpoint := fmt.Sprintf("%s/cosmos/slashing/v1beta1/signing_infos/%s",
		strings.TrimRight(node.APIURL, "/"), node.ValidatorAddress)

	var resp signingInfoResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.ValSigningInfo == nil {
		return nil, newError(KindMalformedResponse, endpoint, fmt.Errorf("missing val_signing_info"))
	}

	var missed int64
	if s := resp.ValSigningInfo.MissedBlocksCounter; s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, newError(KindMalformedResponse, endpoint,
				fmt.Errorf("parse missed_blocks_counter %q: %w", s, err))
		}
		missed = n
	}

	return &domain.ValidatorInfo{
		Jailed:       resp.ValSigningInfo.JailedUntil.After(c.now()),
		Tombstoned:   resp.ValSigningInfo.Tombstoned,
		MissedBlocks: missed,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return newError(KindUnavailable, endpoint, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newError(classifyTransport(err), endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return newError(classifyTransport(err), endpoint, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return newError(KindUnauthorized, endpoint, fmt.Errorf("http %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return newError(KindRateLimited, endpoint,
			fmt.Errorf("http 429, retry after: %s", resp.Header.Get("Retry-After")))
	case resp.StatusCode != http.StatusOK:
		return newError(KindUnavailable, endpoint, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return newError(KindMalformedResponse, endpoint, fmt.Errorf("parse response: %w", err))
	}

	c.log.Debug("RPC call", "endpoint", endpoint, "latency", c.now().Sub(start))
	return nil
}

// Close cleans up idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
