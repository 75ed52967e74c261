// Package oracle implements the HTTP client for the moderation oracle
// gateway. The oracle is an opaque asynchronous judge: messages are
// submitted as tagged payloads to a process, each submission returns a
// correlation id, and results are fetched later by that id.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lumio-labs/lumiod/internal/config"
	"github.com/lumio-labs/lumiod/internal/metrics"
	"github.com/lumio-labs/lumiod/internal/moderation"
)

// ErrSubmissionFailed wraps transport failures at submission time. A
// failed submission means the message is simply never moderated.
var ErrSubmissionFailed = errors.New("oracle submission failed")

// Tag is one name/value pair attached to an oracle message.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LogEntry is one record of the oracle's durable audit trail.
type LogEntry struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type messageRequest struct {
	Tags []Tag  `json:"tags"`
	Data string `json:"data"`
}

type messageResponse struct {
	ID string `json:"id"`
}

type resultResponse struct {
	Messages []struct {
		Data string `json:"data"`
	} `json:"messages"`
	Error string `json:"error"`
}

// Client talks to the oracle gateway. All calls are bounded by the
// configured request timeout via the underlying HTTP client.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	moderationProcess string
	logProcess        string
	logQueryTimeout   time.Duration
	logger            *slog.Logger
}

// NewClient creates an oracle client from configuration.
func NewClient(cfg config.OracleConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:        &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:           cfg.BaseURL,
		moderationProcess: cfg.ModerationProcess,
		logProcess:        cfg.LogProcess,
		logQueryTimeout:   cfg.LogQueryTimeout,
		logger:            logger.With("component", "oracle_client"),
	}
}

// SubmitModeration sends a message for judgment and returns the
// oracle's correlation id. It returns immediately; the verdict is
// fetched later by the poller.
func (c *Client) SubmitModeration(ctx context.Context, serverID, messageText string, platform moderation.Platform) (string, error) {
	tags := []Tag{
		{Name: "Action", Value: "Moderate"},
		{Name: "Server", Value: serverID},
		{Name: "Platform", Value: string(platform)},
	}

	id, err := c.sendMessage(ctx, c.moderationProcess, tags, messageText)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(platform), "error").Inc()
		return "", fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	metrics.SubmissionsTotal.WithLabelValues(string(platform), "ok").Inc()

	c.logger.DebugContext(ctx, "Message submitted for moderation",
		"server_id", serverID, "request_id", id, "platform", string(platform))
	return id, nil
}

// FetchVerdict performs a single non-blocking check of a previously
// submitted request. The outcome distinguishes ready, pending, and
// definite failure; only definite failures drop the ledger entry.
func (c *Client) FetchVerdict(ctx context.Context, requestID string) moderation.FetchOutcome {
	url := fmt.Sprintf("%s/processes/%s/results/%s", c.baseURL, c.moderationProcess, requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return moderation.Failed(fmt.Errorf("failed to build result request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return moderation.Failed(fmt.Errorf("result fetch transport failure: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusAccepted:
		// The oracle has not produced output for this request yet.
		return moderation.Pending()

	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return moderation.Failed(fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	var result resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return moderation.Failed(fmt.Errorf("failed to decode oracle result: %w", err))
	}

	if result.Error != "" {
		return moderation.Failed(fmt.Errorf("oracle reported error: %s", result.Error))
	}
	if len(result.Messages) == 0 {
		return moderation.Pending()
	}

	return moderation.Ready(moderation.ParseVerdict(result.Messages[0].Data))
}

// PushConfig mirrors moderation settings to the oracle. Fire-and-forget:
// the authoritative copy lives in the community record, so failures are
// for the caller to log, never to retry or surface.
func (c *Client) PushConfig(ctx context.Context, serverID string, strictness int, bannedWords string) error {
	tags := []Tag{
		{Name: "Action", Value: "SetConfig"},
		{Name: "Server", Value: serverID},
		{Name: "Strictness", Value: strconv.Itoa(strictness)},
		{Name: "BannedWords", Value: bannedWords},
	}

	id, err := c.sendMessage(ctx, c.moderationProcess, tags, "")
	if err != nil {
		return fmt.Errorf("config push failed for server %s: %w", serverID, err)
	}

	c.logger.InfoContext(ctx, "Moderation config pushed to oracle", "server_id", serverID, "message_id", id)
	return nil
}

// AppendLog appends one record to the oracle's audit trail and returns
// the oracle-assigned log id.
func (c *Client) AppendLog(ctx context.Context, serverID, kind, data string) (string, error) {
	tags := []Tag{
		{Name: "Action", Value: "StoreLog"},
		{Name: "Server", Value: serverID},
		{Name: "LogType", Value: kind},
	}

	id, err := c.sendMessage(ctx, c.logProcess, tags, data)
	if err != nil {
		return "", fmt.Errorf("log append failed for server %s: %w", serverID, err)
	}

	c.logger.DebugContext(ctx, "Audit log stored", "server_id", serverID, "log_id", id, "kind", kind)
	return id, nil
}

// QueryLogs retrieves audit log entries, newest first. The whole query
// (submit plus result wait) is bounded by the configured log query
// timeout; on expiry an empty result is returned rather than blocking
// the caller.
func (c *Client) QueryLogs(ctx context.Context, serverID string, limit, offset int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.logQueryTimeout)
	defer cancel()

	tags := []Tag{
		{Name: "Action", Value: "GetLogs"},
		{Name: "Server", Value: serverID},
		{Name: "Limit", Value: strconv.Itoa(limit)},
		{Name: "Offset", Value: strconv.Itoa(offset)},
	}

	queryID, err := c.sendMessage(queryCtx, c.logProcess, tags, "")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.WarnContext(ctx, "Log query timed out at submission", "server_id", serverID)
			return []LogEntry{}, nil
		}
		return []LogEntry{}, fmt.Errorf("log query submission failed: %w", err)
	}

	// Poll the query's own result until it is ready or the timeout
	// expires.
	for {
		outcome := c.fetchLogResult(queryCtx, queryID)
		switch outcome.state {
		case logResultReady:
			return outcome.entries, nil

		case logResultFailed:
			if errors.Is(outcome.err, context.DeadlineExceeded) {
				c.logger.WarnContext(ctx, "Log query timed out waiting for result",
					"server_id", serverID, "query_id", queryID)
				return []LogEntry{}, nil
			}
			return []LogEntry{}, fmt.Errorf("log query failed: %w", outcome.err)
		}

		select {
		case <-queryCtx.Done():
			c.logger.WarnContext(ctx, "Log query timed out waiting for result",
				"server_id", serverID, "query_id", queryID)
			return []LogEntry{}, nil
		case <-time.After(200 * time.Millisecond):
		}
	}
}

type logResultState int

const (
	logResultPending logResultState = iota
	logResultReady
	logResultFailed
)

type logResult struct {
	state   logResultState
	entries []LogEntry
	err     error
}

func (c *Client) fetchLogResult(ctx context.Context, queryID string) logResult {
	url := fmt.Sprintf("%s/processes/%s/results/%s", c.baseURL, c.logProcess, queryID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return logResult{state: logResultFailed, err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return logResult{state: logResultFailed, err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusAccepted:
		return logResult{state: logResultPending}

	case resp.StatusCode != http.StatusOK:
		return logResult{state: logResultFailed, err: fmt.Errorf("oracle returned status %d", resp.StatusCode)}
	}

	var result resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return logResult{state: logResultFailed, err: fmt.Errorf("failed to decode log result: %w", err)}
	}

	if result.Error != "" {
		return logResult{state: logResultFailed, err: fmt.Errorf("oracle reported error: %s", result.Error)}
	}
	if len(result.Messages) == 0 {
		return logResult{state: logResultPending}
	}

	var entries []LogEntry
	if err := json.Unmarshal([]byte(result.Messages[0].Data), &entries); err != nil {
		return logResult{state: logResultFailed, err: fmt.Errorf("failed to parse log entries: %w", err)}
	}
	return logResult{state: logResultReady, entries: entries}
}

// sendMessage posts one tagged message to a process and returns the
// oracle-assigned message id.
func (c *Client) sendMessage(ctx context.Context, process string, tags []Tag, data string) (string, error) {
	payload, err := json.Marshal(messageRequest{Tags: tags, Data: data})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/processes/%s/messages", c.baseURL, process)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("message transport failure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var msg messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("failed to decode message response: %w", err)
	}
	if msg.ID == "" {
		return "", errors.New("oracle returned empty message id")
	}

	return msg.ID, nil
}
