// Package upstream is the HTTP client for the public FPL API.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/dlystyr/fantasypl-mcp/internal/domain/ingest"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

const (
	defaultBaseURL      = "https://fantasy.premierleague.com/api"
	defaultUserAgent    = "fantasypl-mcp/1.0"
	defaultTimeout      = 20 * time.Second
	defaultMaxBodyBytes = 16 << 20
	maxErrorBody        = 256
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // codec

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("unexpected upstream status")

// Client performs single-attempt requests against the FPL API. Retrying is
// left to the caller; responses that will not improve on retry are marked
// with ingest.Permanent.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	maxBodyBytes int64
	logger       logger.Logger
}

var _ ingest.Source = (*Client)(nil)

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		baseURL:      defaultBaseURL,
		userAgent:    defaultUserAgent,
		maxBodyBytes: defaultMaxBodyBytes,
		logger:       logger.Named("upstream"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchBootstrap implements ingest.Source.
func (c *Client) FetchBootstrap(ctx context.Context) (*ingest.Bootstrap, error) {
	var out ingest.Bootstrap
	if err := c.get(ctx, "bootstrap-static", "/bootstrap-static/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchFixtures implements ingest.Source.
func (c *Client) FetchFixtures(ctx context.Context) ([]ingest.FixtureRecord, error) {
	var out []ingest.FixtureRecord
	if err := c.get(ctx, "fixtures", "/fixtures/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchPlayerHistory implements ingest.Source.
func (c *Client) FetchPlayerHistory(ctx context.Context, playerID int) ([]ingest.HistoryRecord, error) {
	var out ingest.PlayerSummary
	if err := c.get(ctx, "element-summary", fmt.Sprintf("/element-summary/%d/", playerID), &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// FetchEntryPicks implements ingest.Source.
func (c *Client) FetchEntryPicks(ctx context.Context, entryID, gameweek int) (*ingest.EntryPicks, error) {
	var out ingest.EntryPicks
	if err := c.get(ctx, "entry-picks", fmt.Sprintf("/entry/%d/event/%d/picks/", entryID, gameweek), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, target any) (err error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = "error"
			if ingest.IsPermanent(err) {
				outcome = "rejected"
			}
		}
		metrics.RecordUpstreamRequest(endpoint, outcome, float64(time.Since(start).Microseconds())/1000)
	}()

	raw, err := c.execute(ctx, c.baseURL+path)
	if err != nil {
		c.logger.Debug(ctx, "upstream request failed",
			logger.String("endpoint", endpoint),
			logger.Error(err))
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return ingest.Permanent(fmt.Errorf("decode %s: %w", endpoint, err))
	}
	return nil
}

func (c *Client) execute(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ingest.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(raw)) > c.maxBodyBytes {
		return nil, ingest.Permanent(fmt.Errorf("response body exceeds %d bytes", c.maxBodyBytes))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	statusErr := fmt.Errorf("%w: status=%d body=%s", ErrStatus, resp.StatusCode, abbreviate(raw))
	if isRetryableStatus(resp.StatusCode) {
		return nil, statusErr
	}
	return nil, ingest.Permanent(statusErr)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

func abbreviate(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
