package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
	"github.com/oshokin/deploy-manager/internal/logger"
	"github.com/oshokin/deploy-manager/internal/service/common"
)

const (
	healthPath   = "health"
	shutdownPath = "shutdown"

	// maxBodySize caps how much of a health answer is read.
	maxBodySize = 1 << 20
)

var (
	errBaseURLRequired = errors.New("actuator url must be provided")
	errBadHTTPStatus   = errors.New("unexpected http status")
	errNoStatusField   = errors.New("health answer has no status")
)

// Options configures the management endpoint client.
type Options struct {
	// BaseURL is the management base, e.g. http://localhost:9093/manage.
	BaseURL string
	// ConnectTimeout bounds dialing the endpoint.
	ConnectTimeout time.Duration
	// ReadTimeout bounds waiting for the answer once connected.
	ReadTimeout time.Duration
}

// Client is the management endpoint client. It holds no mutable state and is
// safe to call repeatedly and concurrently.
type Client struct {
	// healthURL is the absolute URL of the health endpoint.
	healthURL string
	// shutdownURL is the absolute URL of the shutdown endpoint.
	shutdownURL string
	// http performs the requests with the configured timeouts.
	http *http.Client
}

// healthAnswer is the subset of the health body the client reads.
type healthAnswer struct {
	Status *string `json:"status"`
}

// New creates a client for the endpoint described by opts.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errBaseURLRequired
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse actuator url: %w", err)
	}

	return &Client{
		healthURL:   join(base, healthPath),
		shutdownURL: join(base, shutdownPath),
		http:        common.NewHTTPClient(opts.ConnectTimeout, opts.ReadTimeout),
	}, nil
}

// GetStatus issues one GET to the health endpoint and classifies the answer.
func (c *Client) GetStatus(ctx context.Context) deployment.HealthStatus {
	status, err := c.fetchStatus(ctx)
	if err != nil {
		logger.DebugKV(ctx, "Health endpoint did not answer", "url", c.healthURL, "error", err)
		return deployment.HealthUnknown
	}

	logger.DebugKV(ctx, "Health endpoint answered", "status", status.String())

	return status
}

// Shutdown asks the payload to stop. Failures are logged, never returned.
func (c *Client) Shutdown(ctx context.Context) {
	logger.InfoKV(ctx, "Requesting payload shutdown", "url", c.shutdownURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.shutdownURL, http.NoBody)
	if err != nil {
		logger.WarnKV(ctx, "Shutdown request could not be built", "error", err)
		return
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.WarnKV(ctx, "Shutdown request failed", "error", err)
		return
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode/100 != 2 {
		logger.WarnKV(ctx, "Shutdown request rejected", "status", resp.Status)
		return
	}

	logger.Info(ctx, "Shutdown request accepted")
}

func (c *Client) fetchStatus(ctx context.Context) (deployment.HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, http.NoBody)
	if err != nil {
		return deployment.HealthUnknown, err
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return deployment.HealthUnknown, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	// A 503 carrying a status body is the endpoint explicitly reporting not up.
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusServiceUnavailable {
		return deployment.HealthUnknown, fmt.Errorf("%s: %w", resp.Status, errBadHTTPStatus)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return deployment.HealthUnknown, fmt.Errorf("read health answer: %w", err)
	}

	var answer healthAnswer
	if err = json.Unmarshal(body, &answer); err != nil {
		return deployment.HealthUnknown, fmt.Errorf("decode health answer: %w", err)
	}

	if answer.Status == nil {
		return deployment.HealthUnknown, errNoStatusField
	}

	return deployment.ParseHealthStatus(*answer.Status), nil
}

func join(base *url.URL, elem string) string {
	u := *base
	u.Path = path.Join(u.Path, elem)

	return u.String()
}
