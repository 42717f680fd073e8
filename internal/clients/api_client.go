package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chilly266futon/orderComposer/internal/domain"
)

type Config struct {
	Address       string
	AuthToken     string
	Timeout       time.Duration
	EnableBreaker bool
	BreakerConfig BreakerConfig
	// RequestsPerSecond throttles outgoing calls; zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// apiClient carries the plumbing shared by the pricing and order clients.
type apiClient struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	breaker *breakerWrapper
	logger  *zap.Logger
}

type apiResponse struct {
	status int
	body   []byte
}

func (r apiResponse) ok() bool {
	return r.status >= 200 && r.status < 300
}

func newAPIClient(name string, cfg Config, httpClient *http.Client, logger *zap.Logger) (*apiClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%s: address is required", name)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &apiClient{
		baseURL: strings.TrimRight(cfg.Address, "/"),
		token:   cfg.AuthToken,
		timeout: cfg.Timeout,
		http:    httpClient,
		logger:  logger.With(zap.String("client", name)),
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.EnableBreaker {
		c.breaker = newBreaker(name, cfg.BreakerConfig)
	}

	return c, nil
}

// post sends body as JSON. decide inspects the response and returns a
// non-nil error only for failures that should count against the breaker.
func (c *apiClient) post(ctx context.Context, path string, body any, headers map[string]string, decide func(apiResponse) error) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	call := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		resp, err := c.do(ctx, path, payload, headers)
		if err != nil {
			return err
		}
		return decide(resp)
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return nil
}

func (c *apiClient) do(ctx context.Context, path string, payload []byte, headers map[string]string) (apiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apiResponse{}, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", c.token)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return apiResponse{}, err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return apiResponse{}, err
	}

	return apiResponse{status: res.StatusCode, body: resBody}, nil
}

func unexpectedStatus(resp apiResponse) error {
	return fmt.Errorf("get http response code %d and body %s", resp.status, resp.body)
}
