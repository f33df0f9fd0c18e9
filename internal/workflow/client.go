package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"NewportChat/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const scopeName = "NewportChat/internal/workflow"

// Client invokes named workflows on the remote run endpoint
type Client struct {
	endpoint   string
	apiKey     string
	appID      string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	tracer     trace.Tracer

	duration metric.Float64Histogram
	requests metric.Int64Counter
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// NewClient creates a workflow client from configuration
func NewClient(cfg config.Workflow, opts ...Option) *Client {
	c := &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		appID:    cfg.AppID,
		timeout:  cfg.Timeout,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
		tracer: otel.Tracer(scopeName),
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	for _, opt := range opts {
		opt(c)
	}

	meter := otel.Meter(scopeName)
	var err error
	c.duration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		c.logger.Warn("failed to create histogram", "error", err)
	}
	c.requests, err = meter.Int64Counter(
		"workflow.requests",
		metric.WithDescription("Workflow runs by outcome"),
	)
	if err != nil {
		c.logger.Warn("failed to create counter", "error", err)
	}

	return c
}

// Run invokes the named workflow with the given variables and returns the
// reply text. Any non-2xx status, undecodable body or unexpected shape is an
// error; nothing is retried.
func (c *Client) Run(ctx context.Context, workflow string, variables map[string]string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "workflow_run",
		trace.WithAttributes(attribute.String("workflow", workflow)))
	defer span.End()

	start := time.Now()
	reply, err := c.run(ctx, workflow, variables)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	attrs := metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("outcome", outcome),
	)
	if c.duration != nil {
		c.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	}
	if c.requests != nil {
		c.requests.Add(ctx, 1, attrs)
	}

	return reply, err
}

func (c *Client) run(ctx context.Context, workflow string, variables map[string]string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("failed to wait for rate limiter: %w", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if variables == nil {
		variables = map[string]string{}
	}

	reqBody := RunRequest{
		AppID:     c.appID,
		Variables: variables,
		Workflow:  workflow,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("API request failed with status %s - %s", resp.Status, string(body))
	}

	c.logger.Debug("API response", "workflow", workflow, "body", string(body))

	reply, err := ExtractReply(body)
	if err != nil {
		return "", fmt.Errorf("unexpected API response %s: %w", string(body), err)
	}

	return reply, nil
}
