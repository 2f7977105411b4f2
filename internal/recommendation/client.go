package recommendation

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

	"github.com/lewisedginton/present_ponder/internal/gift"
	"github.com/lewisedginton/present_ponder/pkg/logger"
	"golang.org/x/time/rate"
)

// Recommender fetches normalized recommendations for a request.
type Recommender interface {
	Recommend(ctx context.Context, req Request) ([]gift.Recommendation, error)
}

// ClientConfig configures the HTTP client for the recommendation service.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	Logger            logger.Logger
	HTTPClient        *http.Client
}

// Client calls POST <BaseURL>/recommend.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	log     logger.Logger
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("recommendation service base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    httpClient,
		log:     log,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// HealthURL is the service's health endpoint, for readiness checks.
func (c *Client) HealthURL() string {
	return c.baseURL + "/health"
}

// Recommend sends req and normalizes the response. Recommendation ids use the
// profile_id echoed by the service when present, else the request's profile id.
func (c *Client) Recommend(ctx context.Context, req Request) ([]gift.Recommendation, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if id := logger.GetCorrelationIDFromContext(ctx); id != "" {
		httpReq.Header.Set(logger.CorrelationIDHeader, id)
	}

	log := logger.GetLoggerFromContext(ctx, c.log).WithFields(logger.StringField("profile_id", req.Profile.ProfileID))
	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Warn("Recommendation request failed", logger.ErrorField(err))
		return nil, &gift.UpstreamError{Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gift.UpstreamError{StatusCode: resp.StatusCode, Detail: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := &gift.UpstreamError{StatusCode: resp.StatusCode, Detail: extractDetail(raw)}
		log.Warn("Recommendation service returned an error",
			logger.HTTPStatusField(resp.StatusCode),
			logger.StringField("detail", upstream.Detail),
		)
		return nil, upstream
	}

	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &gift.UpstreamError{StatusCode: resp.StatusCode, Detail: "malformed response: " + err.Error()}
	}

	contextID := req.Profile.ProfileID
	if decoded.ProfileID != "" {
		contextID = decoded.ProfileID
	}
	recs := NormalizeResponse(decoded.Recommendations, contextID)

	log.Info("Recommendations received",
		logger.IntField("count", len(recs)),
		logger.DurationField("duration", time.Since(start)),
	)
	return recs, nil
}

// extractDetail re-serializes the body's detail field, whatever its JSON type, as one string.
func extractDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 || string(payload.Detail) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload.Detail); err != nil {
		return string(payload.Detail)
	}
	return buf.String()
}
