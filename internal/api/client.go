package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/oshokin/safety-beacon/internal/domain/alert"
	"github.com/oshokin/safety-beacon/internal/version"
)

const (
	// DefaultCallTimeout bounds individual REST calls.
	DefaultCallTimeout = 10 * time.Second

	// defaultRequestsPerSecond paces outbound calls so a tight retry loop
	// cannot hammer the service.
	defaultRequestsPerSecond = 5
	// defaultRequestBurst is the short-term allowance above the steady rate.
	defaultRequestBurst = 10

	// maxErrorBodyBytes bounds how much of an error response is read back.
	maxErrorBodyBytes = 4 << 10
)

var (
	// errBaseURLRequired is returned when a client is built without a base URL.
	errBaseURLRequired = errors.New("base URL must be provided")

	// ErrNotFound is returned when the service does not know the requested
	// entity, e.g. an alert that already ended and was garbage-collected.
	ErrNotFound = errors.New("not found")
)

// Client talks to the alert service REST API.
type Client struct {
	// httpClient executes requests.
	httpClient *http.Client
	// baseURL is the API root without a trailing slash.
	baseURL string
	// limiter paces outbound requests.
	limiter *rate.Limiter
	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRateLimit overrides the outbound request pacing.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		}
	}
}

// NewClient creates a client for the alert service at the provided base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	client := &Client{
		httpClient:  &http.Client{},
		baseURL:     strings.TrimRight(baseURL, "/"),
		limiter:     rate.NewLimiter(defaultRequestsPerSecond, defaultRequestBurst),
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// RegisterDevice announces the device identity to the service. Registration
// is idempotent server-side; re-registering an existing identity refreshes
// its metadata.
func (c *Client) RegisterDevice(ctx context.Context, device *Device) error {
	return c.call(ctx, http.MethodPost, "/devices", device, nil)
}

// UpdateLocation reports a fresh device location fix.
func (c *Client) UpdateLocation(ctx context.Context, deviceID string, location alert.DeviceLocation) error {
	path := "/devices/" + url.PathEscape(deviceID) + "/location"

	return c.call(ctx, http.MethodPut, path, newLocationPayload(location), nil)
}

// DeviceStatus fetches the authoritative state of this device.
func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (*DeviceStatus, error) {
	var status DeviceStatus

	path := "/devices/" + url.PathEscape(deviceID) + "/status"
	if err := c.call(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// TriggerAlert creates a new alert and returns its server-assigned ID.
func (c *Client) TriggerAlert(ctx context.Context, deviceID string, location alert.DeviceLocation) (string, error) {
	var response triggerResponse

	request := triggerRequest{
		DeviceID: deviceID,
		Location: newLocationPayload(location),
	}

	if err := c.call(ctx, http.MethodPost, "/alerts", request, &response); err != nil {
		return "", err
	}

	return response.AlertID, nil
}

// EndAlert terminates an alert originated by this device.
func (c *Client) EndAlert(ctx context.Context, deviceID, alertID string) error {
	path := "/alerts/" + url.PathEscape(alertID) + "/end"

	return c.call(ctx, http.MethodPost, path, endRequest{DeviceID: deviceID}, nil)
}

// NearbyAlerts fetches the active alerts within notification range of the
// provided location.
func (c *Client) NearbyAlerts(
	ctx context.Context,
	deviceID string,
	location alert.Coordinate,
) ([]*alert.Alert, error) {
	var response nearbyAlertsResponse

	path := fmt.Sprintf("/alerts/nearby?device_id=%s&latitude=%f&longitude=%f",
		url.QueryEscape(deviceID), location.Latitude, location.Longitude)

	if err := c.call(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}

	alerts := make([]*alert.Alert, 0, len(response.Alerts))
	for i := range response.Alerts {
		alerts = append(alerts, response.Alerts[i].toDomain())
	}

	return alerts, nil
}

// AlertDetail fetches one alert by ID.
func (c *Client) AlertDetail(ctx context.Context, alertID string) (*alert.Alert, error) {
	var payload alertPayload

	path := "/alerts/" + url.PathEscape(alertID)
	if err := c.call(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}

	return payload.toDomain(), nil
}

// RespondToAlert marks this device as a responder to the given alert.
func (c *Client) RespondToAlert(
	ctx context.Context,
	deviceID, alertID string,
	location alert.DeviceLocation,
) error {
	path := "/alerts/" + url.PathEscape(alertID) + "/respond"
	request := respondRequest{
		DeviceID: deviceID,
		Location: newLocationPayload(location),
	}

	return c.call(ctx, http.MethodPost, path, request, nil)
}

// NearbyUserCount fetches how many users are within the radius of a point.
func (c *Client) NearbyUserCount(
	ctx context.Context,
	location alert.Coordinate,
	radiusMeters float64,
) (int, error) {
	var response nearbyUserCountResponse

	path := fmt.Sprintf("/users/nearby/count?latitude=%f&longitude=%f&radius_meters=%f",
		location.Latitude, location.Longitude, radiusMeters)

	if err := c.call(ctx, http.MethodGet, path, nil, &response); err != nil {
		return 0, err
	}

	return response.Count, nil
}

// call executes one paced, timeout-bounded request and decodes the response.
func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	request.Header.Set("User-Agent", version.UserAgent())

	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", alert.ErrNetworkUnavailable, method, path, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if err = checkStatus(response); err != nil {
		return err
	}

	if result == nil {
		return nil
	}

	if err = json.NewDecoder(response.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// checkStatus maps non-success responses onto the shared error taxonomy.
func checkStatus(response *http.Response) error {
	if response.StatusCode >= http.StatusOK && response.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
	detail := strings.TrimSpace(string(body))

	switch response.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", alert.ErrPreconditionFailed, detail)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", alert.ErrNetworkUnavailable, response.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d: %s", response.StatusCode, detail)
	}
}
