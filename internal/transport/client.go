// Package transport calls the licensing service's key endpoints.
//
// The client returns response bodies unverified; callers hand them to
// keycheck. Only failures to reach the service are reported here, as
// licerr transport errors.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"winsbygroup.com/keyverify/internal/canonical"
	"winsbygroup.com/keyverify/internal/licerr"
	"winsbygroup.com/keyverify/internal/logging"
	"winsbygroup.com/keyverify/internal/metrics"
	"winsbygroup.com/keyverify/internal/response"
)

// maxBodyBytes caps a response body.
const maxBodyBytes = 1 << 20

// Endpoint paths relative to the API base URL.
const (
	PathActivate   = "key/activate"
	PathGetKey     = "key/getkey"
	PathDeactivate = "key/deactivate"
)

// Client is safe for concurrent use.
type Client struct {
	base       *url.URL
	token      string
	signMethod canonical.SignMethod
	http       *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	log        *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every call. A client passed with WithHTTPClient is
// copied, not changed.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit limits outgoing calls. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithSignMethod(m canonical.SignMethod) Option {
	return func(c *Client) { c.signMethod = m }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a client for the API rooted at baseURL.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		base:       u,
		token:      token,
		signMethod: canonical.SignMethodBlob,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

// ActivateRequest binds a key to a machine code.
type ActivateRequest struct {
	ProductID            int64
	Key                  string
	MachineCode          string
	FieldsToReturn       int
	Metadata             bool
	FloatingTimeInterval int
	MaxOverdraft         int
	FriendlyName         string
}

// GetKeyRequest reads a key without activating.
type GetKeyRequest struct {
	ProductID            int64
	Key                  string
	FieldsToReturn       int
	Metadata             bool
	FloatingTimeInterval int
}

// DeactivateRequest releases a machine code.
type DeactivateRequest struct {
	ProductID   int64
	Key         string
	MachineCode string
	Floating    bool
}

// Activate returns the raw signed response body.
func (c *Client) Activate(ctx context.Context, req ActivateRequest) ([]byte, error) {
	form := c.signedForm(req.ProductID, req.Key)
	form.Set("MachineCode", req.MachineCode)
	form.Set("FieldsToReturn", strconv.Itoa(req.FieldsToReturn))
	form.Set("Metadata", boolString(req.Metadata))
	form.Set("FloatingTimeInterval", strconv.Itoa(req.FloatingTimeInterval))
	form.Set("MaxOverdraft", strconv.Itoa(req.MaxOverdraft))
	if req.FriendlyName != "" {
		form.Set("FriendlyName", req.FriendlyName)
	}
	return c.post(ctx, PathActivate, form)
}

// GetKey returns the raw signed response body.
func (c *Client) GetKey(ctx context.Context, req GetKeyRequest) ([]byte, error) {
	form := c.signedForm(req.ProductID, req.Key)
	form.Set("FieldsToReturn", strconv.Itoa(req.FieldsToReturn))
	form.Set("Metadata", boolString(req.Metadata))
	form.Set("FloatingTimeInterval", strconv.Itoa(req.FloatingTimeInterval))
	return c.post(ctx, PathGetKey, form)
}

// Deactivate releases req.MachineCode. A result == 1 answer is returned as a
// ServerRejected error.
func (c *Client) Deactivate(ctx context.Context, req DeactivateRequest) error {
	form := url.Values{}
	form.Set("token", c.token)
	form.Set("ProductId", strconv.FormatInt(req.ProductID, 10))
	form.Set("Key", req.Key)
	form.Set("MachineCode", req.MachineCode)
	form.Set("Floating", boolString(req.Floating))

	body, err := c.post(ctx, PathDeactivate, form)
	if err != nil {
		return err
	}
	_, err = response.DecodeFlat(body)
	return err
}

func (c *Client) signedForm(productID int64, key string) url.Values {
	form := url.Values{}
	form.Set("token", c.token)
	form.Set("ProductId", strconv.FormatInt(productID, 10))
	form.Set("Key", key)
	form.Set("Sign", "True")
	form.Set("SignMethod", strconv.Itoa(int(c.signMethod)))
	form.Set("ModelVersion", strconv.Itoa(c.signMethod.ModelVersion()))
	return form
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, unreachable(err)
		}
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, unreachable(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveTransport(path, time.Since(start))
	if err != nil {
		c.log.Warn("licensing service unreachable", zap.String("path", path), zap.Error(err))
		return nil, unreachable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, unreachable(err)
	}

	// error statuses still carry a JSON envelope the decoder understands
	c.log.Debug("licensing service call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		logging.Key(form.Get("Key")),
		zap.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}

func unreachable(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		err = ue.Err
	}
	return licerr.NewTransport(licerr.MsgTransport+" Error message: "+err.Error(), err)
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
