package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/safealert/internal/model"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// tokenExpiredMessage is the 401 body message that triggers a refresh.
const tokenExpiredMessage = "Token expired"

// CredentialStore is the session storage the client reads tokens from and
// writes rotated tokens to.
type CredentialStore interface {
	AccessToken() (string, error)
	RefreshToken() (string, error)
	SaveTokens(access, refresh string) error
	SaveUser(u *model.User) error
	Clear() error
}

// Config holds backend connection settings.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSessionExpired registers a hook that runs once each time a failed
// refresh tears the session down.
func WithSessionExpired(fn func()) Option {
	return func(c *Client) {
		c.onExpired = fn
	}
}

// Response is a decoded backend response.
type Response struct {
	StatusCode int
	model.Envelope
}

// Client issues authenticated JSON requests against the backend. It attaches
// the stored bearer token, refreshes it once when the backend reports expiry
// and retries the original request exactly once. Safe for concurrent use;
// concurrent refreshes are coalesced.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	store      CredentialStore
	logger     *slog.Logger
	onExpired  func()

	refreshGroup singleflight.Group
}

func NewClient(cfg Config, store CredentialStore, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "safealert"
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rawResponse struct {
	status    int
	env       *model.Envelope
	decodeErr error
}

// Do sends body as JSON to endpoint and returns the decoded envelope for any
// 2xx status, whatever its success flag. Failures are *NetworkError,
// *RequestError or ErrSessionExpired.
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, header http.Header) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	token, err := c.store.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}

	resp, err := c.send(ctx, method, endpoint, payload, header, token)
	if err != nil {
		return nil, err
	}

	if resp.status == http.StatusUnauthorized && signalsExpiry(resp.env) {
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, method, endpoint, payload, header, fresh)
		if err != nil {
			return nil, err
		}
	}

	return toResult(resp)
}

func signalsExpiry(env *model.Envelope) bool {
	return env != nil && strings.EqualFold(strings.TrimSpace(env.Message), tokenExpiredMessage)
}

func toResult(resp *rawResponse) (*Response, error) {
	ok := resp.status >= 200 && resp.status < 300
	if resp.env == nil {
		msg := genericFailure
		if ok {
			msg = "invalid response body"
		}
		return nil, &RequestError{StatusCode: resp.status, Message: msg, Err: resp.decodeErr}
	}
	if !ok {
		msg := resp.env.Message
		if msg == "" {
			msg = genericFailure
		}
		return nil, &RequestError{StatusCode: resp.status, Message: msg}
	}
	return &Response{StatusCode: resp.status, Envelope: *resp.env}, nil
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte, header http.Header, token string) (*rawResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "endpoint", endpoint, "request_id", requestID, "error", err)
		return nil, &NetworkError{Method: method, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	raw := &rawResponse{status: resp.StatusCode}
	var env model.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		raw.decodeErr = fmt.Errorf("decode response: %w", err)
		return raw, nil
	}
	raw.env = &env
	return raw, nil
}

// call performs a request and decodes the envelope's data into out. A
// success:false envelope is reported as a *RequestError.
func (c *Client) call(ctx context.Context, method, endpoint string, body, out any) error {
	resp, err := c.Do(ctx, method, endpoint, body, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = genericFailure
		}
		return &RequestError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &RequestError{StatusCode: resp.StatusCode, Message: "invalid response data", Err: err}
	}
	return nil
}

var errNoRefreshToken = errors.New("no refresh token")

// refresh obtains a new access token after a request carrying sent was
// rejected as expired. Concurrent callers share one refresh, which is bounded
// by the client timeout rather than by the first caller's context. On failure
// the session is cleared and ErrSessionExpired returned.
func (c *Client) refresh(ctx context.Context, sent string) (string, error) {
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		// Another caller may have rotated the token since this request went out.
		if current, err := c.store.AccessToken(); err == nil && current != "" && current != sent {
			return current, nil
		}

		token, err := c.rotate(shared)
		if err != nil {
			c.logger.Warn("token refresh failed, clearing session", "error", err)
			if cerr := c.store.Clear(); cerr != nil {
				c.logger.Error("clear session", "error", cerr)
			}
			if c.onExpired != nil {
				c.onExpired()
			}
			return "", ErrSessionExpired
		}
		c.logger.Info("access token refreshed")
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// rotate performs a single refresh call. It never triggers another refresh.
func (c *Client) rotate(ctx context.Context) (string, error) {
	refreshToken, err := c.store.RefreshToken()
	if err != nil {
		return "", fmt.Errorf("read refresh token: %w", err)
	}
	if refreshToken == "" {
		return "", errNoRefreshToken
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", fmt.Errorf("marshal refresh: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", payload, nil, "")
	if err != nil {
		return "", err
	}
	if resp.env == nil {
		return "", fmt.Errorf("refresh: status %d: %w", resp.status, resp.decodeErr)
	}
	if !resp.env.Success {
		return "", fmt.Errorf("refresh rejected: status %d: %s", resp.status, resp.env.Message)
	}

	var pair tokenPair
	if err := json.Unmarshal(resp.env.Data, &pair); err != nil {
		return "", fmt.Errorf("decode refresh: %w", err)
	}
	if pair.Token == "" {
		return "", errors.New("refresh response missing token")
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	if err := c.store.SaveTokens(pair.Token, pair.RefreshToken); err != nil {
		return "", err
	}
	return pair.Token, nil
}
