// Package api is the authenticated REST client for the arbitrage backend.
// All responses arrive in a {success, message, data} envelope. A 401 is
// recovered at most once per call by a transparent token refresh; every
// other non-2xx surfaces as *domain.APIError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"arbdash/internal/domain"
	"arbdash/internal/session"
)

// Client is the REST client. It holds no token itself; the bearer token is
// re-read from the session store on every send so a concurrent refresh is
// picked up by the next request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *session.Store
	logger     *slog.Logger
}

// NewClient creates a Client against the given API root, e.g.
// "http://localhost:5000".
func NewClient(baseURL string, store *session.Store, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		store:  store,
		logger: logger.With(slog.String("component", "api")),
	}
}

// envelope is the JSON wrapper around every backend response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do sends one request and decodes the envelope's data field into out (which
// may be nil). On a 401 with a refresh token available it refreshes once and
// re-issues the original request with the new access token; a second 401 is
// surfaced as-is, never retried again.
func (c *Client) do(ctx context.Context, method, path string, reqBody, out any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("api: marshal request body: %w", err)
		}
	}

	requestID := uuid.NewString()

	status, respBody, err := c.send(ctx, method, path, payload, requestID)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		cred, ok := c.store.Get()
		if !ok || cred.RefreshToken == "" {
			return statusError(status, respBody)
		}

		if err := c.refresh(ctx, cred.RefreshToken); err != nil {
			return err
		}

		c.logger.Debug("retrying request after token refresh",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
		)

		status, respBody, err = c.send(ctx, method, path, payload, requestID)
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		return statusError(status, respBody)
	}

	return decodeEnvelope(respBody, status, out)
}

// send performs a single HTTP round trip. The bearer token is read from the
// store at call time; the header is omitted when logged out.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, requestID string) (int, []byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("api: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred, ok := c.store.Get(); ok && cred.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("api: read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// refresh exchanges the refresh token for a new access token and stores it.
// On any failure the store is cleared and domain.ErrSessionInvalid is
// returned; refresh failures never loop.
func (c *Client) refresh(ctx context.Context, refreshToken string) error {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return fmt.Errorf("api: marshal refresh request: %w", err)
	}

	status, respBody, err := c.send(ctx, http.MethodPost, "/api/auth/refresh", payload, uuid.NewString())
	if err != nil {
		return c.sessionInvalid(err)
	}
	if status < 200 || status >= 300 {
		return c.sessionInvalid(statusError(status, respBody))
	}

	var data refreshResponse
	if err := decodeEnvelope(respBody, status, &data); err != nil {
		return c.sessionInvalid(err)
	}
	if data.AccessToken == "" {
		return c.sessionInvalid(fmt.Errorf("api: refresh returned empty access token"))
	}

	if err := c.store.SetAccessToken(data.AccessToken); err != nil {
		return fmt.Errorf("api: store refreshed token: %w", err)
	}

	c.logger.Info("access token refreshed")
	return nil
}

// sessionInvalid clears the credential store and wraps the underlying cause
// in domain.ErrSessionInvalid so callers can distinguish a dead session from
// an ordinary request failure.
func (c *Client) sessionInvalid(cause error) error {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear credentials", slog.String("error", err.Error()))
	}
	c.logger.Warn("token refresh failed, session invalidated", slog.String("cause", cause.Error()))
	return fmt.Errorf("%w: %v", domain.ErrSessionInvalid, cause)
}

// statusError maps a non-2xx response to *domain.APIError, pulling the
// message out of the envelope when the body parses.
func statusError(status int, body []byte) error {
	var env envelope
	_ = json.Unmarshal(body, &env)
	return &domain.APIError{Status: status, Message: env.Message}
}

// decodeEnvelope unwraps the response envelope and unmarshals data into out.
func decodeEnvelope(body []byte, status int, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("api: decode response envelope: %w", err)
	}
	if !env.Success {
		return &domain.APIError{Status: status, Message: env.Message}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("api: response envelope has no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("api: decode response data: %w", err)
	}
	return nil
}
