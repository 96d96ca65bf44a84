package tuya

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"plugmon/internal/models"
)

// Sentinel errors for the upstream taxonomy.
var (
	// ErrAuth wraps failures of the token endpoint.
	ErrAuth = errors.New("tuya: auth failed")
	// ErrRequest wraps failures of signed business calls.
	ErrRequest = errors.New("tuya: request failed")
)

// Token is refreshed this long before the upstream-declared expiry.
const refreshMargin = 60 * time.Second

// Seam for tests.
var timeNow = time.Now

// Client issues HMAC-signed requests against the vendor cloud and caches the
// bearer token. The token cache is shared by all callers; concurrent callers near
// expiry may race to refresh it, which is benign since duplicate refreshes are
// idempotent (both yield a valid token).
type Client struct {
	clientID string
	secret   string
	baseURL  string
	deviceID string
	client   *http.Client
	logger   *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// CommandResult carries the upstream ack for a device command.
type CommandResult struct {
	Success *bool  `json:"success"`
	Msg     string `json:"msg"`
}

type apiResponse struct {
	Success *bool           `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Result  json.RawMessage `json:"result"`
}

type tokenResult struct {
	AccessToken string `json:"access_token"`
	ExpireTime  int64  `json:"expire_time"`
}

// NewClient builds the signed request client.
func NewClient(clientID, secret, baseURL, deviceID string, logger *zap.Logger) *Client {
	return &Client{
		clientID: clientID,
		secret:   secret,
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: deviceID,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// AccessToken returns the cached token, fetching a fresh one when missing or
// within the refresh margin of its declared expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token, expiresAt := c.token, c.expiresAt
	c.mu.Unlock()

	if token != "" && timeNow().Before(expiresAt) {
		return token, nil
	}
	return c.refreshToken(ctx)
}

func (c *Client) refreshToken(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1.0/token?grant_type=1", nil, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if resp.Success != nil && !*resp.Success {
		return "", fmt.Errorf("%w: code=%d msg=%s", ErrAuth, resp.Code, resp.Msg)
	}

	var result tokenResult
	if err := json.Unmarshal(resp.Result, &result); err != nil || result.AccessToken == "" {
		return "", fmt.Errorf("%w: malformed token result", ErrAuth)
	}

	expiresAt := timeNow().Add(time.Duration(result.ExpireTime)*time.Second - refreshMargin)

	c.mu.Lock()
	c.token = result.AccessToken
	c.expiresAt = expiresAt
	c.mu.Unlock()

	c.logger.Debug("refreshed upstream access token", zap.Time("expires_at", expiresAt))
	return result.AccessToken, nil
}

// DeviceStatus fetches the device's current status array.
func (c *Client) DeviceStatus(ctx context.Context) ([]models.StatusEntry, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v1.0/devices/%s/status", c.deviceID)
	resp, err := c.do(ctx, http.MethodGet, path, nil, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	if resp.Success != nil && !*resp.Success {
		return nil, fmt.Errorf("%w: code=%d msg=%s", ErrRequest, resp.Code, resp.Msg)
	}

	var status []models.StatusEntry
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		return nil, fmt.Errorf("%w: malformed status result", ErrRequest)
	}
	return status, nil
}

// SendCommand issues a device command. A response that does not explicitly report
// failure is treated as an ack: the upstream's success signaling is inconsistent,
// so only success=false counts as a refusal.
func (c *Client) SendCommand(ctx context.Context, code string, value any) (*CommandResult, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"commands": []map[string]any{{"code": code, "value": value}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}

	path := fmt.Sprintf("/v1.0/devices/%s/commands", c.deviceID)
	resp, err := c.do(ctx, http.MethodPost, path, body, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	return &CommandResult{Success: resp.Success, Msg: resp.Msg}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, token string) (*apiResponse, error) {
	ts := strconv.FormatInt(timeNow().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("client_id", c.clientID)
	req.Header.Set("t", ts)
	req.Header.Set("sign_method", "HMAC-SHA256")
	req.Header.Set("sign", c.sign(token, method, path, body, ts))
	if token != "" {
		req.Header.Set("access_token", token)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}

// sign computes the vendor request signature: uppercase hex of
// HMAC-SHA256(secret, clientID + token + ts + method\n + sha256(body)\n + \n + path).
func (c *Client) sign(token, method, path string, body []byte, ts string) string {
	bodyHash := sha256.Sum256(body)
	stringToSign := strings.Join([]string{
		method,
		hex.EncodeToString(bodyHash[:]),
		"",
		path,
	}, "\n")

	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(c.clientID + token + ts + stringToSign))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}
