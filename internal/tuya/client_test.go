package tuya

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

var signPattern = regexp.MustCompile(`^[0-9A-F]{64}$`)

type fakeUpstream struct {
	mu            sync.Mutex
	tokenRequests int
	lastToken     string
	lastSign      string
	tokenSuccess  bool
	statusSuccess bool
	commandBody   string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{tokenSuccess: true, statusSuccess: true}
}

func (f *fakeUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastSign = r.Header.Get("sign")
		f.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/v1.0/token"):
			f.mu.Lock()
			f.tokenRequests++
			n := f.tokenRequests
			success := f.tokenSuccess
			f.mu.Unlock()
			if !success {
				fmt.Fprint(w, `{"success":false,"code":1010,"msg":"invalid signature"}`)
				return
			}
			fmt.Fprintf(w, `{"success":true,"result":{"access_token":"tok-%d","expire_time":7200}}`, n)
		case strings.HasSuffix(r.URL.Path, "/status"):
			f.mu.Lock()
			f.lastToken = r.Header.Get("access_token")
			success := f.statusSuccess
			f.mu.Unlock()
			if !success {
				fmt.Fprint(w, `{"success":false,"code":1100,"msg":"device offline"}`)
				return
			}
			fmt.Fprint(w, `{"success":true,"result":[{"code":"cur_power","value":4176},{"code":"switch_1","value":true}]}`)
		case strings.HasSuffix(r.URL.Path, "/commands"):
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.commandBody = string(body)
			f.mu.Unlock()
			// Deliberately no success flag: the upstream's signaling is inconsistent.
			fmt.Fprint(w, `{"result":{"t":123}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestClient(t *testing.T, upstream *fakeUpstream) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(upstream.handler())
	t.Cleanup(server.Close)
	return NewClient("client-1", "secret-1", server.URL, "dev-1", zap.NewNop()), server
}

func TestDeviceStatusSignsAndParses(t *testing.T) {
	upstream := newFakeUpstream()
	client, _ := newTestClient(t, upstream)

	status, err := client.DeviceStatus(context.Background())
	if err != nil {
		t.Fatalf("device status: %v", err)
	}
	if len(status) != 2 || status[0].Code != "cur_power" {
		t.Fatalf("unexpected status %+v", status)
	}

	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	if !signPattern.MatchString(upstream.lastSign) {
		t.Fatalf("expected 64-char uppercase hex signature, got %q", upstream.lastSign)
	}
	if upstream.lastToken != "tok-1" {
		t.Fatalf("expected business call to carry tok-1, got %q", upstream.lastToken)
	}
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	upstream := newFakeUpstream()
	client, _ := newTestClient(t, upstream)

	for i := 0; i < 3; i++ {
		if _, err := client.DeviceStatus(context.Background()); err != nil {
			t.Fatalf("device status %d: %v", i, err)
		}
	}

	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	if upstream.tokenRequests != 1 {
		t.Fatalf("expected a single token fetch, got %d", upstream.tokenRequests)
	}
}

func TestTokenRefreshedNearExpiry(t *testing.T) {
	upstream := newFakeUpstream()
	client, _ := newTestClient(t, upstream)

	if _, err := client.DeviceStatus(context.Background()); err != nil {
		t.Fatalf("device status: %v", err)
	}

	// Advance the clock into the 60s refresh margin before the declared expiry.
	original := timeNow
	timeNow = func() time.Time { return original().Add(7200*time.Second - 30*time.Second) }
	t.Cleanup(func() { timeNow = original })

	if _, err := client.DeviceStatus(context.Background()); err != nil {
		t.Fatalf("device status after expiry: %v", err)
	}
	if _, err := client.DeviceStatus(context.Background()); err != nil {
		t.Fatalf("device status with fresh token: %v", err)
	}

	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	if upstream.tokenRequests != 2 {
		t.Fatalf("expected exactly one refresh, got %d token fetches", upstream.tokenRequests)
	}
	if upstream.lastToken != "tok-2" {
		t.Fatalf("expected refreshed token tok-2, got %q", upstream.lastToken)
	}
}

func TestTokenEndpointFailureIsAuthError(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.tokenSuccess = false
	client, _ := newTestClient(t, upstream)

	_, err := client.DeviceStatus(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestStatusFailureIsRequestError(t *testing.T) {
	upstream := newFakeUpstream()
	upstream.statusSuccess = false
	client, _ := newTestClient(t, upstream)

	_, err := client.DeviceStatus(context.Background())
	if !errors.Is(err, ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
}

func TestSendCommandWithoutSuccessFlag(t *testing.T) {
	upstream := newFakeUpstream()
	client, _ := newTestClient(t, upstream)

	result, err := client.SendCommand(context.Background(), "switch_1", true)
	if err != nil {
		t.Fatalf("send command: %v", err)
	}
	if result.Success != nil {
		t.Fatalf("expected absent success flag to stay nil, got %v", *result.Success)
	}

	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	var payload struct {
		Commands []struct {
			Code  string `json:"code"`
			Value any    `json:"value"`
		} `json:"commands"`
	}
	if err := json.Unmarshal([]byte(upstream.commandBody), &payload); err != nil {
		t.Fatalf("decode command body %q: %v", upstream.commandBody, err)
	}
	if len(payload.Commands) != 1 || payload.Commands[0].Code != "switch_1" || payload.Commands[0].Value != true {
		t.Fatalf("unexpected command payload %q", upstream.commandBody)
	}
}
