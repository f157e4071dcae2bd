package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/iptrack-be/internal/auth"
	"github.com/hongminglow/iptrack-be/internal/config"
	"github.com/hongminglow/iptrack-be/internal/events"
	"github.com/hongminglow/iptrack-be/internal/geo"
	"github.com/hongminglow/iptrack-be/internal/models"
	"github.com/hongminglow/iptrack-be/internal/models/dto"
	"github.com/hongminglow/iptrack-be/internal/service"
	"github.com/hongminglow/iptrack-be/internal/storage/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeIPAPI answers like ipapi.co for 8.8.8.8 and fails for anything else.
func fakeIPAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/8.8.8.8/json/" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"city":"Mountain View","region":"California","country_name":"United States","org":"GOOGLE","latitude":37.4,"longitude":-122.1}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.StorageDriver = config.StorageMemory
	cfg.JWTSecret = "e2e-secret"
	if mutate != nil {
		mutate(&cfg)
	}

	store := memory.New()
	geoAPI := fakeIPAPI(t)
	provider := geo.NewIPAPIProvider(geoAPI.URL+"/{ip}/json/", time.Second)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	deps := Deps{
		Auth:     service.NewAuthService(store, tokens, auth.NewPasswordHasher(bcrypt.MinCost), discard),
		Tracking: service.NewTrackingService(store, geo.NewClient(provider, discard), events.NewLogPublisher(discard), discard),
		Health:   store,
		Logger:   discard,
	}
	ts := httptest.NewServer(NewRouter(cfg, deps))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	resp := do(t, http.MethodPost, ts.URL+"/register", "", dto.RegisterRequest{Username: "alice", Email: "a@x.com", Password: "pw123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "User registered successfully", decode[dto.MessageResponse](t, resp).Message)

	resp = do(t, http.MethodPost, ts.URL+"/register", "", dto.RegisterRequest{Username: "alice", Email: "other@x.com", Password: "pw123"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, decode[map[string]string](t, resp)["error"])

	resp = do(t, http.MethodPost, ts.URL+"/login", "", dto.LoginRequest{Username: "alice", Password: "pw123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[dto.LoginResponse](t, resp)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "alice", login.User.Username)
	assert.Equal(t, "a@x.com", login.User.Email)

	tokens := auth.NewTokenManager("e2e-secret", config.Defaults().JWTIssuer, time.Hour)
	claims, err := tokens.Parse(login.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	resp = do(t, http.MethodPost, ts.URL+"/login", "", dto.LoginRequest{Username: "alice", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/track/8.8.8.8", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tracked := decode[models.TrackingRecord](t, resp)
	assert.Equal(t, "8.8.8.8", tracked.IP)
	assert.False(t, tracked.Timestamp.IsZero())
	assert.Equal(t, "Mountain View, United States", tracked.Location)
	assert.Equal(t, "GOOGLE", tracked.ISP)

	resp = do(t, http.MethodGet, ts.URL+"/logs", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := decode[[]models.TrackingRecord](t, resp)
	require.NotEmpty(t, logs)
	assert.Equal(t, tracked.ID, logs[0].ID)
	assert.Equal(t, "8.8.8.8", logs[0].IP)

	resp = do(t, http.MethodGet, ts.URL+"/me", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[dto.ProfileResponse](t, resp)
	assert.Equal(t, "alice", me.Username)
}

func TestTrackDegradesAndUsesObservedAddress(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	resp := do(t, http.MethodGet, ts.URL+"/track", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[models.TrackingRecord](t, resp)
	assert.Equal(t, "127.0.0.1", rec.IP)
	assert.Equal(t, "Unknown, Unknown", rec.Location)
	assert.Equal(t, models.Unknown, rec.ISP)
	assert.Equal(t, "Go-http-client/1.1", rec.Device)
	assert.False(t, rec.Proxy || rec.VPN || rec.Tor)
}

func TestLogsLimit(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	for i := 0; i < 3; i++ {
		resp := do(t, http.MethodGet, ts.URL+"/track/8.8.8.8", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := do(t, http.MethodGet, ts.URL+"/logs?limit=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.TrackingRecord](t, resp), 2)

	resp = do(t, http.MethodGet, ts.URL+"/logs?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProtectedRoutes(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, func(cfg *config.Config) { cfg.ProtectTracking = true })

	resp := do(t, http.MethodGet, ts.URL+"/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token is missing", decode[map[string]string](t, resp)["error"])

	resp = do(t, http.MethodGet, ts.URL+"/logs", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token is invalid", decode[map[string]string](t, resp)["error"])

	resp = do(t, http.MethodPost, ts.URL+"/register", "", dto.RegisterRequest{Username: "bob", Email: "b@x.com", Password: "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodPost, ts.URL+"/login", "", dto.LoginRequest{Username: "bob", Password: "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := decode[dto.LoginResponse](t, resp).Token

	resp = do(t, http.MethodGet, ts.URL+"/track/8.8.8.8", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTrustProxyHeaders(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, func(cfg *config.Config) { cfg.TrustProxyHeaders = true })

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/track", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "198.51.100.7", decode[models.TrackingRecord](t, resp).IP)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	resp := do(t, http.MethodGet, ts.URL+"/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["storage"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}
