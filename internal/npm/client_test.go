package npm_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/proxybot/internal/npm"
	"github.com/Wikid82/proxybot/internal/npm/npmtest"
)

func newTestClient(t *testing.T) (*npm.Client, *npmtest.Server) {
	t.Helper()
	srv := npmtest.New()
	t.Cleanup(srv.Close)
	tokens := npm.NewTokenProvider(srv.URL, npmtest.Identity, npmtest.Secret, 5*time.Second, false)
	return npm.NewClient(srv.URL, tokens, 5*time.Second), srv
}

func TestClient_CreateThenFind(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	created, err := client.Create(ctx, npm.NewProxyHostRequest("app.example.com", "10.0.0.5", 8080, "ops@example.com"))
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	found, err := client.FindByDomain(ctx, "app.example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "10.0.0.5", found.ForwardHost)
	assert.Equal(t, 8080, found.ForwardPort)
	assert.True(t, found.SSLForced)
	assert.True(t, found.BlockExploits)
	assert.True(t, found.AllowWebsocketUpgrade)
	assert.False(t, found.CachingEnabled)
	assert.JSONEq(t, `"new"`, string(found.CertificateID))
}

func TestClient_FindByDomain_ExactMatchOnly(t *testing.T) {
	client, srv := newTestClient(t)
	srv.Seed(npm.ProxyHost{DomainNames: []string{"www.app.example.com"}, ForwardHost: "10.0.0.1", ForwardPort: 80})

	found, err := client.FindByDomain(context.Background(), "app.example.com")
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = client.FindByDomain(context.Background(), "WWW.app.example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
}

func TestClient_Create_DuplicateIsRemoteValidation(t *testing.T) {
	client, srv := newTestClient(t)
	srv.Seed(npm.ProxyHost{DomainNames: []string{"taken.example.com"}})

	_, err := client.Create(context.Background(), npm.NewProxyHostRequest("taken.example.com", "10.0.0.5", 80, ""))
	var verr *npm.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Remote)
	assert.Contains(t, err.Error(), "already in use")
}

func TestClient_StatusTranslation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		status int
		call   func(*npm.Client) error
		check  func(*testing.T, error)
	}{
		{
			name: "create conflict", method: http.MethodPost, status: http.StatusConflict,
			call: func(c *npm.Client) error {
				_, err := c.Create(context.Background(), npm.NewProxyHostRequest("a.example.com", "10.0.0.1", 80, ""))
				return err
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, npm.ErrConflict) },
		},
		{
			name: "list unauthorized", method: http.MethodGet, status: http.StatusUnauthorized,
			call: func(c *npm.Client) error {
				_, err := c.FindByDomain(context.Background(), "a.example.com")
				return err
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, npm.ErrAuthRejected) },
		},
		{
			name: "list server error", method: http.MethodGet, status: http.StatusBadGateway,
			call: func(c *npm.Client) error {
				_, err := c.List(context.Background())
				return err
			},
			check: func(t *testing.T, err error) {
				var rerr *npm.RemoteError
				require.ErrorAs(t, err, &rerr)
				assert.Equal(t, http.StatusBadGateway, rerr.Status)
				assert.Equal(t, "forced failure", rerr.Message)
			},
		},
		{
			name: "update missing", method: http.MethodPut, status: http.StatusNotFound,
			call: func(c *npm.Client) error {
				_, err := c.Update(context.Background(), 42, npm.ProxyHostRequest{})
				return err
			},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, npm.ErrNotFound) },
		},
		{
			name: "update conflict is not a create conflict", method: http.MethodPut, status: http.StatusConflict,
			call: func(c *npm.Client) error {
				_, err := c.Update(context.Background(), 1, npm.ProxyHostRequest{})
				return err
			},
			check: func(t *testing.T, err error) {
				assert.False(t, errors.Is(err, npm.ErrConflict))
				var rerr *npm.RemoteError
				assert.ErrorAs(t, err, &rerr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, srv := newTestClient(t)
			srv.FailNext(tt.method, tt.status)
			tt.check(t, tt.call(client))
		})
	}
}

func TestClient_UpdatePreservesUntouchedFields(t *testing.T) {
	client, srv := newTestClient(t)
	seeded := srv.Seed(npm.ProxyHost{
		DomainNames:    []string{"keep.example.com"},
		ForwardScheme:  "http",
		ForwardHost:    "10.0.0.9",
		ForwardPort:    9000,
		AccessListID:   json.RawMessage(`3`),
		CertificateID:  json.RawMessage(`7`),
		Meta:           json.RawMessage(`{"nginx_online":true}`),
		Locations:      json.RawMessage(`[{"path":"/api","forward_host":"10.0.0.10"}]`),
		CachingEnabled: true,
		HTTP2Support:   true,
		HSTSEnabled:    true,
		SSLForced:      true,
	})

	cfg := "client_max_body_size 50m;"
	_, err := client.Update(context.Background(), seeded.ID, npm.MergeUpdate(seeded, npm.Patch{AdvancedConfig: &cfg}))
	require.NoError(t, err)

	got, ok := srv.Host(seeded.ID)
	require.True(t, ok)
	assert.Equal(t, cfg, got.AdvancedConfig)
	assert.JSONEq(t, `3`, string(got.AccessListID))
	assert.JSONEq(t, `7`, string(got.CertificateID))
	assert.JSONEq(t, `{"nginx_online":true}`, string(got.Meta))
	assert.JSONEq(t, `[{"path":"/api","forward_host":"10.0.0.10"}]`, string(got.Locations))
	assert.True(t, got.CachingEnabled)
	assert.True(t, got.HTTP2Support)
	assert.True(t, got.HSTSEnabled)
	assert.True(t, got.SSLForced)
}

func TestClient_Delete(t *testing.T) {
	client, srv := newTestClient(t)
	seeded := srv.Seed(npm.ProxyHost{DomainNames: []string{"gone.example.com"}})

	require.NoError(t, client.Delete(context.Background(), seeded.ID))
	_, ok := srv.Host(seeded.ID)
	assert.False(t, ok)

	assert.ErrorIs(t, client.Delete(context.Background(), seeded.ID), npm.ErrNotFound)
}

func TestClient_Delete_Unconfirmed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tokens" {
			_, _ = w.Write([]byte(`{"token":"t"}`))
			return
		}
		_, _ = w.Write([]byte(`false`))
	}))
	defer server.Close()

	client := npm.NewClient(server.URL, npm.NewTokenProvider(server.URL, "a", "b", time.Second, false), time.Second)
	var rerr *npm.RemoteError
	require.ErrorAs(t, client.Delete(context.Background(), 1), &rerr)
	assert.Contains(t, rerr.Message, "not confirmed")
}

func TestClient_AuthErrorsStopBeforeRequest(t *testing.T) {
	srv := npmtest.New()
	defer srv.Close()

	client := npm.NewClient(srv.URL, npm.NewTokenProvider(srv.URL, "", "", time.Second, false), time.Second)
	_, err := client.FindByDomain(context.Background(), "a.example.com")
	assert.ErrorIs(t, err, npm.ErrAuthConfig)
	assert.Zero(t, srv.Calls(http.MethodGet))
	assert.Zero(t, srv.Calls("TOKEN"))
}

func TestClient_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tokens" {
			_, _ = w.Write([]byte(`{"token":"t"}`))
			return
		}
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := npm.NewClient(server.URL, npm.NewTokenProvider(server.URL, "a", "b", time.Second, false), time.Second)
	_, err := client.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_NetworkError(t *testing.T) {
	client := npm.NewClient("http://127.0.0.1:0", staticToken("t"), time.Second)
	_, err := client.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
}

func TestClient_RequestCreationError(t *testing.T) {
	client := npm.NewClient("http://example.com"+string(byte(0x7f)), staticToken("t"), time.Second)
	_, err := client.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create request")
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func (staticToken) Invalidate() bool { return false }

// rotatingServer issues a new token on every exchange and accepts only the
// latest one. revoke invalidates the token currently in use.
type rotatingServer struct {
	*httptest.Server
	mu      sync.Mutex
	issued  int
	current string
}

func newRotatingServer(t *testing.T) *rotatingServer {
	t.Helper()
	s := &rotatingServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if r.URL.Path == "/api/tokens" {
			s.issued++
			s.current = fmt.Sprintf("tok-%d", s.issued)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token":   s.current,
				"expires": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
			})
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.current {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid token"}}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *rotatingServer) revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = "revoked"
}

func (s *rotatingServer) exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func TestClient_RejectedCachedTokenIsRefreshed(t *testing.T) {
	srv := newRotatingServer(t)
	client := npm.NewClient(srv.URL, npm.NewTokenProvider(srv.URL, "a", "b", time.Second, true), time.Second)
	ctx := context.Background()

	_, err := client.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.exchanges())

	srv.revoke()
	for i := 0; i < 3; i++ {
		_, err = client.List(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, srv.exchanges())
}

func TestClient_RejectedFreshTokenIsNotRetried(t *testing.T) {
	client, srv := newTestClient(t)
	srv.FailNext(http.MethodGet, http.StatusUnauthorized)

	_, err := client.List(context.Background())
	assert.ErrorIs(t, err, npm.ErrAuthRejected)
	assert.Equal(t, 1, srv.Calls(http.MethodGet))
	assert.Equal(t, 1, srv.Calls("TOKEN"))
}

func TestTokenProvider_Invalidate(t *testing.T) {
	srv := npmtest.New()
	defer srv.Close()

	uncached := npm.NewTokenProvider(srv.URL, npmtest.Identity, npmtest.Secret, time.Second, false)
	assert.False(t, uncached.Invalidate())

	cached := npm.NewTokenProvider(srv.URL, npmtest.Identity, npmtest.Secret, time.Second, true)
	assert.False(t, cached.Invalidate())
	_, err := cached.Token(context.Background())
	require.NoError(t, err)
	assert.True(t, cached.Invalidate())
	assert.False(t, cached.Invalidate())

	_, err = cached.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls("TOKEN"))
}
