package npm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maypok86/otter"

	"github.com/Wikid82/proxybot/internal/logger"
	"github.com/Wikid82/proxybot/internal/version"
)

// tokenSkew is subtracted from a token's lifetime before caching it.
const tokenSkew = 60 * time.Second

// TokenSource yields a bearer token for privileged control-plane calls.
// Invalidate drops a reused token after the control-plane rejected it and
// reports whether there was one to drop.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate() bool
}

// TokenProvider exchanges the configured identity and secret for a bearer
// token. Without a cache every call performs a fresh exchange.
type TokenProvider struct {
	baseURL    string
	identity   string
	secret     string
	httpClient *http.Client
	cache      *otter.CacheWithVariableTTL[string, string]
	now        func() time.Time
}

// NewTokenProvider creates a provider. When cache is true tokens are reused
// until shortly before they expire.
func NewTokenProvider(baseURL, identity, secret string, timeout time.Duration, cache bool) *TokenProvider {
	p := &TokenProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		identity:   identity,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	if cache {
		c, err := otter.MustBuilder[string, string](16).WithVariableTTL().Build()
		if err != nil {
			logger.Log().WithError(err).Warn("token cache disabled")
		} else {
			p.cache = &c
		}
	}
	return p
}

func (p *TokenProvider) cacheKey() string {
	return p.baseURL + "|" + p.identity
}

// Invalidate forgets the cached token, if any.
func (p *TokenProvider) Invalidate() bool {
	if p.cache == nil || !p.cache.Has(p.cacheKey()) {
		return false
	}
	p.cache.Delete(p.cacheKey())
	return true
}

// Token returns a bearer token, without the "Bearer " prefix.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.baseURL == "" || p.identity == "" || p.secret == "" {
		return "", ErrAuthConfig
	}

	if p.cache != nil {
		if tok, ok := p.cache.Get(p.cacheKey()); ok {
			return tok, nil
		}
	}

	body, err := jsonMarshalClient(tokenRequest{Identity: p.identity, Secret: p.secret})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/tokens", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrAuthRejected
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrEndpointNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", &RemoteError{Status: resp.StatusCode, Message: remoteMessage(resp.StatusCode, raw)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if tr.Token == "" {
		return "", ErrNoToken
	}

	if p.cache != nil {
		if exp, ok := tokenExpiry(tr); ok {
			if ttl := exp.Sub(p.now()) - tokenSkew; ttl > 0 {
				p.cache.Set(p.cacheKey(), tr.Token, ttl)
			}
		}
	}

	return tr.Token, nil
}

// tokenExpiry prefers the explicit expires field and falls back to the
// exp claim of the JWT. The signature is not checked; the value only bounds
// how long the token is reused.
func tokenExpiry(tr tokenResponse) (time.Time, bool) {
	if tr.Expires != "" {
		if t, err := time.Parse(time.RFC3339, tr.Expires); err == nil {
			return t, true
		}
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tr.Token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
