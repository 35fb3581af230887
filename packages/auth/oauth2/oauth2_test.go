package oauth2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, hits *atomic.Int32, body string, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestProvider_ClientCredentialsIsCached(t *testing.T) {
	var hits atomic.Int32
	server := tokenServer(t, &hits, `{"access_token":"abc","token_type":"Bearer","expires_in":3600}`, http.StatusOK)

	p := NewProvider(&Config{
		TokenURL:     server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       []string{"read"},
		GrantType:    ClientCredentials,
	})

	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	tok, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	assert.Equal(t, int32(1), hits.Load())

	p.Invalidate(context.Background())
	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestProvider_ErrorResponse(t *testing.T) {
	var hits atomic.Int32
	server := tokenServer(t, &hits, `{"error":"invalid_client","error_description":"bad secret"}`, http.StatusUnauthorized)

	p := NewProvider(&Config{TokenURL: server.URL, ClientID: "client", ClientSecret: "secret"})

	_, err := p.Token(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client - bad secret")
}

func TestProvider_MissingAccessToken(t *testing.T) {
	var hits atomic.Int32
	server := tokenServer(t, &hits, `{"token_type":"Bearer"}`, http.StatusOK)

	p := NewProvider(&Config{TokenURL: server.URL, ClientID: "client", ClientSecret: "secret"})

	_, err := p.Token(context.Background())

	assert.ErrorContains(t, err, "no access_token")
}

func TestToken_IsExpired(t *testing.T) {
	assert.False(t, (&Token{}).IsExpired())
	assert.False(t, (&Token{ExpiresAt: time.Now().Add(time.Hour)}).IsExpired())
	assert.True(t, (&Token{ExpiresAt: time.Now().Add(10 * time.Second)}).IsExpired())
}

func TestParseSpec(t *testing.T) {
	cfg, err := ParseSpec("client_credentials https://auth/token id secret a,b")
	require.NoError(t, err)
	assert.Equal(t, ClientCredentials, cfg.GrantType)
	assert.Equal(t, "https://auth/token", cfg.TokenURL)
	assert.Equal(t, []string{"a", "b"}, cfg.Scopes)

	cfg, err = ParseSpec("password https://auth/token id secret user pass")
	require.NoError(t, err)
	assert.Equal(t, "user", cfg.Username)
	assert.Equal(t, "pass", cfg.Password)

	_, err = ParseSpec("password https://auth/token id secret user")
	assert.Error(t, err)

	_, err = ParseSpec("implicit https://auth/token id secret")
	assert.Error(t, err)

	_, err = ParseSpec("client_credentials")
	assert.Error(t, err)

	_, err = ParseSpec("client_credentials auth/token id secret")
	assert.ErrorContains(t, err, "token url")
}

func TestProvider_UsesRefreshTokenWhenExpired(t *testing.T) {
	var grants []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		grants = append(grants, r.Form.Get("grant_type"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.Form.Get("grant_type") == "refresh_token" {
			assert.Equal(t, "r1", r.Form.Get("refresh_token"))
			_, _ = w.Write([]byte(`{"access_token":"second","expires_in":3600}`))
			return
		}
		// expires inside the skew, so the next call renews it
		_, _ = w.Write([]byte(`{"access_token":"first","refresh_token":"r1","expires_in":5}`))
	}))
	t.Cleanup(server.Close)

	p := NewProvider(&Config{TokenURL: server.URL, ClientID: "client", ClientSecret: "secret"})

	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", tok)

	full, err := p.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", full.AccessToken)
	assert.Equal(t, "r1", full.RefreshToken)
	assert.Equal(t, []string{"client_credentials", "refresh_token"}, grants)
}

func TestProvider_ConcurrentCallersShareOneRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"access_token":"abc","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)

	p := NewProvider(&Config{TokenURL: server.URL, ClientID: "client", ClientSecret: "secret"})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := p.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "abc", tok)
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}
