// Package oauth2 provides OAuth2 bearer tokens for hitquery requests.
package oauth2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitquery/packages/cache"
	hqhttp "github.com/abdul-hamid-achik/hitquery/packages/http"
	"golang.org/x/sync/singleflight"
)

type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	// Password is the resource owner password grant
	Password     GrantType = "password"
	RefreshToken GrantType = "refresh_token"
)

// expirySkew is subtracted from token lifetimes to absorb clock drift
const expirySkew = 30 * time.Second

type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Username and Password are used by the password grant only
	Username  string
	Password  string
	GrantType GrantType
}

// Token is a token endpoint response
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired reports whether the token expires within the skew. Tokens
// without a lifetime never expire.
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(expirySkew).After(t.ExpiresAt)
}

// Provider fetches tokens for one client and caches them until they
// expire. Concurrent callers share a single token request.
type Provider struct {
	config  *Config
	client  *hqhttp.Client
	cache   *cache.MemoryStore
	flights singleflight.Group
}

type ProviderOption func(*Provider)

// WithClient sets the client used for token requests
func WithClient(c *hqhttp.Client) ProviderOption {
	return func(p *Provider) {
		p.client = c
	}
}

// WithCache shares a token cache between providers
func WithCache(s *cache.MemoryStore) ProviderOption {
	return func(p *Provider) {
		p.cache = s
	}
}

func NewProvider(config *Config, opts ...ProviderOption) *Provider {
	p := &Provider{
		config: config,
		client: hqhttp.NewClient(hqhttp.WithTimeout(30 * time.Second)),
		cache:  cache.NewMemoryStore(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Token returns a valid access token string. It satisfies the token
// source used by the bearer token behavior.
func (p *Provider) Token(ctx context.Context) (string, error) {
	token, err := p.GetToken(ctx)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// GetToken returns the cached token, refreshing or fetching a new one when
// it is missing or expired
func (p *Provider) GetToken(ctx context.Context) (*Token, error) {
	key := p.cacheKey()
	var stale *Token
	if entry, ok, _ := p.cache.Get(ctx, key); ok {
		if token, ok := entry.Value.(*Token); ok {
			if !token.IsExpired() {
				return token, nil
			}
			stale = token
		}
	}

	v, err, _ := p.flights.Do(key, func() (any, error) {
		// a flight that finished after our lookup may have stored one
		if entry, ok, _ := p.cache.Get(ctx, key); ok {
			if token, ok := entry.Value.(*Token); ok && !token.IsExpired() {
				return token, nil
			}
		}
		token, err := p.renew(ctx, stale)
		if err != nil {
			return nil, err
		}
		// Tokens with a refresh token stay cached past expiry so renew can use it
		entry := &cache.Entry{Value: token}
		if !token.ExpiresAt.IsZero() && token.RefreshToken == "" {
			entry.Expiration = token.ExpiresAt
		}
		_ = p.cache.Put(ctx, key, entry)
		return token, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// Invalidate drops the cached token so the next call fetches a new one
func (p *Provider) Invalidate(ctx context.Context) {
	_ = p.cache.Delete(ctx, p.cacheKey())
}

func (p *Provider) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s", p.config.TokenURL, p.config.ClientID, strings.Join(p.config.Scopes, ","))
}

// renew uses the stale token's refresh token when it has one and falls
// back to the configured grant
func (p *Provider) renew(ctx context.Context, stale *Token) (*Token, error) {
	if stale != nil && stale.RefreshToken != "" {
		if token, err := p.RefreshAccessToken(ctx, stale.RefreshToken); err == nil {
			return token, nil
		}
	}

	form := url.Values{}
	switch p.config.GrantType {
	case Password:
		form.Set("grant_type", string(Password))
		form.Set("username", p.config.Username)
		form.Set("password", p.config.Password)
	default:
		form.Set("grant_type", string(ClientCredentials))
	}
	if len(p.config.Scopes) > 0 {
		form.Set("scope", strings.Join(p.config.Scopes, " "))
	}
	return p.requestToken(ctx, form)
}

// RefreshAccessToken exchanges a refresh token for a new access token. A
// response without a refresh token keeps the one passed in.
func (p *Provider) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", string(RefreshToken))
	form.Set("refresh_token", refreshToken)

	token, err := p.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}
	return token, nil
}

func (p *Provider) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	req := hqhttp.NewRequest(http.MethodPost, p.config.TokenURL).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Accept", "application/json").
		SetBody([]byte(form.Encode()))
	if p.config.ClientID != "" && p.config.ClientSecret != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(p.config.ClientID + ":" + p.config.ClientSecret))
		req.SetHeader("Authorization", "Basic "+creds)
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(resp.Body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, resp.BodyString())
	}

	var token Token
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return &token, nil
}

// ParseSpec parses a whitespace separated grant description:
//
//	client_credentials <tokenUrl> <clientId> <clientSecret> [scope1,scope2]
//	password <tokenUrl> <clientId> <clientSecret> <username> <password> [scope1,scope2]
func ParseSpec(spec string) (*Config, error) {
	params := strings.Fields(spec)
	if len(params) < 4 {
		return nil, fmt.Errorf("oauth2 requires at least: grant_type tokenUrl clientId clientSecret")
	}

	config := &Config{
		GrantType:    GrantType(params[0]),
		TokenURL:     params[1],
		ClientID:     params[2],
		ClientSecret: params[3],
	}
	if err := hqhttp.ValidateURL(config.TokenURL); err != nil {
		return nil, fmt.Errorf("oauth2 token url: %w", err)
	}

	scopes := func(i int) {
		if len(params) > i {
			config.Scopes = strings.Split(params[i], ",")
		}
	}
	switch config.GrantType {
	case ClientCredentials:
		scopes(4)
	case Password:
		if len(params) < 6 {
			return nil, fmt.Errorf("oauth2 password grant requires: tokenUrl clientId clientSecret username password [scopes]")
		}
		config.Username = params[4]
		config.Password = params[5]
		scopes(6)
	default:
		return nil, fmt.Errorf("unsupported OAuth2 grant type: %s", config.GrantType)
	}

	return config, nil
}
