package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Settings carries the endpoint and credential material a provider needs,
// resolved from config before construction.
type Settings struct {
	AuthorizeURL string
	TokenURL     string
	UserinfoURL  string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	ExtraParams  map[string]string
}

// GoogleProvider implements the Google authorization-code flow with a
// userinfo lookup to resolve the account email.
type GoogleProvider struct {
	settings Settings
	client   *http.Client
}

func NewGoogleProvider(settings Settings) *GoogleProvider {
	return &GoogleProvider{settings: settings, client: newHTTPClient()}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Configured() bool {
	return p.settings.ClientID != "" && p.settings.ClientSecret != ""
}

func (p *GoogleProvider) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", p.settings.ClientID)
	q.Set("redirect_uri", p.settings.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(p.settings.Scopes, " "))
	q.Set("state", state)
	for k, v := range p.settings.ExtraParams {
		q.Set(k, v)
	}
	return p.settings.AuthorizeURL + "?" + q.Encode()
}

// Exchange swaps an authorization code for tokens via the form-encoded
// token endpoint.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", p.settings.ClientID)
	form.Set("client_secret", p.settings.ClientSecret)
	form.Set("redirect_uri", p.settings.RedirectURI)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return decodeTokenResponse(resp)
}

// FetchIdentity resolves the token owner through the userinfo endpoint.
func (p *GoogleProvider) FetchIdentity(ctx context.Context, tok *Token) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.settings.UserinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read userinfo response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, body)
	}
	var info struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo response missing email")
	}
	return &Identity{Key: info.Email, Email: info.Email, Name: info.Name}, nil
}
