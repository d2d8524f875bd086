// Package oauth bridges the gateway to OAuth-protected third-party
// integrations: authorization-code flow with single-use CSRF state and
// bounded-retry token exchange and persistence.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultHTTPTimeout bounds each outbound provider call; the retry policy
// bounds the overall step.
const defaultHTTPTimeout = 10 * time.Second

// Token is a provider token response. Provider-specific fields (Notion's
// workspace data) ride along and are zero for other providers.
type Token struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	TokenType     string `json:"token_type,omitempty"`
	Scope         string `json:"scope,omitempty"`
	ExpiresIn     int64  `json:"expires_in,omitempty"`
	WorkspaceID   string `json:"workspace_id,omitempty"`
	WorkspaceName string `json:"workspace_name,omitempty"`
	BotID         string `json:"bot_id,omitempty"`
}

// Identity is the resolved owner of a credential. Key is the persistence key
// for the user record: email for Google, workspace id for Notion.
type Identity struct {
	Key         string `json:"key"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// Provider abstracts one OAuth provider's flow.
type Provider interface {
	Name() string
	// Configured reports whether client credentials are present; the bridge
	// fails closed when they are not.
	Configured() bool
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	FetchIdentity(ctx context.Context, tok *Token) (*Identity, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// decodeTokenResponse reads a token endpoint reply, surfacing non-2xx bodies
// as errors so the retry layer can act on them.
func decodeTokenResponse(resp *http.Response) (*Token, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, body)
	}
	var tok Token
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &tok, nil
}
