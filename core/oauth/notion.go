package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// NotionProvider implements the Notion authorization-code flow. Notion's
// token endpoint takes a JSON body with HTTP basic auth, and the token
// response already names the workspace, so no separate identity call is
// needed.
type NotionProvider struct {
	settings Settings
	client   *http.Client
}

func NewNotionProvider(settings Settings) *NotionProvider {
	return &NotionProvider{settings: settings, client: newHTTPClient()}
}

func (p *NotionProvider) Name() string { return "notion" }

func (p *NotionProvider) Configured() bool {
	return p.settings.ClientID != "" && p.settings.ClientSecret != ""
}

func (p *NotionProvider) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", p.settings.ClientID)
	q.Set("redirect_uri", p.settings.RedirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	for k, v := range p.settings.ExtraParams {
		q.Set(k, v)
	}
	return p.settings.AuthorizeURL + "?" + q.Encode()
}

func (p *NotionProvider) Exchange(ctx context.Context, code string) (*Token, error) {
	payload, err := json.Marshal(map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": p.settings.RedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.settings.ClientID, p.settings.ClientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return decodeTokenResponse(resp)
}

// FetchIdentity derives the identity from the token response itself.
func (p *NotionProvider) FetchIdentity(_ context.Context, tok *Token) (*Identity, error) {
	if tok.WorkspaceID == "" {
		return nil, fmt.Errorf("token response missing workspace_id")
	}
	return &Identity{
		Key:         tok.WorkspaceID,
		Name:        tok.WorkspaceName,
		WorkspaceID: tok.WorkspaceID,
	}, nil
}
