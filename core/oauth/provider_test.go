package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func googleSettings(tokenURL, userinfoURL string) Settings {
	return Settings{
		AuthorizeURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     tokenURL,
		UserinfoURL:  userinfoURL,
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURI:  "http://localhost:8080/oauth/google/callback",
		Scopes:       []string{"openid", "email"},
		ExtraParams:  map[string]string{"access_type": "offline"},
	}
}

func TestGoogleAuthorizeURL(t *testing.T) {
	p := NewGoogleProvider(googleSettings("https://t", "https://u"))
	raw := p.AuthorizeURL("st-1")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "cid" || q.Get("state") != "st-1" {
		t.Fatalf("unexpected query: %s", raw)
	}
	if q.Get("scope") != "openid email" {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
	if q.Get("access_type") != "offline" {
		t.Fatalf("extra param missing: %s", raw)
	}
}

func TestGoogleExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "c-1" {
			t.Fatalf("unexpected form: %v", r.PostForm)
		}
		if r.PostForm.Get("client_secret") != "csecret" {
			t.Fatal("client secret not sent")
		}
		_ = json.NewEncoder(w).Encode(Token{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600})
	}))
	defer srv.Close()

	p := NewGoogleProvider(googleSettings(srv.URL, "https://u"))
	tok, err := p.Exchange(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok.AccessToken != "at" || tok.RefreshToken != "rt" {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestGoogleExchangeRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewGoogleProvider(googleSettings(srv.URL, "https://u"))
	if _, err := p.Exchange(context.Background(), "c-1"); err == nil {
		t.Fatal("expected error for non-2xx token response")
	}
}

func TestGoogleFetchIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer at" {
			t.Fatalf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"email":"u@example.com","name":"U"}`))
	}))
	defer srv.Close()

	p := NewGoogleProvider(googleSettings("https://t", srv.URL))
	ident, err := p.FetchIdentity(context.Background(), &Token{AccessToken: "at"})
	if err != nil {
		t.Fatalf("FetchIdentity: %v", err)
	}
	if ident.Key != "u@example.com" || ident.Name != "U" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func notionSettings(tokenURL string) Settings {
	return Settings{
		AuthorizeURL: "https://api.notion.com/v1/oauth/authorize",
		TokenURL:     tokenURL,
		ClientID:     "nid",
		ClientSecret: "nsecret",
		RedirectURI:  "http://localhost:8080/oauth/notion/callback",
		ExtraParams:  map[string]string{"owner": "user"},
	}
}

func TestNotionExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "nid" || pass != "nsecret" {
			t.Fatal("basic auth credentials not sent")
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Fatalf("Content-Type = %q", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["grant_type"] != "authorization_code" || body["code"] != "c-2" {
			t.Fatalf("unexpected body: %v", body)
		}
		_ = json.NewEncoder(w).Encode(Token{
			AccessToken:   "nat",
			WorkspaceID:   "ws-1",
			WorkspaceName: "Acme",
			BotID:         "bot-1",
		})
	}))
	defer srv.Close()

	p := NewNotionProvider(notionSettings(srv.URL))
	tok, err := p.Exchange(context.Background(), "c-2")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok.WorkspaceID != "ws-1" {
		t.Fatalf("unexpected token: %+v", tok)
	}

	ident, err := p.FetchIdentity(context.Background(), tok)
	if err != nil {
		t.Fatalf("FetchIdentity: %v", err)
	}
	if ident.Key != "ws-1" || ident.WorkspaceID != "ws-1" || ident.Name != "Acme" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestNotionIdentityRequiresWorkspace(t *testing.T) {
	p := NewNotionProvider(notionSettings("https://t"))
	if _, err := p.FetchIdentity(context.Background(), &Token{AccessToken: "nat"}); err == nil {
		t.Fatal("expected error for token without workspace_id")
	}
}
