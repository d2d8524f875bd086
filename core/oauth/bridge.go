package oauth

import (
	"errors"
	"net/http"

	"github.com/flowgate/flowgate/core/infra/logging"
	"github.com/flowgate/flowgate/core/infra/metrics"
	"github.com/flowgate/flowgate/core/infra/retry"
)

const component = "oauth"

// Bridge owns the authorize and callback handlers for all configured
// providers. Providers are registered at startup; an unknown provider in the
// path is a 404.
type Bridge struct {
	providers map[string]Provider
	states    *StateManager
	users     *UserStore
	metrics   metrics.OAuthMetrics
	retry     retry.Policy
}

func NewBridge(states *StateManager, users *UserStore, m metrics.OAuthMetrics) *Bridge {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Bridge{
		providers: make(map[string]Provider),
		states:    states,
		users:     users,
		metrics:   m,
		retry:     retry.DefaultPolicy,
	}
}

func (b *Bridge) Register(p Provider) {
	b.providers[p.Name()] = p
}

// Providers lists registered provider names for the status surface.
func (b *Bridge) Providers() []string {
	names := make([]string, 0, len(b.providers))
	for name := range b.providers {
		names = append(names, name)
	}
	return names
}

func (b *Bridge) retryURL(provider string) string {
	return "/oauth/" + provider
}

// HandleAuthorize issues a state token and redirects to the provider's
// consent screen. Missing client credentials fail closed before any
// redirect is built.
func (b *Bridge) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, ok := b.providers[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	b.metrics.IncAuthorize(name)

	if !p.Configured() {
		logging.Error(component, "provider not configured", "provider", name)
		renderErrorPage(w, http.StatusServiceUnavailable, name,
			"This integration is not configured on the server.", b.retryURL(name))
		return
	}

	state, err := b.states.Issue(r.Context(), name)
	if err != nil {
		logging.Error(component, "state issue failed", "provider", name, "error", err)
		renderErrorPage(w, http.StatusInternalServerError, name,
			"Could not start the authorization flow. Please try again.", b.retryURL(name))
		return
	}

	http.Redirect(w, r, p.AuthorizeURL(state), http.StatusFound)
}

// HandleCallback completes the flow: verify the single-use state, exchange
// the code, resolve the identity, and persist the record. Each outbound step
// runs under the bounded retry policy.
func (b *Bridge) HandleCallback(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("provider")
	p, ok := b.providers[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	if provErr := q.Get("error"); provErr != "" {
		b.metrics.IncCallback(name, "denied")
		logging.Warn(component, "provider returned error", "provider", name, "error", provErr)
		renderErrorPage(w, http.StatusBadRequest, name,
			"Authorization was denied or cancelled ("+provErr+").", b.retryURL(name))
		return
	}
	code := q.Get("code")
	if code == "" {
		b.metrics.IncCallback(name, "missing_code")
		renderErrorPage(w, http.StatusBadRequest, name,
			"The provider did not return an authorization code.", b.retryURL(name))
		return
	}

	// State is consumed before any token exchange; a replayed or forged
	// callback stops here with no side effects.
	if err := b.states.Consume(r.Context(), name, q.Get("state")); err != nil {
		if errors.Is(err, ErrStateInvalid) {
			b.metrics.IncCallback(name, "state_invalid")
			renderErrorPage(w, http.StatusBadRequest, name,
				"This sign-in link expired or was already used. Please start over.", b.retryURL(name))
			return
		}
		b.metrics.IncCallback(name, "state_error")
		logging.Error(component, "state verification failed", "provider", name, "error", err)
		renderErrorPage(w, http.StatusInternalServerError, name,
			"Could not verify the sign-in request. Please try again.", b.retryURL(name))
		return
	}

	var tok *Token
	err := retry.Do(r.Context(), b.retry, func() error {
		var exErr error
		tok, exErr = p.Exchange(r.Context(), code)
		return exErr
	})
	if err != nil {
		b.metrics.IncCallback(name, "exchange_failed")
		logging.Error(component, "token exchange failed", "provider", name, "error", err)
		renderErrorPage(w, http.StatusBadGateway, name,
			"Could not exchange the authorization code with the provider.", b.retryURL(name))
		return
	}

	var ident *Identity
	err = retry.Do(r.Context(), b.retry, func() error {
		var idErr error
		ident, idErr = p.FetchIdentity(r.Context(), tok)
		return idErr
	})
	if err != nil {
		b.metrics.IncCallback(name, "identity_failed")
		logging.Error(component, "identity fetch failed", "provider", name, "error", err)
		renderErrorPage(w, http.StatusBadGateway, name,
			"Connected, but could not resolve the account identity.", b.retryURL(name))
		return
	}

	rec := UserRecord{
		Provider:     name,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        tok.Scope,
		ExpiresIn:    tok.ExpiresIn,
		Identity:     *ident,
	}
	err = retry.Do(r.Context(), b.retry, func() error {
		return b.users.Save(r.Context(), rec)
	})
	if err != nil {
		b.metrics.IncCallback(name, "persist_failed")
		logging.Error(component, "user record persist failed", "provider", name, "error", err)
		renderErrorPage(w, http.StatusInternalServerError, name,
			"Connected, but could not save the account. Please try again.", b.retryURL(name))
		return
	}

	b.metrics.IncCallback(name, "success")
	logging.Info(component, "account connected", "provider", name, "account", ident.Key)
	account := ident.Key
	if ident.Name != "" {
		account = ident.Name
	}
	renderSuccessPage(w, name, account)
}
