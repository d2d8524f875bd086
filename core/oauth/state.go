package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowgate/flowgate/core/infra/kv"
)

const (
	statePrefix = "oauth_state:"
	userPrefix  = "oauth_user:"

	// stateTTL bounds how long an authorize redirect may sit before the
	// callback arrives.
	stateTTL = 5 * time.Minute
)

// ErrStateInvalid marks a callback state that is unknown, expired, or
// already consumed.
var ErrStateInvalid = errors.New("oauth state invalid or expired")

type stateRecord struct {
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// StateManager issues and verifies single-use CSRF state tokens. Consumption
// is atomic in the kv layer, so concurrent callbacks with the same state
// yield exactly one winner.
type StateManager struct {
	store kv.Store
}

func NewStateManager(store kv.Store) *StateManager {
	return &StateManager{store: store}
}

// Issue mints an unguessable state token bound to a provider.
func (m *StateManager) Issue(ctx context.Context, provider string) (string, error) {
	state := uuid.NewString()
	rec, err := json.Marshal(stateRecord{Provider: provider, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("encode state record: %w", err)
	}
	if err := m.store.Put(ctx, statePrefix+state, rec, stateTTL); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return state, nil
}

// Consume verifies and invalidates a state token in one step. A second call
// with the same token returns ErrStateInvalid.
func (m *StateManager) Consume(ctx context.Context, provider, state string) error {
	if state == "" {
		return ErrStateInvalid
	}
	raw, err := m.store.ConsumeOnce(ctx, statePrefix+state)
	if errors.Is(err, kv.ErrNotFound) {
		return ErrStateInvalid
	}
	if err != nil {
		return fmt.Errorf("consume state: %w", err)
	}
	var rec stateRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ErrStateInvalid
	}
	if rec.Provider != provider {
		return ErrStateInvalid
	}
	return nil
}

// UserRecord is the persisted credential bundle for one connected account.
type UserRecord struct {
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	Identity     Identity  `json:"identity"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserStore persists connected-account records keyed by provider and
// identity key. Records have no TTL; reconnecting overwrites.
type UserStore struct {
	store kv.Store
}

func NewUserStore(store kv.Store) *UserStore {
	return &UserStore{store: store}
}

func userKey(provider, identityKey string) string {
	return userPrefix + provider + ":" + identityKey
}

func (s *UserStore) Save(ctx context.Context, rec UserRecord) error {
	if rec.Identity.Key == "" {
		return errors.New("user record missing identity key")
	}
	rec.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := s.store.Put(ctx, userKey(rec.Provider, rec.Identity.Key), raw, 0); err != nil {
		return fmt.Errorf("store user record: %w", err)
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, provider, identityKey string) (*UserRecord, error) {
	raw, err := s.store.Get(ctx, userKey(provider, identityKey))
	if err != nil {
		return nil, err
	}
	var rec UserRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &rec, nil
}
