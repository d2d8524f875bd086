package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/flowgate/flowgate/core/infra/schema"
)

// ErrConfigNotFound signals that the routing table artifact is absent. The
// artifact is produced by an offline generator; a missing file means the
// generator has not run, not a transient fault.
var ErrConfigNotFound = errors.New("routing: rules artifact not found")

// Store owns the routing table cache. It is injected into the matcher and
// dispatcher rather than kept as a package-level singleton, so reload
// behavior stays explicit and testable.
type Store struct {
	path string

	mu     sync.Mutex
	cached *Table
}

// NewStore creates a store reading the artifact at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the routing table, reading and validating the artifact on
// first call and serving the cached table afterwards. Concurrent first loads
// are serialized; parsing the same artifact is idempotent.
func (s *Store) Load() (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (run the routing rules generator)", ErrConfigNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read routing rules %s: %w", s.path, err)
	}

	table, err := ParseTable(data)
	if err != nil {
		return nil, err
	}
	s.cached = table
	return table, nil
}

// ParseTable validates and decodes a routing table artifact.
func ParseTable(data []byte) (*Table, error) {
	if err := schema.Validate("routing-rules", routingRulesSchema, json.RawMessage(data)); err != nil {
		return nil, err
	}
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parse routing rules: %w", err)
	}
	rules := make(map[string]Rule, len(art.Routing.Rules))
	for intent, rule := range art.Routing.Rules {
		rule.Intent = intent
		if rule.Priority == 0 {
			rule.Priority = art.Routing.DefaultPriority
		}
		rules[intent] = rule
	}
	return &Table{
		Metadata:        art.Metadata,
		DefaultPriority: art.Routing.DefaultPriority,
		FallbackIntent:  art.Routing.FallbackIntent,
		Rules:           rules,
	}, nil
}

// ClearCache drops the cached table; the next Load re-reads the artifact.
func (s *Store) ClearCache() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// CacheLoaded reports whether a table is currently cached.
func (s *Store) CacheLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached != nil
}

// AvailableIntents lists enabled intents sorted by priority descending.
func (s *Store) AvailableIntents() ([]IntentSummary, error) {
	table, err := s.Load()
	if err != nil {
		return nil, err
	}
	out := make([]IntentSummary, 0, len(table.Rules))
	for intent, rule := range table.Rules {
		if !rule.Enabled {
			continue
		}
		out = append(out, IntentSummary{
			Intent:      intent,
			Category:    rule.Category,
			Title:       rule.Title,
			Description: rule.Description,
			Triggers:    rule.Triggers,
			Priority:    rule.Priority,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Intent < out[j].Intent
	})
	return out, nil
}

// IntentsByCategory filters AvailableIntents by category.
func (s *Store) IntentsByCategory(category string) ([]IntentSummary, error) {
	all, err := s.AvailableIntents()
	if err != nil {
		return nil, err
	}
	out := make([]IntentSummary, 0, len(all))
	for _, intent := range all {
		if intent.Category == category {
			out = append(out, intent)
		}
	}
	return out, nil
}

// Status reports current table health without forcing a reload on error.
func (s *Store) Status() Status {
	loaded := s.CacheLoaded()
	table, err := s.Load()
	if err != nil {
		return Status{Status: "error", Error: err.Error(), CacheLoaded: loaded}
	}
	enabled := 0
	for _, rule := range table.Rules {
		if rule.Enabled {
			enabled++
		}
	}
	return Status{
		Status:           "ready",
		Version:          table.Metadata.Version,
		Generated:        table.Metadata.Generated,
		TotalScenarios:   table.Metadata.TotalScenarios,
		EnabledScenarios: enabled,
		Categories:       table.Metadata.Categories,
		FallbackIntent:   table.FallbackIntent,
		CacheLoaded:      true,
	}
}
