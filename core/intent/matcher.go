// Package intent scores free-text input against the routing table and
// selects the winning rule.
package intent

import (
	"errors"
	"sort"
	"strings"

	"github.com/flowgate/flowgate/core/routing"
)

// ErrInvalidInput rejects empty or whitespace-only text before any scoring.
var ErrInvalidInput = errors.New("intent: input must be a non-empty string")

const (
	triggerWeight  = 10
	exampleWeight  = 2
	categoryBonus  = 5
	minWordRuneLen = 2 // example words this short are ignored
)

// Match is the outcome of intent resolution for one input.
type Match struct {
	Intent          string
	Rule            routing.Rule
	Score           int
	MatchedTriggers []string
	Priority        int
	IsFallback      bool
}

// Score computes the matching score of text against a single rule. It is a
// pure function of its inputs: 10 per trigger found as a case-insensitive
// substring, 2 per shared input/example word longer than two runes, and a
// 5-point bonus when the category name appears in the text.
//
// Trigger matching is deliberately substring-based rather than tokenized, so
// short triggers can over-match inside unrelated words. That trade-off is
// inherited from the rule format and documented rather than silently fixed.
func Score(text string, rule routing.Rule) (int, []string) {
	lowered := strings.ToLower(text)
	score := 0

	var matched []string
	for _, trigger := range rule.Triggers {
		if trigger == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(trigger)) {
			score += triggerWeight
			matched = append(matched, trigger)
		}
	}

	inputWords := strings.Fields(lowered)
	for _, example := range rule.Examples {
		exampleWords := map[string]struct{}{}
		for _, w := range strings.Fields(strings.ToLower(example)) {
			exampleWords[w] = struct{}{}
		}
		common := 0
		for _, w := range inputWords {
			if len([]rune(w)) <= minWordRuneLen {
				continue
			}
			if _, ok := exampleWords[w]; ok {
				common++
			}
		}
		score += common * exampleWeight
	}

	if rule.Category != "" && strings.Contains(lowered, strings.ToLower(rule.Category)) {
		score += categoryBonus
	}

	return score, matched
}

// Matcher resolves user input to a single rule using an injected table store.
type Matcher struct {
	store *routing.Store
}

// NewMatcher creates a matcher over the given routing store.
func NewMatcher(store *routing.Store) *Matcher {
	return &Matcher{store: store}
}

// Match selects the best-scoring enabled rule for text. Candidates sort by
// score descending, then priority descending; remaining ties break
// lexicographically on intent key so selection never depends on map
// iteration order. With no candidate the configured fallback is returned
// with score 0, or nil when no fallback exists.
func (m *Matcher) Match(text string) (*Match, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	table, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	var candidates []*Match
	for intentKey, rule := range table.Rules {
		if !rule.Enabled {
			continue
		}
		score, triggers := Score(text, rule)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, &Match{
			Intent:          intentKey,
			Rule:            rule,
			Score:           score,
			MatchedTriggers: triggers,
			Priority:        rule.Priority,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Intent < candidates[j].Intent
	})

	if len(candidates) > 0 {
		return candidates[0], nil
	}

	if fallback, ok := table.Fallback(); ok && fallback.Enabled {
		return &Match{
			Intent:     fallback.Intent,
			Rule:       fallback,
			Score:      0,
			Priority:   fallback.Priority,
			IsFallback: true,
		}, nil
	}
	return nil, nil
}
