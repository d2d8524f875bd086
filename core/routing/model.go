// Package routing loads and caches the generated intent routing table.
package routing

// Paths binds a rule to its dispatch target and source scenario.
type Paths struct {
	Code     string `json:"code"`
	Scenario string `json:"scenario,omitempty"`
}

// Rule is one intent's matching metadata and dispatch path. Intent keys take
// the form "<category>.<name>" and are unique within a table.
type Rule struct {
	Intent      string   `json:"-"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	Enabled     bool     `json:"enabled"`
	Triggers    []string `json:"triggers"`
	Examples    []string `json:"examples"`
	Paths       Paths    `json:"paths"`
}

// Metadata describes the artifact the table was generated from.
type Metadata struct {
	Version        string   `json:"version"`
	Generated      string   `json:"generated"`
	TotalScenarios int      `json:"total_scenarios"`
	Categories     []string `json:"categories"`
}

// Table is the full in-memory routing table. It is read-only after load.
type Table struct {
	Metadata        Metadata
	DefaultPriority int
	FallbackIntent  string
	Rules           map[string]Rule
}

// Rule returns the rule for an intent key, if present.
func (t *Table) Rule(intent string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	r, ok := t.Rules[intent]
	return r, ok
}

// Fallback returns the configured fallback rule, if one exists and is present
// in the rule set.
func (t *Table) Fallback() (Rule, bool) {
	if t == nil || t.FallbackIntent == "" {
		return Rule{}, false
	}
	return t.Rule(t.FallbackIntent)
}

// IntentSummary is the read-only view served by the intents endpoints.
type IntentSummary struct {
	Intent      string   `json:"intent"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Triggers    []string `json:"triggers"`
	Priority    int      `json:"priority"`
}

// Status reports table health for the status endpoint.
type Status struct {
	Status           string   `json:"status"`
	Version          string   `json:"version,omitempty"`
	Generated        string   `json:"generated,omitempty"`
	TotalScenarios   int      `json:"total_scenarios,omitempty"`
	EnabledScenarios int      `json:"enabled_scenarios,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	FallbackIntent   string   `json:"fallback_intent,omitempty"`
	CacheLoaded      bool     `json:"cache_loaded"`
	Error            string   `json:"error,omitempty"`
}

// artifact mirrors the on-disk JSON produced by the offline generator.
type artifact struct {
	Metadata Metadata `json:"metadata"`
	Routing  struct {
		DefaultPriority int             `json:"default_priority"`
		FallbackIntent  string          `json:"fallback_intent"`
		Rules           map[string]Rule `json:"rules"`
	} `json:"routing"`
}
