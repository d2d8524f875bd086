// Package flow executes the workflow bound to a matched intent.
package flow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowgate/flowgate/core/routing"
)

// Context is the execution context handed to a workflow.
type Context struct {
	Input           string         `json:"input"`
	Intent          string         `json:"intent"`
	MatchedTriggers []string       `json:"matched_triggers,omitempty"`
	Score           int            `json:"score"`
	IsFallback      bool           `json:"is_fallback"`
	Rule            routing.Rule   `json:"rule"`
	Timestamp       time.Time      `json:"timestamp"`
	Options         map[string]any `json:"options,omitempty"`
}

// Workflow is the unit of execution bound to an intent.
type Workflow interface {
	Run(ctx context.Context, wfctx Context) (any, error)
}

// RunnerFunc lets a bare function satisfy Workflow.
type RunnerFunc func(ctx context.Context, wfctx Context) (any, error)

func (f RunnerFunc) Run(ctx context.Context, wfctx Context) (any, error) {
	return f(ctx, wfctx)
}

// Registry maps workflow code paths to implementations. Handlers register at
// startup instead of being loaded from disk per call, and may be swapped at
// runtime; every execution resolves the path fresh, so a re-registered
// implementation takes effect without a restart.
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]Workflow
}

// NewRegistry creates an empty workflow registry.
func NewRegistry() *Registry {
	return &Registry{workflows: make(map[string]Workflow)}
}

// Register binds a workflow to a code path, replacing any previous binding.
func (r *Registry) Register(codePath string, wf Workflow) {
	if codePath == "" || wf == nil {
		return
	}
	r.mu.Lock()
	r.workflows[codePath] = wf
	r.mu.Unlock()
}

// RegisterFunc binds a bare function to a code path.
func (r *Registry) RegisterFunc(codePath string, fn func(ctx context.Context, wfctx Context) (any, error)) {
	r.Register(codePath, RunnerFunc(fn))
}

// Resolve looks up the workflow bound to a code path.
func (r *Registry) Resolve(codePath string) (Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.workflows[codePath]
	return wf, ok
}

// Paths lists registered code paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.workflows))
	for path := range r.workflows {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
