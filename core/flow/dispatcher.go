package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowgate/flowgate/core/infra/logging"
	"github.com/flowgate/flowgate/core/infra/metrics"
	"github.com/flowgate/flowgate/core/intent"
)

// Wire-level error codes carried in API responses.
const (
	ErrCodeInvalidInput           = "INVALID_INPUT"
	ErrCodeNoIntentMatched        = "NO_INTENT_MATCHED"
	ErrCodeWorkflowNotFound       = "WORKFLOW_NOT_FOUND"
	ErrCodeWorkflowExecutionError = "WORKFLOW_EXECUTION_ERROR"
	ErrCodeConfigNotFound         = "CONFIG_NOT_FOUND"
)

// Result is the normalized outcome of one workflow execution.
type Result struct {
	Success      bool   `json:"success"`
	Result       any    `json:"result,omitempty"`
	Error        string `json:"error,omitempty"`
	Message      string `json:"message,omitempty"`
	WorkflowPath string `json:"workflow_path,omitempty"`
}

// Response is the unified payload for one handled user input.
type Response struct {
	Success         bool      `json:"success"`
	Intent          string    `json:"intent,omitempty"`
	Category        string    `json:"category,omitempty"`
	Title           string    `json:"title,omitempty"`
	Description     string    `json:"description,omitempty"`
	MatchedTriggers []string  `json:"matched_triggers,omitempty"`
	Score           int       `json:"score"`
	IsFallback      bool      `json:"is_fallback"`
	WorkflowPath    string    `json:"workflow_path,omitempty"`
	Result          any       `json:"result,omitempty"`
	Error           string    `json:"error,omitempty"`
	Message         string    `json:"message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Dispatcher resolves matched intents to registered workflows and runs them.
type Dispatcher struct {
	registry *Registry
	matcher  *intent.Matcher
	metrics  metrics.FlowMetrics
}

// NewDispatcher wires a dispatcher from its collaborators. A nil metrics
// implementation is replaced with a noop.
func NewDispatcher(registry *Registry, matcher *intent.Matcher, m metrics.FlowMetrics) *Dispatcher {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Dispatcher{registry: registry, matcher: matcher, metrics: m}
}

// Paths lists the registered workflow code paths.
func (d *Dispatcher) Paths() []string {
	return d.registry.Paths()
}

// Execute runs the workflow registered at codePath. An unknown path is a
// non-fatal condition reported as WORKFLOW_NOT_FOUND; workflow errors and
// panics are converted to WORKFLOW_EXECUTION_ERROR. No fault escapes to the
// caller.
func (d *Dispatcher) Execute(ctx context.Context, codePath string, wfctx Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("dispatcher", "workflow panic", "path", codePath, "panic", fmt.Sprintf("%v", r))
			d.metrics.IncWorkflowExecuted("panic")
			res = Result{
				Success:      false,
				Error:        ErrCodeWorkflowExecutionError,
				Message:      fmt.Sprintf("workflow panic: %v", r),
				WorkflowPath: codePath,
			}
		}
	}()

	wf, ok := d.registry.Resolve(codePath)
	if !ok {
		logging.Warn("dispatcher", "workflow not registered", "path", codePath)
		d.metrics.IncWorkflowExecuted("not_found")
		return Result{
			Success:      false,
			Error:        ErrCodeWorkflowNotFound,
			Message:      fmt.Sprintf("workflow implementation not found: %s (planned but not yet implemented)", codePath),
			WorkflowPath: codePath,
		}
	}

	out, err := wf.Run(ctx, wfctx)
	if err != nil {
		logging.Error("dispatcher", "workflow failed", "path", codePath, "error", err)
		d.metrics.IncWorkflowExecuted("error")
		return Result{
			Success:      false,
			Error:        ErrCodeWorkflowExecutionError,
			Message:      err.Error(),
			WorkflowPath: codePath,
		}
	}
	d.metrics.IncWorkflowExecuted("ok")
	return Result{Success: true, Result: out, WorkflowPath: codePath}
}

// HandleUserInput validates text, matches an intent, executes the bound
// workflow and assembles the unified response. Every failure mode comes back
// as a structured Response rather than an error.
func (d *Dispatcher) HandleUserInput(ctx context.Context, text string, options map[string]any) Response {
	now := time.Now().UTC()

	match, err := d.matcher.Match(text)
	if err != nil {
		d.metrics.IncIntentMatched("invalid")
		if errors.Is(err, intent.ErrInvalidInput) {
			return Response{
				Success:   false,
				Error:     ErrCodeInvalidInput,
				Message:   "user input is required and must be a non-empty string",
				Timestamp: now,
			}
		}
		// Anything else is a table load problem; ErrConfigNotFound included.
		return Response{
			Success:   false,
			Error:     ErrCodeConfigNotFound,
			Message:   err.Error(),
			Timestamp: now,
		}
	}
	if match == nil {
		d.metrics.IncIntentMatched("none")
		return Response{
			Success:   false,
			Error:     ErrCodeNoIntentMatched,
			Message:   "no matching workflow found for the input",
			Timestamp: now,
		}
	}

	if match.IsFallback {
		d.metrics.IncIntentMatched("fallback")
	} else {
		d.metrics.IncIntentMatched("matched")
	}

	wfctx := Context{
		Input:           text,
		Intent:          match.Intent,
		MatchedTriggers: match.MatchedTriggers,
		Score:           match.Score,
		IsFallback:      match.IsFallback,
		Rule:            match.Rule,
		Timestamp:       now,
		Options:         options,
	}

	result := d.Execute(ctx, match.Rule.Paths.Code, wfctx)

	resp := Response{
		Success:         result.Success,
		Intent:          match.Intent,
		Category:        match.Rule.Category,
		Title:           match.Rule.Title,
		Description:     match.Rule.Description,
		MatchedTriggers: match.MatchedTriggers,
		Score:           match.Score,
		IsFallback:      match.IsFallback,
		WorkflowPath:    match.Rule.Paths.Code,
		Result:          result.Result,
		Error:           result.Error,
		Message:         result.Message,
		Timestamp:       now,
	}
	return resp
}
