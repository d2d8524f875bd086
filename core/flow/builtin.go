package flow

import (
	"context"
	"fmt"
	"strings"
)

// Code paths the default routing table dispatches to.
const (
	PathChat = "workflows/interact/chat"
	PathEcho = "workflows/diagnostic/echo"
	PathTask = "workflows/create/task"
)

// RegisterBuiltins installs the workflows shipped with the gateway. External
// deployments replace or extend these through the registry.
func RegisterBuiltins(reg *Registry) {
	reg.RegisterFunc(PathChat, chatWorkflow)
	reg.RegisterFunc(PathEcho, echoWorkflow)
	reg.RegisterFunc(PathTask, taskWorkflow)
}

// chatWorkflow is the fallback conversation handler.
func chatWorkflow(ctx context.Context, wfctx Context) (any, error) {
	reply := "I could not map that to a specific action yet."
	if wfctx.IsFallback {
		reply = fmt.Sprintf("I heard %q but did not find a matching action. Try rephrasing, or ask what I can do.", strings.TrimSpace(wfctx.Input))
	}
	return map[string]any{
		"message": reply,
		"intent":  wfctx.Intent,
	}, nil
}

// echoWorkflow returns its execution context; used by diagnostics and tests.
func echoWorkflow(ctx context.Context, wfctx Context) (any, error) {
	return map[string]any{
		"input":            wfctx.Input,
		"intent":           wfctx.Intent,
		"matched_triggers": wfctx.MatchedTriggers,
		"score":            wfctx.Score,
		"is_fallback":      wfctx.IsFallback,
		"timestamp":        wfctx.Timestamp,
		"options":          wfctx.Options,
	}, nil
}

// taskWorkflow acknowledges a task creation request. The actual persistence
// integration lives behind an OAuth credential and is resolved per user.
func taskWorkflow(ctx context.Context, wfctx Context) (any, error) {
	title := strings.TrimSpace(wfctx.Input)
	if title == "" {
		return nil, fmt.Errorf("task title is empty")
	}
	return map[string]any{
		"message": "task captured",
		"title":   title,
		"intent":  wfctx.Intent,
	}, nil
}
