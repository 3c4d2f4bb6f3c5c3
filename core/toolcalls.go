package orchestration

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/tools"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type toolResult struct {
	session *session
	call    tools.Call
	result  string
	err     error
}

// executeTool runs off the dispatch loop and hands the result back to it.
// The handler is cancelled when the session it belongs to ends.
func (o *Orchestrator) executeTool(current *session, call tools.Call) {
	ctx := current.ctx

	var result toolResult
	result.session = current
	result.call = call
	if o.toolHandler == nil {
		result.err = ErrNoToolHandler
	} else {
		result.result, result.err = o.toolHandler.Handle(ctx, call)
	}

	select {
	case o.toolResults <- result:
	case <-o.closeCh:
	case <-ctx.Done():
	}
}

// handleToolResult sends a tool result as its own content stream. Results
// for a session that has since ended are dropped.
func (o *Orchestrator) handleToolResult(ctx context.Context, result toolResult) {
	if result.session != o.session || o.Phase() != PhaseActive {
		logger.DebugContext(ctx, "dropping tool result of ended session", "tool_use_id", result.call.ToolUseID)
		return
	}

	ctx, span := tracer.Start(ctx, "send tool result", trace.WithAttributes(
		attribute.String("tool_name", result.call.ToolName),
		attribute.String("tool_use_id", result.call.ToolUseID),
	))
	defer span.End()

	content := result.result
	if result.err != nil {
		o.report(ctx, fmt.Errorf("tool %q failed: %w", result.call.ToolName, result.err))
		content = tools.ErrorResult(result.err)
	}

	promptName := result.session.promptName
	contentName := o.newID()
	for _, event := range []events.Event{
		events.NewToolContentStart(promptName, contentName, result.call.ToolUseID),
		events.NewToolResultInput(promptName, contentName, content),
		events.NewContentEnd(promptName, contentName),
	} {
		if err := o.send(ctx, event); err != nil {
			o.handleTransportFault(ctx, err)
			return
		}
	}
}
