package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	orchestration "github.com/koscakluka/ema-s2s/core"
	"github.com/koscakluka/ema-s2s/core/events"
	"github.com/koscakluka/ema-s2s/core/playback"
	"github.com/koscakluka/ema-s2s/core/tools"
	"github.com/koscakluka/ema-s2s/internal/logging"
)

const endTimeout = 5 * time.Second

var errSessionLost = errors.New("session ended unexpectedly")

// runHeadless opens one session right away and logs it until ctx is done
// or the session drops.
func runHeadless(ctx context.Context, o *orchestration.Orchestrator, out io.Writer) error {
	logger := logging.L("session")

	lost := make(chan struct{})
	var lostOnce sync.Once
	var active bool

	// The loop outlives ctx so the session can still be ended cleanly.
	o.Orchestrate(context.WithoutCancel(ctx),
		orchestration.WithPhaseCallback(func(phase orchestration.Phase) {
			logger.Info("phase changed", "phase", phase)
			switch phase {
			case orchestration.PhaseActive:
				active = true
			case orchestration.PhaseIdle:
				if active {
					lostOnce.Do(func() { close(lost) })
				}
			}
		}),
		orchestration.WithEventCallback(func(msg events.Message) {
			logger.Debug("event", "direction", msg.Direction, "name", msg.Name(), "timestamp", msg.Timestamp)
		}),
		orchestration.WithTextCallback(func(text orchestration.TextContent) {
			if text.Frozen && text.Content != "" {
				fmt.Fprintf(out, "%s: %s\n", text.Role, text.Content)
			}
		}),
		orchestration.WithInterruptionCallback(func(contentID string) {
			logger.Info("assistant interrupted", "content_id", contentID)
		}),
		orchestration.WithPlaybackCallback(func(state playback.State) {
			logger.Debug("playback", "state", state)
		}),
		orchestration.WithToolCallCallback(func(call tools.Call) {
			logger.Info("tool call", "tool", call.ToolName, "tool_use_id", call.ToolUseID)
		}),
		orchestration.WithErrorCallback(func(err error) {
			logger.Warn("session fault", logging.KeyError, err)
		}),
	)

	if err := o.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-lost:
		return errSessionLost
	}

	endCtx, cancel := context.WithTimeout(context.Background(), endTimeout)
	defer cancel()
	if err := o.End(endCtx); err != nil && !errors.Is(err, orchestration.ErrNoActiveSession) {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}
