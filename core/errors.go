package orchestration

import "errors"

var (
	ErrSessionNotIdle       = errors.New("session start requested while a session is not idle")
	ErrNoActiveSession      = errors.New("session end requested without an active session")
	ErrNotOrchestrating     = errors.New("orchestrator is not running, call Orchestrate first")
	ErrOrchestratorClosed   = errors.New("orchestrator closed")
	ErrNoTransport          = errors.New("no transport configured")
	ErrNoToolHandler        = errors.New("no tool handler configured")
	ErrInvalidToolCatalogue = errors.New("invalid tool catalogue, using the last valid one")
)
