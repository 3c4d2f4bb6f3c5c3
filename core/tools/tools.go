// Package tools executes the tool invocations the service requests and
// renders their results in the form the service expects back.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrUnknownTool  = errors.New("unknown tool")
	ErrInvalidInput = errors.New("invalid tool input")
)

// Call is one tool invocation as requested by the service.
type Call struct {
	ToolName  string
	ToolUseID string
	// Input is the JSON encoded tool input.
	Input string
}

// Query reads the optional "query" field most tools take as input. Empty
// input is an empty query.
func (c Call) Query() (string, error) {
	if c.Input == "" {
		return "", nil
	}

	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(c.Input), &input); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return input.Query, nil
}

// HandlerFunc computes the result value of a call. The value is wrapped as
// {"result": value} before it is sent back.
type HandlerFunc func(ctx context.Context, call Call) (any, error)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

type RegistryOption func(*Registry)

func WithHandler(name string, handler HandlerFunc) RegistryOption {
	return func(r *Registry) {
		r.handlers[name] = handler
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{handlers: map[string]HandlerFunc{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(name string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Handle runs the handler registered for the call and returns the
// serialized result.
func (r *Registry) Handle(ctx context.Context, call Call) (string, error) {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(
		attribute.String("tool.name", call.ToolName),
		attribute.String("tool.use_id", call.ToolUseID),
	)

	r.mu.RLock()
	handler, ok := r.handlers[call.ToolName]
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownTool, call.ToolName)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	value, err := handler(ctx, call)
	if err != nil {
		err = fmt.Errorf("failed to execute tool %q: %w", call.ToolName, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	result, err := json.Marshal(struct {
		Result any `json:"result"`
	}{Result: value})
	if err != nil {
		err = fmt.Errorf("failed to serialize result of tool %q: %w", call.ToolName, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	logger.Debug("tool executed", "tool", call.ToolName, "tool_use_id", call.ToolUseID)
	return string(result), nil
}

// ErrorResult renders a failed call so the service is not left waiting for
// a result that never comes.
func ErrorResult(err error) string {
	result, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
	return string(result)
}
