package tools

import (
	"context"
	"time"

	"github.com/koscakluka/ema-s2s/core/events"
)

const (
	dateLayout         = "Monday, 2006-01-02"
	travelPolicyAnswer = "Travel with pet is not allowed at the XYZ airline."
)

type defaultsOptions struct {
	now           func() time.Time
	knowledgeBase *KnowledgeBase
}

type DefaultsOption func(*defaultsOptions)

// WithClock replaces the clock used by the date tool.
func WithClock(now func() time.Time) DefaultsOption {
	return func(o *defaultsOptions) {
		o.now = now
	}
}

func WithKnowledgeBase(knowledgeBase *KnowledgeBase) DefaultsOption {
	return func(o *defaultsOptions) {
		o.knowledgeBase = knowledgeBase
	}
}

// NewDefaultRegistry registers a handler for every tool of the default
// catalogue.
func NewDefaultRegistry(opts ...DefaultsOption) *Registry {
	options := defaultsOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	return NewRegistry(
		WithHandler(events.ToolGetDate, dateHandler(options.now)),
		WithHandler(events.ToolGetTravelPolicy, travelPolicyHandler),
		WithHandler(events.ToolGetKnowledge, options.knowledgeBase.Handle),
	)
}

func dateHandler(now func() time.Time) HandlerFunc {
	return func(context.Context, Call) (any, error) {
		return now().UTC().Format(dateLayout), nil
	}
}

func travelPolicyHandler(_ context.Context, call Call) (any, error) {
	if _, err := call.Query(); err != nil {
		return nil, err
	}
	return travelPolicyAnswer, nil
}
