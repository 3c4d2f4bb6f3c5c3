package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-s2s/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	eventsSent, _     = meter.Int64Counter("session.events.sent", metric.WithDescription("Protocol events sent to the service"))
	eventsReceived, _ = meter.Int64Counter("session.events.received", metric.WithDescription("Protocol events received from the service"))
	eventsDropped, _  = meter.Int64Counter("session.events.dropped", metric.WithDescription("Inbound events dropped as malformed or out of order"))
)
