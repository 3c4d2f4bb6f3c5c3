package capture

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-s2s/core/capture"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	blocksDropped, _ = meter.Int64Counter("capture.blocks.dropped", metric.WithDescription("Blocks dropped because the consumer fell behind"))
)
