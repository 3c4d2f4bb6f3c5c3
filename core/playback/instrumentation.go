package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-s2s/core/playback"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	chunksPlayed, _    = meter.Int64Counter("playback.chunks.played", metric.WithDescription("Chunks the sink finished playing"))
	chunksCancelled, _ = meter.Int64Counter("playback.chunks.cancelled", metric.WithDescription("Chunks discarded by a cancel"))
)
