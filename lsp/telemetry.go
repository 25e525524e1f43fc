package lsp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dhamidi/pyscope/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("pyscope.lsp")
	meter  = otel.Meter("pyscope.lsp")
)

var (
	requestDuration metric.Float64Histogram
	requestTimeouts metric.Int64Counter
	staleResponses  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		requestDuration, err = meter.Float64Histogram(
			"pyscope.lsp.request.duration",
			metric.WithDescription("Duration of language server requests"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		requestTimeouts, err = meter.Int64Counter(
			"pyscope.lsp.request.timeouts",
			metric.WithDescription("Language server requests that timed out"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		staleResponses, err = meter.Int64Counter(
			"pyscope.lsp.response.stale",
			metric.WithDescription("Responses discarded because a newer request was issued"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startRequestSpan(ctx context.Context, method, uri string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "lsp."+method,
		trace.WithAttributes(
			attribute.String("lsp.method", method),
			attribute.String("lsp.document_uri", uri),
		),
	)
}

func recordRequest(ctx context.Context, method string, d time.Duration, err error) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("success", err == nil),
	)
	requestDuration.Record(ctx, d.Seconds(), attrs)
	if errors.Is(err, transport.ErrRequestTimeout) {
		requestTimeouts.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	}
}

func recordStale(ctx context.Context, kind string) {
	if initMetrics() != nil {
		return
	}
	staleResponses.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
