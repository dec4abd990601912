package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	deliveriesSubmitted metric.Int64Counter
	feedbackDecisions   metric.Int64Counter
	linkResolves        metric.Int64Counter
	rateLimitAllowed    metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "prooflink"
	}
	meter := provider.Meter(name)

	deliveriesSubmitted, err := meter.Int64Counter("prooflink_deliveries_submitted_total")
	if err != nil {
		return nil, err
	}
	feedbackDecisions, err := meter.Int64Counter("prooflink_feedback_decisions_total")
	if err != nil {
		return nil, err
	}
	linkResolves, err := meter.Int64Counter("prooflink_review_link_resolves_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("prooflink_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("prooflink_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		deliveriesSubmitted: deliveriesSubmitted,
		feedbackDecisions:   feedbackDecisions,
		linkResolves:        linkResolves,
		rateLimitAllowed:    rateLimitAllowed,
		rateLimitDenied:     rateLimitDenied,
	}, nil
}

// RecordDeliverySubmitted counts one submitted delivery version.
func (m *Metrics) RecordDeliverySubmitted(ctx context.Context, kind string) {
	if m == nil || m.deliveriesSubmitted == nil {
		return
	}
	m.deliveriesSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordFeedbackDecision counts one recorded client decision.
func (m *Metrics) RecordFeedbackDecision(ctx context.Context, decision string) {
	if m == nil || m.feedbackDecisions == nil {
		return
	}
	m.feedbackDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// RecordLinkResolve counts one resolve attempt by outcome (valid/expired/inactive/not_found).
func (m *Metrics) RecordLinkResolve(ctx context.Context, outcome string) {
	if m == nil || m.linkResolves == nil {
		return
	}
	m.linkResolves.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRateLimit counts a rate limit verdict for the public endpoints.
func (m *Metrics) RecordRateLimit(ctx context.Context, allowed bool) {
	if m == nil {
		return
	}
	if allowed {
		if m.rateLimitAllowed != nil {
			m.rateLimitAllowed.Add(ctx, 1)
		}
		return
	}
	if m.rateLimitDenied != nil {
		m.rateLimitDenied.Add(ctx, 1)
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch protocol {
	case "http", "http/protobuf":
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	case "", "grpc":
		return otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
