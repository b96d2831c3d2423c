package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/talos-registry/talos-server/internal/config"
)

type appMetricsSet struct {
	authAttemptCounter metric.Int64Counter
	repositoryCounter  metric.Int64Counter
	apiKeyGateCounter  metric.Int64Counter
	cacheCounter       metric.Int64Counter
	rateLimitCounter   metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *appMetricsSet
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("talos-server")
	authCounter, err := meter.Int64Counter("auth.attempts")
	if err != nil {
		return nil, err
	}
	repoCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	gateCounter, err := meter.Int64Counter("apikey.gate.decisions")
	if err != nil {
		return nil, err
	}
	cacheCounter, err := meter.Int64Counter("template.cache.lookups")
	if err != nil {
		return nil, err
	}
	rateLimitCounter, err := meter.Int64Counter("ratelimit.decisions")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &appMetricsSet{
		authAttemptCounter: authCounter,
		repositoryCounter:  repoCounter,
		apiKeyGateCounter:  gateCounter,
		cacheCounter:       cacheCounter,
		rateLimitCounter:   rateLimitCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *appMetricsSet {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordAuthAttempt counts one auth operation outcome. Operation is one of
// login/register/refresh/logout/profile_get/profile_update.
func RecordAuthAttempt(ctx context.Context, operation, status string) {
	m := current()
	if m == nil {
		return
	}
	m.authAttemptCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, status string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

// RecordAPIKeyGateDecision counts gate outcomes: allowed, exempt, missing,
// invalid, error.
func RecordAPIKeyGateDecision(ctx context.Context, decision string) {
	m := current()
	if m == nil {
		return
	}
	m.apiKeyGateCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("decision", decision),
	))
}

func RecordCacheLookup(ctx context.Context, namespace, status string) {
	m := current()
	if m == nil {
		return
	}
	m.cacheCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("status", status),
	))
}
