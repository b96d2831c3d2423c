package config

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var configCounter = sync.OnceValue(func() metric.Int64Counter {
	counter, err := otel.Meter("talos-server").Int64Counter("config.validation.events")
	if err != nil {
		return nil
	}
	return counter
})

// recordConfigValidationEvent counts config loads by profile and outcome so a
// crash-looping deployment with a bad environment shows up on a dashboard.
func recordConfigValidationEvent(ctx context.Context, profile, outcome, errorClass string) {
	counter := configCounter()
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

func normalizeConfigProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	return v
}

func classifyConfigLoadError(err error) string {
	if err == nil {
		return "none"
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "validate config:"):
		return "validation"
	case strings.Contains(msg, "parse "):
		return "parse"
	default:
		return "load"
	}
}
