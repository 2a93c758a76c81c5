// Package observability provides logging, metrics, and health checks for
// the Astral Post services.
//
// The Logger is a thin structured-JSON wrapper over log/slog. Loggers are
// injected through constructors and carried on the request context; there
// are no package-level singletons.
//
// Metrics cover the billing webhook path (received, duplicates, signature
// failures, dispatch attempts, dead letters), the content generation
// pipeline (per-provider outcomes, tokens, cost, breaker state, static
// fallbacks), caches, the email queue, and the database/Redis pools. All
// metrics are registered on an injected prometheus.Registry and exposed on
// the health port's /metrics endpoint. Optional OTLP export mirrors the
// core instruments through the OpenTelemetry SDK.
//
// HealthChecker implements liveness and readiness probes over the Postgres
// and Redis connections.
package observability
