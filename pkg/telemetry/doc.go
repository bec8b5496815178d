// Package telemetry provides the observability stack for openmigrate:
// structured logging (zerolog), Prometheus metrics, and OpenTelemetry
// tracing. Components receive child loggers tagged with their name and
// migration identifiers so a whole attempt can be followed across
// engine, state, and checkpoint boundaries.
package telemetry
