// Package telemetry wraps OpenTelemetry SDK setup for traces.
package telemetry
