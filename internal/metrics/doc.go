// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
//
// The Collector exposes Prometheus instruments for the concerns the
// service cares about: HTTP traffic, task lifecycle, routing decisions,
// delegations to sub-agents, and oracle calls. A nil *Collector is a
// valid no-op recorder, so callers never need to guard their
// instrumentation sites.
package metrics
