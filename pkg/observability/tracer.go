// Package observability exposes tracing helpers. Spans are recorded through
// the global OpenTelemetry tracer provider; when the host process installs no
// provider they are no-ops.
package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanToolExecution = "vaultpilot.tool.execute"
	SpanAgentRun      = "vaultpilot.agent.run"
	SpanRetrieval     = "vaultpilot.context.retrieve"
)

// Attribute keys.
const (
	AttrToolName   = "tool.name"
	AttrToolSource = "tool.source"
	AttrRunMode    = "run.mode"
	AttrIteration  = "run.iteration"
)

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
