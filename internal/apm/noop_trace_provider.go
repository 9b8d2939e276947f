package apm

// noopTraceProvider satisfies TraceProvider when tracing is disabled or
// misconfigured. Spans still run through the otel no-op tracer.
type noopTraceProvider struct{}

// NewEmptyTraceProvider returns a provider with nothing to flush or stop.
func NewEmptyTraceProvider() TraceProvider {
	return noopTraceProvider{}
}

func (noopTraceProvider) Stop() error {
	return nil
}
