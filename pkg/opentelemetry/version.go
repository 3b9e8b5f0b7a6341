package opentelemetry

// InstrumentationName is the tracer name of spans created by the hub.
const InstrumentationName = "github.com/plgd-dev/websub-hub/pkg/opentelemetry"

// Version is the current release version of the instrumentation.
func Version() string {
	return "0.0.1"
}
