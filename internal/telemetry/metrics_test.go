package telemetry

import "testing"

func TestInitMetricsIdempotent(t *testing.T) {
	InitMetrics()
	// A second call must not attempt registration again; MustRegister
	// would panic on the duplicates.
	InitMetrics()

	ItemsIngested.WithLabelValues("test").Inc()
	FetchErrors.WithLabelValues("test").Inc()
}
