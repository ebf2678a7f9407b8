package fallback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FallbackTotal tracks operations redirected to the secondary endpoint
	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openml_fallback_total",
			Help: "Total number of operations served by the fallback API version",
		},
		[]string{"resource", "operation", "from", "to"},
	)
)
