package handler

import "github.com/prometheus/client_golang/prometheus"

var ridesListed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rides_listed_total",
		Help: "Successful ride listings by ranking mode (ordered or distance).",
	},
	[]string{"ranking"},
)

// RegisterMetrics registers the handler's collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(ridesListed)
}
