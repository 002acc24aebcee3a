package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveredBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_delivery_bytes_total",
		Help: "Bytes written by the delivery server",
	}, []string{"code"})

	deliveryResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelforge_delivery_responses_total",
		Help: "Delivery responses by status code",
	}, []string{"code"})
)

// ObserveDelivery records one delivery response.
func ObserveDelivery(status int, bytes int64) {
	code := strconv.Itoa(status)
	deliveryResponses.WithLabelValues(code).Inc()
	if bytes > 0 {
		deliveredBytes.WithLabelValues(code).Add(float64(bytes))
	}
}
