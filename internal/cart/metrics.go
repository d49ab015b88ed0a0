package cart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations by operation",
		},
		[]string{"op"},
	)

	persistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cart_persist_errors_total",
			Help: "Cart writes to storage that failed and were dropped",
		},
	)
)
