package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_cache_requests_total",
			Help: "Catalog cache reads by collection and result",
		},
		[]string{"collection", "result"},
	)

	cacheStaleDiscards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_cache_stale_discards_total",
			Help: "Catalog fetches discarded because the cache was invalidated meanwhile",
		},
		[]string{"collection"},
	)
)
