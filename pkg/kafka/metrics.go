package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	producerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_published_total",
			Help: "Events published to Kafka",
		},
		[]string{"topic"},
	)

	producerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_publish_errors_total",
			Help: "Kafka publish failures",
		},
		[]string{"topic"},
	)

	producerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_events_publish_duration_seconds",
			Help:    "Duration of Kafka publish calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
