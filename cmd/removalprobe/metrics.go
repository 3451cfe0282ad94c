package main

import "github.com/prometheus/client_golang/prometheus"

func newProbeDuration(reg prometheus.Registerer) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "removalcache",
			Name:      "probe_roundtrip_seconds",
			Help:      "Write plus read latency of one record, by strategy",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"})
	reg.MustRegister(h)
	return h
}
