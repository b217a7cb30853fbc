package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	channelReconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nectar",
		Subsystem: "channel",
		Name:      "reconnects_total",
		Help:      "Subscriptions re-established after a dropped connection",
	}, []string{"channel"})

	channelSubscribed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nectar",
		Subsystem: "channel",
		Name:      "subscribed",
		Help:      "1 while the channel has a live subscription",
	}, []string{"channel"})

	queryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nectar",
		Subsystem: "channel",
		Name:      "query_failures_total",
		Help:      "Point queries that discarded their connection",
	}, []string{"name"})
)

// RecordReconnect counts a re-established subscription.
func RecordReconnect(channel string) {
	channelReconnects.WithLabelValues(channel).Inc()
}

// SetSubscribed marks whether a channel currently has a live subscription.
func SetSubscribed(channel string, subscribed bool) {
	v := 0.0
	if subscribed {
		v = 1
	}
	channelSubscribed.WithLabelValues(channel).Set(v)
}

// RecordQueryFailure counts a query handle that had to be discarded.
func RecordQueryFailure(name string) {
	queryFailures.WithLabelValues(name).Inc()
}
