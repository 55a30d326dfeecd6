package prometheus

import (
	"strconv"
	"time"

	"github.com/anthanhphan/go-shard-ring/internal/node/port"
	"github.com/prometheus/client_golang/prometheus"
)

var defaultBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// metrics implements port.Metrics using Prometheus.
type metrics struct {
	members         prometheus.Gauge
	rebuildsTotal   *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	routesTotal     *prometheus.CounterVec
	forwardsTotal   *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec
	registered      prometheus.Gauge
}

// NewMetrics registers the ring collectors on reg.
func NewMetrics(reg prometheus.Registerer) port.Metrics {
	m := &metrics{
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shardring_members",
			Help: "Number of nodes in the current membership view",
		}),

		rebuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardring_view_rebuilds_total",
			Help: "Total number of membership view rebuilds",
		}, []string{"success"}),

		rebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shardring_view_rebuild_duration_seconds",
			Help:    "Time to list and fetch every member descriptor",
			Buckets: defaultBuckets,
		}),

		routesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardring_routes_total",
			Help: "Total number of routing decisions by outcome",
		}, []string{"outcome"}),

		forwardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardring_forwards_total",
			Help: "Total number of records forwarded to their owner",
		}, []string{"peer", "success"}),

		forwardDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shardring_forward_duration_seconds",
			Help:    "Forwarding latency in seconds",
			Buckets: defaultBuckets,
		}, []string{"peer"}),

		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shardring_registered",
			Help: "1 while this node's membership entry is published",
		}),
	}

	reg.MustRegister(
		m.members,
		m.rebuildsTotal,
		m.rebuildDuration,
		m.routesTotal,
		m.forwardsTotal,
		m.forwardDuration,
		m.registered,
	)

	return m
}

func (m *metrics) ObserveRebuild(members int, elapsed time.Duration, err error) {
	m.rebuildsTotal.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	m.rebuildDuration.Observe(elapsed.Seconds())
	if err == nil {
		m.members.Set(float64(members))
	}
}

func (m *metrics) ObserveRoute(outcome string) {
	m.routesTotal.WithLabelValues(outcome).Inc()
}

func (m *metrics) ObserveForward(peer string, elapsed time.Duration, err error) {
	m.forwardsTotal.WithLabelValues(peer, strconv.FormatBool(err == nil)).Inc()
	m.forwardDuration.WithLabelValues(peer).Observe(elapsed.Seconds())
}

func (m *metrics) SetRegistered(registered bool) {
	if registered {
		m.registered.Set(1)
		return
	}
	m.registered.Set(0)
}
