package port

import "time"

// Route outcomes reported to Metrics.ObserveRoute.
const (
	RouteLocal   = "local"
	RouteRemote  = "remote"
	RouteNoOwner = "no_owner"
)

// Metrics receives ring and routing instrumentation.
type Metrics interface {
	ObserveRebuild(members int, elapsed time.Duration, err error)
	ObserveRoute(outcome string)
	ObserveForward(peer string, elapsed time.Duration, err error)
	SetRegistered(registered bool)
}

type nopMetrics struct{}

// NopMetrics discards every observation.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) ObserveRebuild(int, time.Duration, error)    {}
func (nopMetrics) ObserveRoute(string)                         {}
func (nopMetrics) ObserveForward(string, time.Duration, error) {}
func (nopMetrics) SetRegistered(bool)                          {}
