package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatsounds/soundboard-server/internal/model"
)

type Recorder interface {
	RecordTrigger(outcome model.TriggerOutcome)
	RecordAccountingFailure(step string)
	RecordSessionsSwept(count int)
	RecordBroadcastDrop()
	RecordConnectionState(state model.ConnectionState)
	RecordHTTPRequest(method string, status int, duration time.Duration)
}

type Collector struct {
	triggers          *prometheus.CounterVec
	accountingFailure *prometheus.CounterVec
	sessionsSwept     prometheus.Counter
	broadcastDrops    prometheus.Counter
	connectionState   *prometheus.GaugeVec
	httpRequests      *prometheus.CounterVec
	httpLatency       prometheus.Histogram
}

// NewCollector registers the soundboard metrics on reg. subscribers, when
// set, is sampled on every scrape for the live listener gauge.
func NewCollector(reg prometheus.Registerer, subscribers func() int) *Collector {
	c := &Collector{
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soundboard_chat_triggers_total",
			Help: "Chat command lines handled, by outcome",
		}, []string{"outcome"}),
		accountingFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soundboard_accounting_failures_total",
			Help: "Accounting writes that failed after the play was recorded",
		}, []string{"step"}),
		sessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soundboard_sessions_swept_total",
			Help: "Expired dashboard sessions removed by the sweep",
		}),
		broadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "soundboard_broadcast_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		}),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soundboard_chat_connection_state",
			Help: "1 for the current chat connection state, 0 otherwise",
		}, []string{"state"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soundboard_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "soundboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.triggers,
		c.accountingFailure,
		c.sessionsSwept,
		c.broadcastDrops,
		c.connectionState,
		c.httpRequests,
		c.httpLatency,
	)

	if subscribers != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "soundboard_broadcast_subscribers",
			Help: "Currently connected playback listeners",
		}, func() float64 { return float64(subscribers()) }))
	}

	c.RecordConnectionState(model.StateDisconnected)
	return c
}

func (c *Collector) RecordTrigger(outcome model.TriggerOutcome) {
	c.triggers.WithLabelValues(string(outcome)).Inc()
}

func (c *Collector) RecordAccountingFailure(step string) {
	c.accountingFailure.WithLabelValues(step).Inc()
}

func (c *Collector) RecordSessionsSwept(count int) {
	c.sessionsSwept.Add(float64(count))
}

func (c *Collector) RecordBroadcastDrop() {
	c.broadcastDrops.Inc()
}

func (c *Collector) RecordConnectionState(state model.ConnectionState) {
	for _, s := range []model.ConnectionState{model.StateDisconnected, model.StateConnecting, model.StateConnected} {
		v := 0.0
		if s == state {
			v = 1
		}
		c.connectionState.WithLabelValues(string(s)).Set(v)
	}
}

func (c *Collector) RecordHTTPRequest(method string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Useful in tests.
type Nop struct{}

func (Nop) RecordTrigger(model.TriggerOutcome)           {}
func (Nop) RecordAccountingFailure(string)               {}
func (Nop) RecordSessionsSwept(int)                      {}
func (Nop) RecordBroadcastDrop()                         {}
func (Nop) RecordConnectionState(model.ConnectionState)  {}
func (Nop) RecordHTTPRequest(string, int, time.Duration) {}
