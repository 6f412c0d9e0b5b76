// Package metrics records crawl counters in a private Prometheus registry
// and writes them to a node_exporter textfile at the end of a run.
package metrics

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"resty.dev/v3"
)

const namespace = "weibocrawl"

// Collector holds every metric the crawler updates
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	records      *prometheus.CounterVec
	pages        prometheus.Counter
	stops        *prometheus.CounterVec
	longText     *prometheus.CounterVec
	softFailures *prometheus.CounterVec
	waitSeconds  *prometheus.CounterVec

	lastRunSuccess   prometheus.Gauge
	lastRunTimestamp prometheus.Gauge
}

// NewCollector constructs a collector with its own registry
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for upstream API requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "path", "status"}),

		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of upstream API requests.",
		}, []string{"method", "path", "status"}),

		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records seen, by table kind and outcome (saved or skipped).",
		}, []string{"table", "outcome"}),

		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_pages_total",
			Help:      "Listing pages fetched with ok == 1.",
		}),

		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pagination_stops_total",
			Help:      "Per-account pagination stops by reason.",
		}, []string{"reason"}),

		longText: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "long_text_total",
			Help:      "Long text expansions by outcome (expanded or fallback).",
		}, []string{"outcome"}),

		softFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "soft_failures_total",
			Help:      "Recovered failures by operation.",
		}, []string{"op"}),

		waitSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wait_seconds_total",
			Help:      "Time spent in politeness waits, by wait kind.",
		}, []string{"kind"}),

		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run processed every account, 0 otherwise.",
		}),

		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.requestDuration, c.requestTotal, c.records, c.pages, c.stops,
		c.longText, c.softFailures, c.waitSeconds, c.lastRunSuccess, c.lastRunTimestamp,
	} {
		if err := c.registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ResponseMiddleware records latency and status of every upstream response
func (c *Collector) ResponseMiddleware(_ *resty.Client, res *resty.Response) error {
	path := res.Request.URL
	if u, err := url.Parse(res.Request.URL); err == nil {
		path = u.Path
	}

	status := strconv.Itoa(res.StatusCode())
	c.requestTotal.WithLabelValues(res.Request.Method, path, status).Inc()
	c.requestDuration.WithLabelValues(res.Request.Method, path, status).Observe(res.Duration().Seconds())
	return nil
}

// RecordSaved counts a newly appended record of the given table kind
func (c *Collector) RecordSaved(table string) {
	c.records.WithLabelValues(table, "saved").Inc()
}

// RecordSkipped counts a record skipped because its key was already stored
func (c *Collector) RecordSkipped(table string) {
	c.records.WithLabelValues(table, "skipped").Inc()
}

// PageFetched counts a listing page that came back with ok == 1
func (c *Collector) PageFetched() {
	c.pages.Inc()
}

// PaginationStopped counts why an account's pagination ended
func (c *Collector) PaginationStopped(reason string) {
	c.stops.WithLabelValues(reason).Inc()
}

// LongText counts a long text expansion outcome
func (c *Collector) LongText(expanded bool) {
	outcome := "fallback"
	if expanded {
		outcome = "expanded"
	}
	c.longText.WithLabelValues(outcome).Inc()
}

// SoftFailure counts a failure that was logged and skipped
func (c *Collector) SoftFailure(op string) {
	c.softFailures.WithLabelValues(op).Inc()
}

// Waited adds d to the time spent in waits of the given kind
func (c *Collector) Waited(kind string, d time.Duration) {
	c.waitSeconds.WithLabelValues(kind).Add(d.Seconds())
}

// RunFinished records the outcome of a run
func (c *Collector) RunFinished(success bool, at time.Time) {
	if success {
		c.lastRunSuccess.Set(1)
	} else {
		c.lastRunSuccess.Set(0)
	}
	c.lastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric in Prometheus text format to path
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
