// Package metrics exposes markbook activity as Prometheus metrics.
//
// A Collector is an events.Publisher: wire it next to the dashboard broadcaster
// and every backup, import, sync and delete is counted.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markbook/markbook/internal/events"
)

const namespace = "markbook"

// Collector owns a private registry with the markbook metrics.
type Collector struct {
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	lastBackup      prometheus.Gauge
	backupCourses   prometheus.Gauge
	coursesImported prometheus.Counter
	coursesMerged   prometheus.Counter
	lastSync        prometheus.Gauge

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of markbook events by type",
			},
			[]string{"type"},
		),
		lastBackup: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_backup_timestamp_seconds",
			Help:      "Unix time of the most recent backup",
		}),
		backupCourses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_backup_courses",
			Help:      "Number of courses in the most recent backup",
		}),
		coursesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "courses_imported_total",
			Help:      "Total number of courses inserted by imports",
		}),
		coursesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "courses_merged_total",
			Help:      "Total number of courses merged by imports",
		}),
		lastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time of the most recent folder sync",
		}),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	c.registry.MustRegister(
		c.eventsTotal,
		c.lastBackup,
		c.backupCourses,
		c.coursesImported,
		c.coursesMerged,
		c.lastSync,
		c.requestsTotal,
		c.requestDuration,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Publish implements events.Publisher.
func (c *Collector) Publish(e events.Event) {
	c.eventsTotal.WithLabelValues(string(e.Type)).Inc()

	switch e.Type {
	case events.BackupCreated:
		c.lastBackup.Set(float64(e.Timestamp.Unix()))
		if n, ok := intField(e.Data, "courseCount"); ok {
			c.backupCourses.Set(float64(n))
		}
	case events.ImportCompleted:
		if n, ok := intField(e.Data, "imported"); ok {
			c.coursesImported.Add(float64(n))
		}
		if n, ok := intField(e.Data, "merged"); ok {
			c.coursesMerged.Add(float64(n))
		}
	case events.SyncCompleted:
		c.lastSync.Set(float64(e.Timestamp.Unix()))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations. Paths are labelled with
// the chi route pattern so ids do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.requestsTotal.WithLabelValues(r.Method, path, fmt.Sprintf("%d", status)).Inc()
		c.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func intField(data map[string]interface{}, key string) (int, bool) {
	switch v := data[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
