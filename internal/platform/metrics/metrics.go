// Package metrics holds the prometheus collectors for the ward server. All
// recording methods are safe on a nil *Collector so services can run without
// metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Assignment outcomes.
const (
	OutcomeAssigned   = "assigned"
	OutcomeNoCapacity = "no_capacity"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

type Collector struct {
	reg       *prometheus.Registry
	namespace string

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	PatientsAdmitted      prometheus.Counter
	AssignmentsTotal      *prometheus.CounterVec
	DischargesTotal       prometheus.Counter
	AppointmentsCreated   prometheus.Counter
	AppointmentTransition *prometheus.CounterVec
	ReleaseViolations     *prometheus.CounterVec
	PatientDataAccess     *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		reg:       reg,
		namespace: namespace,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		PatientsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admissions",
			Name:      "patients_admitted_total",
			Help:      "Total number of patient records created.",
		}),

		AssignmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admissions",
			Name:      "assignments_total",
			Help:      "Doctor and chamber assignment attempts by outcome.",
		}, []string{"outcome"}),

		DischargesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admissions",
			Name:      "discharges_total",
			Help:      "Total patients discharged.",
		}),

		AppointmentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "created_total",
			Help:      "Appointments created by staff.",
		}),

		AppointmentTransition: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment status changes by action and result.",
		}, []string{"action", "result"}),

		ReleaseViolations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admissions",
			Name:      "release_violations_total",
			Help:      "Releases that would have driven a counter below zero. Alert if non-zero.",
		}, []string{"resource"}),

		PatientDataAccess: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "patient_data_access_total",
			Help:      "Audited API requests by resource, action and role.",
		}, []string{"resource", "action", "role"}),
	}
}

// TrackPool exports pgx pool statistics as gauges.
func (c *Collector) TrackPool(pool *pgxpool.Pool) {
	if c == nil || pool == nil {
		return
	}
	c.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: "db",
			Name:      "acquired_connections",
			Help:      "Connections currently checked out of the pool.",
		}, func() float64 { return float64(pool.Stat().AcquiredConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Subsystem: "db",
			Name:      "total_connections",
			Help:      "Connections currently open in the pool.",
		}, func() float64 { return float64(pool.Stat().TotalConns()) }),
	)
}

func (c *Collector) Admitted() {
	if c == nil {
		return
	}
	c.PatientsAdmitted.Inc()
}

func (c *Collector) Assignment(outcome string) {
	if c == nil {
		return
	}
	c.AssignmentsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) Discharged() {
	if c == nil {
		return
	}
	c.DischargesTotal.Inc()
}

func (c *Collector) AppointmentCreated() {
	if c == nil {
		return
	}
	c.AppointmentsCreated.Inc()
}

func (c *Collector) Transition(action, result string) {
	if c == nil {
		return
	}
	c.AppointmentTransition.WithLabelValues(action, result).Inc()
}

func (c *Collector) ReleaseViolation(resource string) {
	if c == nil {
		return
	}
	c.ReleaseViolations.WithLabelValues(resource).Inc()
}

var auditedResources = map[string]bool{
	"patients": true, "appointments": true, "departments": true,
	"doctors": true, "chambers": true, "staff": true, "ws": true,
}

// Access counts one audited request. Unknown resources are folded into
// "other" so stray paths cannot grow the label set.
func (c *Collector) Access(resource, action, role string) {
	if c == nil {
		return
	}
	if !auditedResources[resource] {
		resource = "other"
	}
	if role == "" {
		role = "none"
	}
	c.PatientDataAccess.WithLabelValues(resource, action, role).Inc()
}

// Middleware records request count, latency and in-flight requests. The
// route pattern is used as the path label to keep cardinality bounded.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if c == nil {
			return next
		}
		return func(ec echo.Context) error {
			c.InFlightGauge.Inc()
			defer c.InFlightGauge.Dec()

			start := time.Now()
			err := next(ec)

			status := ec.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}
			path := ec.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{ec.Request().Method, path, strconv.Itoa(status)}
			c.RequestsTotal.WithLabelValues(labels...).Inc()
			c.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}
