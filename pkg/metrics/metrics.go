package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lms_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	dbQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lms_db_query_duration_seconds",
		Help:    "Database query latency by operation and table.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "table"})

	lessonsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lms_lessons_completed_total",
		Help: "Lesson ids newly or repeatedly accepted by completion requests.",
	})

	lessonsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lms_lessons_rejected_total",
		Help: "Lesson ids rejected because they are no longer in the curriculum.",
	})

	accessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_access_denied_total",
		Help: "Requests refused by the access gate.",
	}, []string{"action"})

	coursesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lms_courses_completed_total",
		Help: "Enrollments that reached 100% progress.",
	})

	enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_enrollments_total",
		Help: "Enrollments created by payment method.",
	}, []string{"payment_method"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_course_cache_lookups_total",
		Help: "Course snapshot cache lookups by result.",
	}, []string{"result"})

	digestEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_drip_digest_emails_total",
		Help: "Drip unlock digest emails by outcome.",
	}, []string{"outcome"})
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordDBQuery observes the duration of a single SQL statement.
func RecordDBQuery(operation, table string, elapsed time.Duration) {
	dbQueryDuration.WithLabelValues(strings.ToUpper(operation), table).Observe(elapsed.Seconds())
}

// RecordCompletion counts accepted and rejected ids of a completion request.
func RecordCompletion(accepted, rejected int) {
	lessonsCompleted.Add(float64(accepted))
	lessonsRejected.Add(float64(rejected))
}

// RecordAccessDenied counts gate refusals by action (complete, view, exam, certificate).
func RecordAccessDenied(action string) {
	accessDenied.WithLabelValues(action).Inc()
}

// RecordCourseCompleted counts enrollments that just reached 100%.
func RecordCourseCompleted() {
	coursesCompleted.Inc()
}

// RecordEnrollment counts a new enrollment.
func RecordEnrollment(paymentMethod string) {
	enrollments.WithLabelValues(paymentMethod).Inc()
}

// RecordCacheLookup counts course cache hits and misses.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordDigestEmail counts digest sends; outcome is "sent" or "failed".
func RecordDigestEmail(outcome string) {
	digestEmails.WithLabelValues(outcome).Inc()
}
