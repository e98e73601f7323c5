package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Access-control metrics
var (
	registrationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizhub_registration_decisions_total",
			Help: "Registration gate decisions by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)

	invitationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizhub_invitation_transitions_total",
			Help: "Invitation status transitions by target status.",
		},
		[]string{"status"},
	)

	invitationCleanupExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bizhub_invitation_cleanup_expired_total",
		Help: "Invitations expired by the cleanup sweep.",
	})

	authorizationChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bizhub_authorization_checks_total",
			Help: "Route authorization checks by result.",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

// Init registers all metrics in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			registrationDecisions, invitationTransitions, invitationCleanupExpired, authorizationChecks,
		)
	})
}

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRegistrationDecision counts a registration gate outcome.
func RecordRegistrationDecision(allowed bool, reason string) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	registrationDecisions.WithLabelValues(outcome, reason).Inc()
}

// RecordInvitationTransition counts an invitation moving to status.
func RecordInvitationTransition(status string) {
	invitationTransitions.WithLabelValues(status).Inc()
}

// RecordCleanupExpired adds n sweep-expired invitations.
func RecordCleanupExpired(n int) {
	if n > 0 {
		invitationCleanupExpired.Add(float64(n))
	}
}

// RecordAuthorization counts a route authorization result.
func RecordAuthorization(allowed bool) {
	if allowed {
		authorizationChecks.WithLabelValues("allowed").Inc()
		return
	}
	authorizationChecks.WithLabelValues("denied").Inc()
}

// Instrument measures request rate, latency and in-flight count.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses invitation tokens and user ids so metric label cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(p, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "invitations":
		return "/v1/invitations/:token"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "invitations" && parts[3] == "accept":
		return "/v1/invitations/:token/accept"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "invitations" && parts[3] != "cleanup":
		return "/v1/admin/invitations/:token"
	case len(parts) == 5 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "users" && parts[4] == "overrides":
		return "/v1/admin/users/:user_id/overrides"
	case len(parts) == 6 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "users" && parts[4] == "overrides":
		return "/v1/admin/users/:user_id/overrides/:permission"
	}
	return p
}

// statusWriter records the response code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
