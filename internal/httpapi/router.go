package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"bank-transfers/internal/telemetry"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

func Router(h *Handlers, maxInflight int) http.Handler {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("bank-transfers"))
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/clientes", h.RegisterClient).Methods(http.MethodPost)
	api.HandleFunc("/clientes", h.ListClients).Methods(http.MethodGet)
	api.HandleFunc("/clientes/{numeroConta}", h.GetClient).Methods(http.MethodGet)
	api.HandleFunc("/transferencias", h.Transfer).Methods(http.MethodPost)
	api.HandleFunc("/transferencias/historico/{numeroConta}", h.History).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Backpressure at the edge: fail fast instead of queueing on a saturated pool.
	return withConcurrencyLimit(r, maxInflight)
}

func withConcurrencyLimit(next http.Handler, max int) http.Handler {
	if max <= 0 {
		max = 64
	}
	sem := make(chan struct{}, max)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		default:
			telemetry.HTTPRejectedBusy.Inc()
			writeErr(w, http.StatusServiceUnavailable, "server busy")
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware labels requests by route template so account numbers do
// not become label values.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		telemetry.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
