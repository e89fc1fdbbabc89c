package middleware

import (
	"net/http"
	"time"
)

type requestObserver interface {
	ObserveRequest(method string, route string, status int, elapsed time.Duration)
}

// Report every request to observer, labeled with the pattern matched by the mux
// Patterns of nested muxes are not visible here: routes have to be registered on one mux
func MetricsMiddleware(o requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := newStatusRecorder(w)

			// Observed even if handler panics: aborted request is reported as 500 unless status was written
			defer func() {
				status := rec.status
				if p := recover(); p != nil {
					if !rec.wroteHeader {
						status = http.StatusInternalServerError
					}
					o.ObserveRequest(r.Method, r.Pattern, status, time.Since(start))
					panic(p)
				}
				o.ObserveRequest(r.Method, r.Pattern, status, time.Since(start))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
