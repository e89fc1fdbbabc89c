package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/nkiryanov/authsession/internal/handlers/render"
)

// Recover from handler panics, report them to sentry and respond with 500
// Sentry capture is no-op if sentry is not initialized
func RecoverMiddleware(l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := string(debug.Stack())
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("method", r.Method)
					scope.SetExtra("path", r.URL.Path)
					scope.SetExtra("stack", stack)
					sentry.CaptureException(fmt.Errorf("panic in request: %v", rec))
				})

				l.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				render.InternalError(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
