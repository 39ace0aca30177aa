package middleware

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "http")

// RequestLogger logs one line per request through logrus. Event streams are
// logged when they end.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				entry := log.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"request_id": chiMiddleware.GetReqID(r.Context()),
				})
				switch {
				case ww.Status() >= http.StatusInternalServerError:
					entry.Warn("request failed")
				case r.URL.Path == "/api/v1/health":
					entry.Debug("request")
				default:
					entry.Info("request")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
