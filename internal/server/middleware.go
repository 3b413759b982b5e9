package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger replaces chi's middleware.Logger with a structured entry per
// request and counts the request by status.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Metrics.Request(r.Method, strconv.Itoa(status))

		ev := s.log.Info()
		if status >= http.StatusInternalServerError {
			ev = s.log.Error()
		} else if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			ev = s.log.Debug()
		}
		ev.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
