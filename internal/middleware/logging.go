package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestLogger attaches a request-scoped logger and logs each completed request.
// It is compatible with gorilla/mux (router.Use).
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		child := logger.L().With().
			Str(logger.FieldRequestID, reqID).
			Str(logger.FieldMethod, r.Method).
			Str(logger.FieldPath, r.URL.Path).
			Str(logger.FieldClientIP, clientIP(r)).
			Logger()

		w.Header().Set(headerRequestID, reqID)
		r = r.WithContext(logger.WithLogger(r.Context(), child))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.hijacked {
			child.Info().Dur("connected", time.Since(start)).Msg("connection upgraded")
			return
		}
		child.Info().
			Int(logger.FieldStatus, rec.status).
			Float64(logger.FieldLatency, float64(time.Since(start).Milliseconds())).
			Msg("request completed")
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status   int
	hijacked bool
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not implement http.Hijacker")
	}
	r.hijacked = true
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
