package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

const (
	// maxLoggedBody caps how much of a request body ends up in the log.
	maxLoggedBody = 4 << 10
	// MaxRequestBody is the largest request body accepted at all.
	MaxRequestBody = 1 << 20
)

func LogMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			var body []byte
			if r.Body != nil {
				raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBody))
				if err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						logger.Warnw("request body too large", "uri", r.RequestURI, "limit", tooLarge.Limit)
						JSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
						return
					}
					JSONError(w, http.StatusBadRequest, "failed to read request body")
					return
				}
				_ = r.Body.Close()
				r.Body = io.NopCloser(bytes.NewReader(raw))
				body = raw
			}
			if len(body) > maxLoggedBody {
				body = body[:maxLoggedBody]
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			logger.Infof("method=%s uri=%s status=%d size=%d duration=%s request_id=%s body=%s outputheaders=%v",
				r.Method,
				r.RequestURI,
				status,
				ww.BytesWritten(),
				time.Since(start),
				chiMiddleware.GetReqID(r.Context()),
				body,
				ww.Header(),
			)
		})
	}
}
