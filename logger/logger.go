// Package logger holds the process-wide zap logger and the HTTP request
// logging middleware.
package logger

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// StatusClientClosedRequest is logged for requests whose client went away
// before any response was written.
const StatusClientClosedRequest = 499

// Log is a no-op until Initialize is called.
var Log *zap.Logger = zap.NewNop()

// Initialize builds a production JSON logger at the given level and installs
// it as Log and as zap's global logger.
func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl
	zap.ReplaceGlobals(zl)
	return nil
}

type responseData struct {
	status  int
	size    int
	written bool
}

type loggingResponseWriter struct {
	http.ResponseWriter
	data *responseData
}

func (w *loggingResponseWriter) Write(b []byte) (int, error) {
	size, err := w.ResponseWriter.Write(b)
	w.data.size += size
	w.data.written = true
	return size, err
}

func (w *loggingResponseWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.data.status = statusCode
	w.data.written = true
}

// RequestLogger logs method, uri, status, size and duration of each request.
// A request that wrote nothing after its context ended is logged with
// StatusClientClosedRequest.
func RequestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		data := &responseData{status: http.StatusOK}
		lw := &loggingResponseWriter{ResponseWriter: w, data: data}

		h.ServeHTTP(lw, r)
		if !data.written && r.Context().Err() != nil {
			data.status = StatusClientClosedRequest
		}

		Log.Info("got incoming HTTP request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Int("status", data.status),
			zap.Int("size", data.size),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
