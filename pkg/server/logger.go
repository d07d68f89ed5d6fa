package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Logger is custom chi logging middleware for slog.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		t1 := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			slog.LogAttrs(r.Context(), level, "returned response",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("repo", chi.URLParam(r, "repo")),
				slog.Group("request", slog.String("method", r.Method), slog.String("path", r.URL.Path)),
				slog.Group("response", slog.Int("status", status), slog.Int("bytes", ww.BytesWritten())),
				slog.Duration("duration", time.Since(t1)),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
