package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"loancollect/services"
	"loancollect/utils"
)

type contextKey string

const claimsKey contextKey = "claims"

type LoggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (lrw *LoggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *LoggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs every request and feeds the request counters
func LoggingMiddleware(metrics *utils.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lrw := &LoggingResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(lrw, r)

			duration := time.Since(start)
			metrics.RecordRequest(duration, lrw.statusCode)

			entry := utils.Log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   lrw.statusCode,
				"bytes":    lrw.size,
				"duration": duration.String(),
				"remote":   remoteHost(r),
			})
			if lrw.statusCode >= http.StatusInternalServerError {
				entry.Error("request failed")
				return
			}
			entry.Info("request served")
		})
	}
}

// AuthMiddleware requires a Bearer token issued at login on every path
// except the public ones.
func AuthMiddleware(jwtKey []byte, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				writeMessage(w, http.StatusUnauthorized, "Authorization header is required")
				return
			}
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			claims, err := services.ParseToken(tokenString, jwtKey)
			if err != nil {
				utils.LogDebug("rejected token: %v", err)
				writeMessage(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext returns the claims of the authenticated operator
func GetUserFromContext(r *http.Request) (*services.Claims, error) {
	claims, ok := r.Context().Value(claimsKey).(*services.Claims)
	if !ok {
		return nil, errors.New("no authenticated user in context")
	}
	return claims, nil
}
