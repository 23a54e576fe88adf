package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/services"
	"github.com/vsinha/cims/pkg/domain/entities"
)

const (
	CurrentVersion = "v1"
	sunsetDate     = "Sat, 1 Jan 2028 00:00:00 GMT"
)

// deprecatedVersions lists API versions that still work but announce their retirement
var deprecatedVersions = map[string]bool{}

type contextKey string

const userKey contextKey = "user"

// versionHeaders stamps every response with the API version it was served by
func versionHeaders(version string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deprecated := deprecatedVersions[version]
			w.Header().Set("X-API-Version", version)
			if deprecated {
				w.Header().Set("X-API-Deprecated", "true")
				w.Header().Set("Deprecation", "true")
				w.Header().Set("Sunset", sunsetDate)
			} else {
				w.Header().Set("X-API-Deprecated", "false")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one line per request; headers and bodies are never logged
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("request completed", fields...)
				return
			}
			logger.Info("request completed", fields...)
		})
	}
}

// RequestObserver records request durations
type RequestObserver interface {
	ObserveRequest(method, route string, status int, d time.Duration)
	ConnectionOpened()
	ConnectionClosed()
}

func instrument(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			observer.ConnectionOpened()
			defer observer.ConnectionClosed()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			// the route pattern keeps ids out of the label values
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observer.ObserveRequest(r.Method, route, status, time.Since(start))
		})
	}
}

// protect requires a valid bearer token and records the request in the activity log
func (a *API) protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}

		user, err := a.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		if err := a.svc.Auth.RecordActivity(r.Context(), user, r.Method+" "+r.URL.Path); err != nil {
			a.logger.Warn("failed to record activity", zap.String("user_id", user.ID), zap.Error(err))
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// restrictTo lets only the listed roles through; it must run after protect
func (a *API) restrictTo(roles ...entities.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r)
			if user == nil || !user.HasRole(roles...) {
				a.writeError(w, r, &services.Error{
					Kind: services.ErrForbidden,
					Msg:  "You do not have permission to perform this action",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func currentUser(r *http.Request) *entities.User {
	user, _ := r.Context().Value(userKey).(*entities.User)
	return user
}
