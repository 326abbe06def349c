// Package api assembles the HTTP surface: routing, the middleware
// chain and the problem+json error contract.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/allez-events/server/internal/api/handlers"
	"github.com/allez-events/server/internal/api/middleware"
	"github.com/allez-events/server/internal/auth"
	"github.com/allez-events/server/internal/config"
	"github.com/allez-events/server/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps carries the wired handlers into the router.
type Deps struct {
	Events *handlers.EventsHandler
	Users  *handlers.UsersHandler
	Health *handlers.HealthHandler
	JWT    *auth.JWTManager
}

// NewRouter builds the full handler tree. Public routes are the event
// listing and single-event fetch plus the health probes; everything
// else requires a bearer token.
func NewRouter(cfg config.Config, logger zerolog.Logger, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/healthz", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Health.Healthz),
	}))
	mux.Handle("/readyz", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Health.Readyz),
	}))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	authed := middleware.Authenticate(deps.JWT, cfg.Environment)
	limit := middleware.RateLimit(cfg.RateLimit)
	userTier := middleware.WithRateLimitTierHandler(middleware.TierUser)

	// The tier wrapper must run before the limiter so the limiter picks
	// up the authenticated bucket instead of the public one.
	public := func(h http.HandlerFunc) http.Handler {
		return limit(h)
	}
	protect := func(h http.HandlerFunc) http.Handler {
		return userTier(limit(authed(h)))
	}

	events := deps.Events
	mux.Handle("/api/v1/events", methodMux(map[string]http.Handler{
		http.MethodGet:  public(events.List),
		http.MethodPost: protect(events.Create),
	}))
	mux.Handle("/api/v1/events/recent", methodMux(map[string]http.Handler{
		http.MethodGet: protect(events.Recent),
	}))
	mux.Handle("/api/v1/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    public(events.Get),
		http.MethodPut:    protect(events.Modify),
		http.MethodDelete: protect(events.Delete),
		http.MethodPatch:  protect(events.Cohost),
	}))
	mux.Handle("/api/v1/events/{id}/register", methodMux(map[string]http.Handler{
		http.MethodPatch: protect(events.Register),
	}))
	mux.Handle("/api/v1/events/{id}/view", methodMux(map[string]http.Handler{
		http.MethodPost: protect(events.View),
	}))

	users := deps.Users
	mux.Handle("/api/v1/users/signup", methodMux(map[string]http.Handler{
		http.MethodPost: protect(users.Signup),
	}))
	mux.Handle("/api/v1/users", methodMux(map[string]http.Handler{
		http.MethodGet:    protect(users.Get),
		http.MethodPut:    protect(users.Modify),
		http.MethodDelete: protect(users.Delete),
	}))
	mux.Handle("/api/v1/users/hostedEvents", methodMux(map[string]http.Handler{
		http.MethodGet: protect(users.HostedEvents),
	}))
	mux.Handle("/api/v1/users/cohostedEvents", methodMux(map[string]http.Handler{
		http.MethodGet: protect(users.CohostedEvents),
	}))
	mux.Handle("/api/v1/users/registeredEvents", methodMux(map[string]http.Handler{
		http.MethodGet: protect(users.RegisteredEvents),
	}))

	// Outermost first: correlation id, logging, metrics, then the
	// protective layers.
	var handler http.Handler = mux
	handler = middleware.RequestSize(middleware.UploadMaxBodySize)(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Environment == "production")(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := routes[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(routes))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(routes map[string]http.Handler) string {
	methods := make([]string, 0, len(routes))
	for method := range routes {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
