package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/talos-registry/talos-server/internal/health"
	"github.com/talos-registry/talos-server/internal/http/handler"
	"github.com/talos-registry/talos-server/internal/http/middleware"
	"github.com/talos-registry/talos-server/internal/http/response"
	"github.com/talos-registry/talos-server/internal/security"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	TemplateHandler  *handler.TemplateHandler
	ApiKeyHandler    *handler.ApiKeyAdminHandler
	JWTManager       *security.JWTManager
	APIKeyGate       *middleware.APIKeyGate
	Logger           *slog.Logger
	CORSOrigins      []string
	AuthRateLimitRPM int
	APIRateLimitRPM  int
	Readiness        *health.ProbeRunner
	EnableOTelHTTP   bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	if dep.Logger != nil {
		r.Use(middleware.StructuredRequestLogger(dep.Logger))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())

	authLimiter := middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	bearer := middleware.AuthMiddleware(dep.JWTManager)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
			r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
			r.With(authLimiter).Post("/refresh", dep.AuthHandler.Refresh)
			r.Post("/logout", dep.AuthHandler.Logout)
			r.With(bearer).Get("/profile", dep.AuthHandler.GetProfile)
			r.With(bearer).Put("/profile", dep.AuthHandler.UpdateProfile)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", dep.TemplateHandler.List)
			r.Get("/{id}", dep.TemplateHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(bearer)
				r.Post("/", dep.TemplateHandler.Create)
				r.Put("/{id}", dep.TemplateHandler.Update)
				r.Delete("/{id}", dep.TemplateHandler.Delete)
			})
		})

		// Service-to-service and operator surfaces sit behind the key gate,
		// not behind bearer auth.
		r.Route("/registry", func(r chi.Router) {
			r.Use(dep.APIKeyGate.Handler)
			r.Get("/templates", dep.TemplateHandler.ListAll)
			r.Get("/templates/{id}", dep.TemplateHandler.Get)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(dep.APIKeyGate.Handler)
			r.Post("/keys", dep.ApiKeyHandler.Mint)
			r.Get("/keys", dep.ApiKeyHandler.List)
			r.Post("/keys/revoke", dep.ApiKeyHandler.Revoke)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
