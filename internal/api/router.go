package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "courier/internal/api/context"
	"courier/internal/api/handlers"
	"courier/internal/api/middleware"
	"courier/internal/pkg/errors"
	"courier/internal/platform/auth"
	"courier/internal/platform/config"
)

type Dependencies struct {
	AuthHandler       *handlers.AuthHandler
	EnterpriseHandler *handlers.EnterpriseHandler
	ConfigHandler     *handlers.ConfigHandler
	QueueHandler      *handlers.QueueHandler
	EventsHandler     *handlers.EventsHandler
	HealthHandler     *handlers.HealthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	RateLimiter       *middleware.RateLimiter
	RateLimits        config.RateLimitConfig
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	authMid := deps.AuthMiddleware
	read := deps.RateLimiter.RateLimit("api_read", deps.RateLimits.APIReadPerMinute)
	write := deps.RateLimiter.RateLimit("api_write", deps.RateLimits.APIWritePerMinute)

	router.GET("/health", wrap(deps.HealthHandler.Check))

	router.POST("/api/v1/auth/login", chain(deps.AuthHandler.Login, write))

	// Provisioning
	router.POST("/api/v1/enterprises",
		chain(deps.EnterpriseHandler.Create, authMid.Handle, requireRole("admin"), write))
	router.GET("/api/v1/enterprises/:enterprise_id",
		chain(deps.EnterpriseHandler.Get, authMid.Handle, read))
	router.POST("/api/v1/enterprises/:enterprise_id/members",
		chain(deps.EnterpriseHandler.AddMember, authMid.Handle, requireRole("admin"), write))
	router.POST("/api/v1/users",
		chain(deps.EnterpriseHandler.CreateUser, authMid.Handle, requireRole("admin"), write))

	// Webhook configuration
	router.POST("/api/v1/enterprises/:enterprise_id/webhooks",
		chain(deps.ConfigHandler.Create, authMid.Handle, requireRole("admin"), write))
	router.GET("/api/v1/enterprises/:enterprise_id/webhooks",
		chain(deps.ConfigHandler.List, authMid.Handle, read))
	router.GET("/api/v1/enterprises/:enterprise_id/webhooks/:config_id",
		chain(deps.ConfigHandler.Get, authMid.Handle, read))
	router.PATCH("/api/v1/enterprises/:enterprise_id/webhooks/:config_id",
		chain(deps.ConfigHandler.Update, authMid.Handle, requireRole("admin"), write))
	router.DELETE("/api/v1/enterprises/:enterprise_id/webhooks/:config_id",
		chain(deps.ConfigHandler.Delete, authMid.Handle, requireRole("admin"), write))

	// Queue inspection and operator actions
	router.GET("/api/v1/queue",
		chain(deps.QueueHandler.List, authMid.Handle, read))
	router.GET("/api/v1/queue/:entry_id",
		chain(deps.QueueHandler.Get, authMid.Handle, read))
	router.POST("/api/v1/queue/:entry_id/cancel",
		chain(deps.QueueHandler.Cancel, authMid.Handle, requireRole("admin"), write))
	router.POST("/api/v1/queue/:entry_id/retry",
		chain(deps.QueueHandler.Retry, authMid.Handle, requireRole("admin"), write))

	// Event intake
	router.POST("/api/v1/events",
		chain(deps.EventsHandler.Intake, authMid.Handle, write))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
