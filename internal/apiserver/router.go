package apiserver

import (
	"github.com/netsblox/cloud/internal/auth"
	"github.com/netsblox/cloud/internal/health"
	"github.com/netsblox/cloud/internal/invites"
	"github.com/netsblox/cloud/internal/middleware"
	"github.com/netsblox/cloud/internal/network"
	"github.com/netsblox/cloud/internal/project"
	"github.com/netsblox/cloud/internal/ratelimit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps bundles everything NewRouter needs to wire SPEC_FULL.md §11's routes,
// mirroring the teacher's cmd/v1/session/main.go construction-then-wire
// shape.
type Deps struct {
	Validator      auth.TokenValidator
	Limiter        *ratelimit.RateLimiter
	Health         *health.Handler
	Projects       *project.Service
	Invites        *invites.Service
	Hub            *network.Hub
	AllowedOrigins []string
	CloudURL       string
}

// NewRouter builds the gin.Engine exposing /api, /ws/:projectId,
// /health/{live,ready} and /metrics (SPEC_FULL.md §10-§11).
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = deps.AllowedOrigins
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	if deps.Limiter != nil {
		r.Use(deps.Limiter.GlobalMiddleware())
	}

	r.GET("/health/live", deps.Health.Liveness)
	r.GET("/health/ready", deps.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws/:projectId", deps.Hub.ServeWS)

	configHandlers := NewConfigHandlers(deps.CloudURL)
	r.GET("/api/config", configHandlers.GetConfig)

	projectHandlers := NewProjectHandlers(deps.Projects)
	inviteHandlers := NewInviteHandlers(deps.Invites, deps.Projects)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Validator))
	{
		projects := api.Group("/projects")
		if deps.Limiter != nil {
			projects.Use(deps.Limiter.MiddlewareForEndpoint("projects"))
		}
		projects.POST("", projectHandlers.Create)
		projects.GET("/:id", projectHandlers.Get)
		projects.GET("/:id/latest", projectHandlers.GetLatest)
		projects.GET("/:id/thumbnail", projectHandlers.GetThumbnail)
		projects.PATCH("/:id", projectHandlers.Rename)
		projects.DELETE("/:id", projectHandlers.Delete)
		projects.POST("/:id/publish", projectHandlers.Publish)
		projects.POST("/:id/unpublish", projectHandlers.Unpublish)
		projects.POST("/:id/roles", projectHandlers.AddRole)
		projects.PATCH("/:id/roles/:roleId", projectHandlers.RenameRole)
		projects.DELETE("/:id/roles/:roleId", projectHandlers.DeleteRole)
		projects.POST("/:id/collaborators/:username", projectHandlers.AddCollaborator)
		projects.DELETE("/:id/collaborators/:username", projectHandlers.RemoveCollaborator)
		projects.POST("/:id/invite/:recipient", inviteHandlers.Send)

		invitesGroup := api.Group("/invites")
		if deps.Limiter != nil {
			invitesGroup.Use(deps.Limiter.MiddlewareForEndpoint("invites"))
		}
		invitesGroup.POST("/:id", inviteHandlers.Respond)

		users := api.Group("/users")
		if deps.Limiter != nil {
			users.Use(deps.Limiter.MiddlewareForEndpoint("invites"))
		}
		users.GET("/:recipient/invites", inviteHandlers.List)
	}

	return r
}
