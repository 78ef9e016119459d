package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-resource-api/api/swagger"
	"github.com/noah-isme/edu-resource-api/internal/handler"
	"github.com/noah-isme/edu-resource-api/internal/middleware"
	"github.com/noah-isme/edu-resource-api/internal/service"
	"github.com/noah-isme/edu-resource-api/pkg/config"
	"github.com/noah-isme/edu-resource-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-resource-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-resource-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Auth      *handler.AuthHandler
	Users     *handler.UserHandler
	Meta      *handler.MetaHandler
	Resources *handler.ResourceHandler
	Health    *handler.HealthHandler
}

// Options carries the cross-cutting collaborators of the router.
type Options struct {
	Env         string
	APIPrefix   string
	CORSOrigins []string
	Tokens      middleware.TokenValidator
	Audit       middleware.AuditWriter
	Metrics     *service.MetricsService
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.CORSOrigins))
	r.Use(middleware.Metrics(opts.Metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", h.Health.Prometheus)
	prefix := "/" + strings.Trim(opts.APIPrefix, "/")
	if opts.Env != config.EnvProduction {
		swagger.BasePath = prefix
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)

	auth := middleware.JWT(opts.Tokens)
	optional := middleware.OptionalJWT(opts.Tokens)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/logout", auth, h.Auth.Logout)
	authGroup.GET("/me", auth, h.Auth.Me)
	authGroup.POST("/change-password", auth, h.Auth.ChangePassword)

	// UserService writes its own audit entries with old and new values.
	users := api.Group("/users", auth, middleware.AdminOnly())
	users.GET("", h.Users.List)
	users.GET("/:id", h.Users.Get)
	users.POST("/schools", h.Users.CreateSchool)
	users.PATCH("/:id/status", h.Users.UpdateStatus)

	meta := api.Group("/meta")
	meta.GET("/grades", h.Meta.ListGrades)
	meta.GET("/subjects", h.Meta.ListSubjects)
	meta.GET("/resource-types", h.Meta.ListResourceTypes)
	meta.GET("/tags", h.Meta.ListTags)
	meta.GET("/stats", h.Meta.Stats)

	metaAdmin := meta.Group("", auth, middleware.AdminOnly())
	grades := metaAdmin.Group("/grades", middleware.Audit(opts.Audit, "grade", opts.Logger))
	grades.POST("", h.Meta.CreateGrade)
	grades.PUT("/:id", h.Meta.UpdateGrade)
	grades.DELETE("/:id", h.Meta.DeleteGrade)
	subjects := metaAdmin.Group("/subjects", middleware.Audit(opts.Audit, "subject", opts.Logger))
	subjects.POST("", h.Meta.CreateSubject)
	subjects.PUT("/:id", h.Meta.UpdateSubject)
	subjects.DELETE("/:id", h.Meta.DeleteSubject)
	types := metaAdmin.Group("/resource-types", middleware.Audit(opts.Audit, "resource_type", opts.Logger))
	types.POST("", h.Meta.CreateResourceType)
	types.PUT("/:id", h.Meta.UpdateResourceType)
	types.DELETE("/:id", h.Meta.DeleteResourceType)
	tags := metaAdmin.Group("/tags", middleware.Audit(opts.Audit, "tag", opts.Logger))
	tags.POST("", h.Meta.CreateTag)
	tags.PUT("/:id", h.Meta.UpdateTag)
	tags.DELETE("/:id", h.Meta.DeleteTag)

	resources := api.Group("/resources")
	resources.GET("", optional, h.Resources.List)
	resources.GET("/all", auth, h.Resources.All)
	resources.GET("/popular", h.Resources.Popular)
	resources.GET("/board", h.Resources.Board)
	resources.GET("/mine", auth, h.Resources.Mine)
	resources.GET("/export", auth, middleware.AdminOnly(), h.Resources.Export)
	resources.GET("/:id", optional, h.Resources.Get)
	resources.GET("/:id/download", optional, h.Resources.Download)
	resources.POST("", auth, middleware.Uploaders(), h.Resources.Create)
	resources.PUT("/:id", auth, middleware.Uploaders(), h.Resources.Update)
	resources.DELETE("/:id", auth, middleware.Uploaders(), h.Resources.Delete)
	resources.POST("/:id/like", auth, h.Resources.Like)
	resources.POST("/:id/download-link", auth, h.Resources.DownloadLink)

	api.GET("/files/:token", h.Resources.SignedDownload)
	api.GET("/uploads/:name", h.Resources.Uploaded)

	return r
}
