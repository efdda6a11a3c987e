package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"staybook-server/services/chat-api/internal/config"
	authvalidator "staybook-server/services/chat-api/internal/infrastructure/auth"
	middleware "staybook-server/services/chat-api/internal/interfaces/httpserver/middlewares"
	v1 "staybook-server/services/chat-api/internal/interfaces/httpserver/routes/v1"
)

type HttpServer struct {
	engine    *gin.Engine
	v1Route   *v1.V1Route
	validator *authvalidator.TokenValidator
	db        *gorm.DB
	logger    zerolog.Logger
	config    *config.Config
}

func NewHttpServer(
	v1Route *v1.V1Route,
	validator *authvalidator.TokenValidator,
	db *gorm.DB,
	logger zerolog.Logger,
	cfg *config.Config,
) *HttpServer {
	gin.SetMode(gin.ReleaseMode)
	server := &HttpServer{
		engine:    gin.New(),
		v1Route:   v1Route,
		validator: validator,
		db:        db,
		logger:    logger,
		config:    cfg,
	}

	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.LoggingMiddleware(logger))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server.engine.GET("/readyz", server.readyz)

	return server
}

func (httpServer *HttpServer) readyz(c *gin.Context) {
	if !httpServer.validator.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "jwks not loaded"})
		return
	}

	sqlDB, err := httpServer.db.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (httpServer *HttpServer) Run() error {
	protected := httpServer.engine.Group("/")
	protected.Use(middleware.ResolveIdentity(httpServer.validator, httpServer.config.AdminRole, httpServer.logger))

	httpServer.v1Route.RegisterRouter(protected)

	if err := httpServer.engine.Run(fmt.Sprintf(":%d", httpServer.config.HTTPPort)); err != nil {
		return err
	}
	return nil
}
