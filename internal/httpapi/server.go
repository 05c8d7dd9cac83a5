package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/config"
	"github.com/opsdeck/automation-engine/internal/tenant"
	"github.com/opsdeck/automation-engine/internal/usecase"
	"github.com/opsdeck/automation-engine/pkg/logger"
)

// workspaceHeader optionally overrides the configured workspace, so one
// deployment can serve probes and tooling for several workspaces.
const workspaceHeader = "X-Workspace-ID"

// Server exposes the automation boundary operations over HTTP.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the gin engine, middleware and routes.
func NewServer(cfg *config.Config, service *usecase.AutomationService, baseLogger *zap.Logger) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	log := baseLogger.Named("httpapi")

	engine.Use(gin.Recovery())
	engine.Use(requestContextMiddleware(cfg.Workspace.ID, log))

	handler := NewAutomationHandler(service, log)

	api := engine.Group("/api")
	{
		api.POST("/automations/check-alerts", handler.CheckAlerts)
		api.POST("/automations/booking-created", handler.BookingCreated)
		api.POST("/automations/contact-created", handler.ContactCreated)

		api.GET("/alerts", handler.ListAlerts)
		api.POST("/alerts/:id/resolve", handler.ResolveAlert)
		api.POST("/alerts/resolve-all", handler.ResolveAllAlerts)

		api.POST("/contacts", handler.CreateContact)
		api.POST("/bookings", handler.CreateBooking)
		api.POST("/conversations/:id/reply", handler.StaffReply)
	}

	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// requestContextMiddleware stamps every request with a request ID, the
// tenant workspace and a scoped logger before the handler runs.
func requestContextMiddleware(defaultWorkspaceID string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()

		workspaceID := c.GetHeader(workspaceHeader)
		if workspaceID == "" {
			workspaceID = defaultWorkspaceID
		}

		ctx := c.Request.Context()
		ctx = tenant.WithWorkspaceID(ctx, workspaceID)
		ctx = tenant.WithRequestID(ctx, requestID)
		ctx = logger.WithLogger(ctx, log.With(
			zap.String("request_id", requestID),
			zap.String("workspace_id", workspaceID),
			zap.String("path", c.FullPath()),
		))
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting HTTP API server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP API server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP API server")
	return s.httpServer.Shutdown(ctx)
}
