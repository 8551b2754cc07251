package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gamedesk/backend/internal/config"
	"github.com/gamedesk/backend/internal/db"
	"github.com/gamedesk/backend/internal/http/handlers"
	"github.com/gamedesk/backend/internal/http/middleware"
	"github.com/gamedesk/backend/internal/push"
	"github.com/gamedesk/backend/internal/service"

	_ "github.com/gamedesk/backend/docs"
)

func Router(cfg config.Config, store *db.Store, sessions *service.SessionService, hub *push.Hub, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Sessions:  sessions,
		Hub:       hub,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/tickets", h.TicketCreate)
		api.GET("/tickets/:id", h.TicketDetails)
		api.GET("/issue-types", h.IssueTypesEnabled)

		api.POST("/sessions", h.SessionCreate)
		api.GET("/sessions/:id", h.SessionDetails)
		api.POST("/sessions/:id/messages", h.SessionPlayerMessage)
		api.POST("/sessions/:id/transfer-to-agent", h.SessionTransfer)
		api.PATCH("/sessions/:id/close-player", h.SessionClose)
		api.GET("/sessions/:id/events", h.SessionEvents)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.GET("/sessions", h.SessionsList)
		admin.GET("/workbench/queued", h.WorkbenchQueued)
		admin.POST("/sessions/:id/join", h.SessionJoin)
		admin.PATCH("/sessions/:id/close", h.SessionClose)

		admin.GET("/rules", h.RulesList)
		admin.GET("/rules/:id", h.RuleDetails)
		admin.POST("/rules", h.RuleCreate)
		admin.PATCH("/rules/:id", h.RuleUpdate)
		admin.DELETE("/rules/:id", h.RuleDelete)
		admin.POST("/rules/recalculate", h.RulesRecalculate)

		admin.GET("/issue-types/all", h.IssueTypesAll)
		admin.POST("/issue-types", h.IssueTypeCreate)
		admin.PATCH("/issue-types/:id", h.IssueTypeUpdate)
		admin.DELETE("/issue-types/:id", h.IssueTypeDelete)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
