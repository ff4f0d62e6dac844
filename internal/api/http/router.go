package http

import (
	"github.com/EternisAI/orca/internal/api/http/handler"
	"github.com/EternisAI/orca/internal/api/http/middleware"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Identities  handler.IdentityReader
	Events      handler.EventReader
	Dispatcher  handler.Dispatcher
	AdminAPIKey string
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	api := engine.Group("/api/v1")
	api.Use(middleware.APIKeyAuth(srvs.AdminAPIKey))

	if srvs.Identities != nil {
		identityHandler := handler.NewIdentityHandler(srvs.Identities)
		api.GET("/identities", identityHandler.ListIdentities)
		api.GET("/identities/:identifier", identityHandler.GetIdentity)
	}

	if srvs.Events != nil {
		eventHandler := handler.NewEventHandler(srvs.Events)
		api.GET("/events", eventHandler.ListEvents)
	}

	if srvs.Dispatcher != nil {
		dispatchHandler := handler.NewDispatchHandler(srvs.Dispatcher)
		api.POST("/dispatch", dispatchHandler.Dispatch)
	}
}
