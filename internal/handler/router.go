package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chathandler "github.com/kandedongma/foreigner-app/backend/internal/handler/chat"
	moderationhandler "github.com/kandedongma/foreigner-app/backend/internal/handler/moderation"
	middlewarePkg "github.com/kandedongma/foreigner-app/backend/internal/middleware"
	chatservice "github.com/kandedongma/foreigner-app/backend/internal/service/chat"
	moderationservice "github.com/kandedongma/foreigner-app/backend/internal/service/moderation"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatservice.Service, modSvc *moderationservice.Service, advisor *moderationservice.Advisor) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chathandler.New(chatSvc, modSvc)
	wsHandler := chathandler.NewWebSocketHandler(chatSvc, modSvc)
	moderationHandler := moderationhandler.New(modSvc, advisor)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterWebSocketRoutes(api)
		moderationHandler.RegisterRoutes(api)
	})

	return r
}
