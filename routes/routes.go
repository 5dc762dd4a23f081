package routes

import (
	"net/http"
	"time"

	"github.com/docuchat/backend/app"
	"github.com/docuchat/backend/handlers"
	appmiddleware "github.com/docuchat/backend/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(appmiddleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	// Generation requests can run for minutes
	r.Use(middleware.Timeout(5 * time.Minute))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.DB.DB, deps.ProviderRegistry, deps.Logger)
	projectHandler := handlers.NewProjectHandler(deps.Repositories.Projects, deps.IngestService, deps.Logger)
	documentHandler := handlers.NewDocumentHandler(deps.Repositories.Documents, deps.Repositories.Projects, deps.IngestService, deps.Logger)
	chatHandler := handlers.NewChatHandler(deps.ChatService, deps.Logger)
	modelHandler := handlers.NewModelHandler(deps.ProviderRegistry, deps.Logger)
	settingsHandler := handlers.NewSettingsHandler(deps.RAGService, deps.Logger)

	// Health check endpoints
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectHandler.HandleList)
			r.Post("/", projectHandler.HandleCreate)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", projectHandler.HandleGet)
				r.Put("/", projectHandler.HandleUpdate)
				r.Delete("/", projectHandler.HandleDelete)
				r.Get("/stats", projectHandler.HandleStats)

				r.Get("/documents", documentHandler.HandleList)
				r.Post("/documents", documentHandler.HandleUpload)

				r.Get("/chats", chatHandler.HandleList)
				r.Post("/chats", chatHandler.HandleCreate)
			})
		})

		r.Route("/documents/{documentID}", func(r chi.Router) {
			r.Get("/", documentHandler.HandleGet)
			r.Delete("/", documentHandler.HandleDelete)
		})

		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/", chatHandler.HandleGet)
			r.Put("/", chatHandler.HandleRename)
			r.Delete("/", chatHandler.HandleDelete)
			r.Get("/messages", chatHandler.HandleMessages)
			r.Post("/messages", chatHandler.HandleSendMessage)
			r.Post("/messages/stream", chatHandler.HandleSendMessageStream)
		})

		r.Get("/models", modelHandler.HandleListModels)
		r.Get("/providers", modelHandler.HandleListProviders)

		r.Get("/settings", settingsHandler.HandleGet)
		r.Put("/settings", settingsHandler.HandleUpdate)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
