package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pensador-ai/website/backend/internal/handler/chatbot"
	middlewarePkg "github.com/pensador-ai/website/backend/internal/middleware"
	"github.com/pensador-ai/website/backend/pkg/utils"
)

// NewRouter wires HTTP routes to the chatbot handler.
func NewRouter(chatbotHandler *chatbot.Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(corsOrigins))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chatbotHandler.RegisterRoutes(api)
	})

	return r
}
