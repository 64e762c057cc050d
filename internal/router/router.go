package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"medichat-backend/internal/handlers"
	"medichat-backend/internal/middleware"
	"medichat-backend/internal/websocket"
)

func New(
	sessionAuth *middleware.SessionAuth,
	chatHandler *handlers.ChatHandler,
	apiHandler *handlers.APIHandler,
	conversationHandler *handlers.ConversationHandler,
	healthHandler *handlers.HealthHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Assistant rate limiter (30 req/min per IP): every chat turn is a
	// model call.
	chatLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Health check
	r.Get("/health", healthHandler.Health)
	r.Get("/help", conversationHandler.Help)

	// ──── Web Chat UI ────
	r.Group(func(r chi.Router) {
		r.Use(sessionAuth.EnsureSession)
		r.Get("/", chatHandler.Page)

		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", chatHandler.Send)
			r.Post("/analyze", chatHandler.Analyze)
			r.Post("/conversation/summary", conversationHandler.Summary)
			r.Post("/conversation/clear", conversationHandler.Clear)
		})
	})

	// ──── JSON API ────
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(sessionAuth.EnsureSession)

		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", apiHandler.Chat)
			r.Post("/analyze", apiHandler.Analyze)
		})

		r.Get("/greeting/{name}", conversationHandler.Greeting)
		r.Get("/server-info", conversationHandler.ServerInfo)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
