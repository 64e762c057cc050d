package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medichat-backend/internal/bridge"
	"medichat-backend/internal/config"
	"medichat-backend/internal/handlers"
	"medichat-backend/internal/history"
	"medichat-backend/internal/middleware"
	"medichat-backend/internal/router"
	"medichat-backend/internal/websocket"
)

func main() {
	log.Println("🏥 Starting Medichat Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Start Tool Subprocess Bridge ────
	assistant := bridge.NewClient(cfg.ToolServerCommand, nil,
		time.Duration(cfg.BridgeCallTimeoutSec)*time.Second)

	startCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	if err := assistant.Start(startCtx); err != nil {
		cancel()
		log.Fatalf("✗ Tool subprocess failed to start: %v", err)
	}
	cancel()
	defer assistant.Shutdown()
	log.Println("✓ Tool subprocess connected")

	// ──── Step 3: Initialize Session Auth ────
	sessionAuth := middleware.NewSessionAuth(cfg.SessionSecret)

	// ──── Step 4: Initialize Conversation Store ────
	store := history.NewStore(cfg.MaxHistoryChars)

	// ──── Step 5: Start WebSocket Hub ────
	wsHub := websocket.NewHub(sessionAuth)
	store.OnAppend = wsHub.NotifyMessage
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(assistant, store, sessionAuth)
	apiHandler := handlers.NewAPIHandler(assistant, store)
	conversationHandler := handlers.NewConversationHandler(assistant, store)
	healthHandler := handlers.NewHealthHandler(assistant)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		sessionAuth,
		chatHandler,
		apiHandler,
		conversationHandler,
		healthHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Chat turns wait on the model
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		if err := assistant.Shutdown(); err != nil {
			log.Printf("Bridge shutdown: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Medichat Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  Chat: http://localhost:%s/", cfg.Port)
	log.Printf("  API:  http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:   ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
