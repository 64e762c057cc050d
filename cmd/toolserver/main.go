// medichat-toolserver speaks JSON-RPC on stdin/stdout and is meant to
// be spawned by the backend's bridge client, not run by hand. All
// logging goes to stderr; stdout carries only protocol traffic.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"medichat-backend/internal/config"
	"medichat-backend/internal/services"
	"medichat-backend/internal/toolserver"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("[toolserver] ")

	cfg := config.LoadToolServer()

	watsonx := services.NewWatsonxService(
		cfg.WatsonxAPIKey,
		cfg.WatsonxURL,
		cfg.ProjectID,
		cfg.ModelID,
		cfg.ConcurrentReqs,
	)

	srv := toolserver.New(watsonx, toolserver.Info{
		Name:      cfg.ServerName,
		Version:   cfg.ServerVersion,
		ModelID:   cfg.ModelID,
		ProjectID: cfg.ProjectID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("serving tools for model %s", cfg.ModelID)
	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil && err != context.Canceled {
		log.Fatalf("server error: %v", err)
	}
}
