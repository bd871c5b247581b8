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

	"shopsphere/storefront/internal/config"
	"shopsphere/storefront/internal/handler"
	"shopsphere/storefront/internal/repository"
	"shopsphere/storefront/internal/service"
	"shopsphere/storefront/internal/service/gemini"
	"shopsphere/storefront/internal/service/marketplace"
	"shopsphere/storefront/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup local state
	ctx := context.Background()
	var store storage.Store
	switch cfg.State.Backend {
	case config.BackendPostgres:
		dbPool, err := pgxpool.New(ctx, cfg.State.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}
		repo := repository.NewStateRepository(dbPool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare state table: %v", err)
		}
		if keys, err := repo.Keys(ctx); err == nil {
			fmt.Printf("Connected to database, %d stored keys\n", len(keys))
		}
		store = repo
	default:
		fileStore, err := storage.NewFile(cfg.State.Dir)
		if err != nil {
			log.Fatalf("Failed to open state directory: %v", err)
		}
		store = fileStore
	}

	// 3. Setup Logic
	client := marketplace.NewClient(marketplace.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	})

	sessions := service.NewSessionService(client, store)
	if err := sessions.Load(ctx); err != nil {
		log.Fatalf("Failed to restore session: %v", err)
	}

	cart := service.NewCartService(store)
	if err := cart.Load(ctx); err != nil {
		log.Fatalf("Failed to restore cart: %v", err)
	}

	catalog := service.NewCatalogService(client, sessions)
	if err := catalog.Refresh(ctx); err != nil {
		// The gateway still serves the cart and session while the marketplace is down.
		log.Printf("Initial catalog load failed: %v", err)
	}

	chat := service.NewChatService(client, sessions, cfg.ChatPollInterval)
	defer chat.CloseAll()

	var generator service.TextGenerator
	if cfg.Gemini.APIKey != "" {
		geminiClient, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Printf("AI descriptions disabled: %v", err)
		} else {
			defer geminiClient.Close()
			generator = geminiClient
		}
	}

	h := handler.NewHandler(handler.Deps{
		Sessions:     sessions,
		Cart:         cart,
		Catalog:      catalog,
		Chat:         chat,
		Descriptions: service.NewDescriptionService(generator),
	})

	// 4. Setup Server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: h,
	}

	// 5. Run Server with Graceful Shutdown
	go func() {
		fmt.Printf("Starting server on port %s\n", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("Shutting down server...")

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chat.CloseAll()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	fmt.Println("Server exiting")
}
