package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"spindb/api/internal/app"
	"spindb/api/internal/config"
	"spindb/api/internal/discord"
	"spindb/api/internal/moderation"
	"spindb/api/internal/search"
	"spindb/api/internal/session"
	"spindb/api/internal/store"
)

// searchIndexer adapts the search service to the moderation engine, which
// indexes newly materialized equipment fire-and-forget.
type searchIndexer struct {
	search *search.Service
}

func (i searchIndexer) IndexEquipment(item store.Equipment) {
	i.search.IndexEquipment(search.EquipmentRecord{
		ID:       item.ID,
		Slug:     item.Slug,
		Name:     item.Name,
		Brand:    item.Brand,
		Category: item.Category,
	})
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	engine := moderation.New(dataStore).WithIndexer(searchIndexer{search: searchService})

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		service = app.NewWithSessionStore(cfg, dataStore, redisStore, engine, searchService)
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
		service = app.New(cfg, dataStore, engine, searchService)
	}

	if strings.TrimSpace(cfg.DiscordPublicKey) != "" {
		verifier, err := discord.NewVerifier(cfg.DiscordPublicKey)
		if err != nil {
			log.Fatalf("discord public key rejected: %v", err)
		}
		gateway := discord.NewGateway(engine, searchService, cfg.DiscordModeratorRoles)
		service.WithVerifier(verifier).WithGateway(gateway)
	} else {
		log.Printf("DISCORD_PUBLIC_KEY not set, interaction endpoint disabled")
	}
	if strings.TrimSpace(cfg.DiscordWebhookURL) != "" {
		service.WithNotifier(discord.NewNotifier(cfg.DiscordWebhookURL))
	}

	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("SpinDB API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
