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

	"bireader-backend/internal/config"
	"bireader-backend/internal/database"
	"bireader-backend/internal/handlers"
	"bireader-backend/internal/middleware"
	"bireader-backend/internal/repository"
	"bireader-backend/internal/router"
	"bireader-backend/internal/services"
	"bireader-backend/internal/websocket"
	"bireader-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting BiReader Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(database.RedisOptions{
		URL:     cfg.RedisURL,
		Timeout: cfg.RedisTimeout,
		Workers: cfg.WorkerCount,
	})
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	articleRepo := repository.NewArticleRepo(pool)
	sessionRepo := repository.NewReadingSessionRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	publisher := services.NewRedisPublisher(redisClients.Client)
	authService := services.NewAuthService(userRepo, redisClients.Client, jwtAuth, cfg.ReadingDefaults())
	readingService := services.NewReadingService(sessionRepo, articleRepo, userRepo, publisher)

	var queue services.JobQueue
	if cfg.WorkerCount > 0 {
		queue = services.NewRedisQueue(redisClients.Client)
	}
	articleService := services.NewArticleService(articleRepo, jobRepo, queue)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userRepo)
	articleHandler := handlers.NewArticleHandler(articleService)
	readingHandler := handlers.NewReadingSessionHandler(readingService)
	jobHandler := handlers.NewJobHandler(jobRepo)

	// ──── Step 5: Start Job Worker Pool ────
	var workerPool *worker.Pool
	if cfg.WorkerCount > 0 {
		workerPool = worker.NewPool(redisClients.Client, articleService, jobRepo, publisher, cfg.WorkerCount)
		workerPool.Start()
		log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)
	} else {
		log.Println("✓ Worker pool disabled, articles align inline")
	}

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		userHandler,
		articleHandler,
		readingHandler,
		jobHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		if workerPool != nil {
			workerPool.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ BiReader Backend ready on http://localhost:%s (%s)", cfg.Port, cfg.Env)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
