package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dyn-warrior/TicX/internal/api"
	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/database"
	"github.com/dyn-warrior/TicX/internal/events"
	"github.com/dyn-warrior/TicX/internal/jobs"
	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/lobby"
	"github.com/dyn-warrior/TicX/internal/match"
	"github.com/dyn-warrior/TicX/internal/migrations"
	"github.com/dyn-warrior/TicX/internal/queue"
	"github.com/dyn-warrior/TicX/internal/ratelimit"
	"github.com/dyn-warrior/TicX/internal/redis"
	"github.com/dyn-warrior/TicX/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()

	// Core components
	lg := ledger.New(db)
	q := queue.New(rdb)
	limiter := ratelimit.New(rdb)
	publisher := events.NewPublisher(rdb)
	clock := match.NewRedisClock(rdb)
	matches := match.NewManager(db, cfg, lg, publisher, clock)
	lb := lobby.New(cfg, lg, q, limiter, matches)

	// Recover live matches left behind by the previous process.
	if err := matches.LoadActiveMatches(ctx); err != nil {
		log.Fatalf("Failed to recover active matches: %v", err)
	}

	// Background workers
	go match.StartMatchmakerWorker(ctx, q, matches, cfg)
	go match.StartTurnTimerWorker(ctx, rdb, matches, cfg)

	sched, err := jobs.Start(cfg, lg, q)
	if err != nil {
		log.Fatalf("Failed to start maintenance jobs: %v", err)
	}
	defer func() { _ = sched.Shutdown() }()

	// Websocket gateway + event fan-out
	gateway := ws.NewGateway(cfg, lb, matches)
	gateway.StartEventSubscriber(ctx, rdb)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, api.Deps{
		DB:      db,
		RDB:     rdb,
		Cfg:     cfg,
		Ledger:  lg,
		Queue:   q,
		Lobby:   lb,
		Matches: matches,
		Gateway: gateway,
	})

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting TicX server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
