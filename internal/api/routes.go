package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/dyn-warrior/TicX/internal/api/handlers"
	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/lobby"
	"github.com/dyn-warrior/TicX/internal/match"
	"github.com/dyn-warrior/TicX/internal/middleware"
	"github.com/dyn-warrior/TicX/internal/queue"
	"github.com/dyn-warrior/TicX/internal/ws"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	DB      *sqlx.DB
	RDB     *redis.Client
	Cfg     *config.Config
	Ledger  *ledger.Ledger
	Queue   *queue.Queue
	Lobby   *lobby.Lobby
	Matches *match.Manager
	Gateway *ws.Gateway
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	router.Use(middleware.CORS(d.Cfg))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(d.DB, d.RDB))

		auth := v1.Group("/auth")
		{
			auth.POST("/register", handlers.Register(d.DB, d.Cfg))
			auth.POST("/login", handlers.Login(d.DB, d.Cfg))
		}

		// Websocket upgrade authenticates itself via token query param.
		v1.GET("/ws", d.Gateway.Handle())

		v1.GET("/users/:id/stats", handlers.GetStats(d.DB))

		authed := v1.Group("")
		authed.Use(middleware.Auth(d.Cfg))
		{
			wallet := authed.Group("/wallet")
			{
				wallet.GET("", handlers.GetWallet(d.Ledger))
				wallet.POST("/deposit", handlers.Deposit(d.Ledger))
				wallet.GET("/transactions", handlers.GetTransactions(d.Ledger))
			}

			q := authed.Group("/queue")
			{
				q.POST("/join", handlers.JoinQueue(d.Lobby))
				q.POST("/leave", handlers.LeaveQueue(d.Lobby))
				q.GET("/status", handlers.QueueStatus(d.Queue))
			}

			matches := authed.Group("/matches")
			{
				matches.GET("/:id", handlers.GetMatch(d.DB, d.Matches))
				matches.GET("", handlers.GetMatchHistory(d.DB))
				matches.POST("/singleplayer", handlers.SubmitSinglePlayer(d.Matches))
			}
		}
	}
}
