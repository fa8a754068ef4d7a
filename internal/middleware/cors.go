package middleware

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dyn-warrior/TicX/internal/config"
)

// CORS returns the cross-origin policy for the REST surface.
func CORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With",
		},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Environment == "production" {
		origins := []string{}
		if cfg.FrontendURL != "" {
			origins = append(origins, cfg.FrontendURL)
		}
		corsConfig.AllowOrigins = origins
		log.Printf("[CORS] Production allowed origins: %v", origins)
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			cfg.FrontendURL,
		}
	}

	return cors.New(corsConfig)
}
