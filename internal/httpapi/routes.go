package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nchavez4/monster-arena-backend/internal/auth"
	"github.com/nchavez4/monster-arena-backend/internal/hub"
	"github.com/nchavez4/monster-arena-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, users *auth.UserStore, tokens *auth.Service,
	corsOrigin string, log *zap.Logger) http.Handler {

	api := NewAPI(users, tokens, log)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Post("/api/auth/register", api.Register)
	r.Post("/api/auth/login", api.Login)
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", ws.Handler(h, tokens, log))
	return r
}
