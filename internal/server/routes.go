package server

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/swaggest/swgui/v5emb"

	"github.com/brainduel/api/internal/game"
)

func addRoutes(r chi.Router, logger *slog.Logger, svc *game.Service, store *game.Store, db *sql.DB, rdb *redis.Client) {
	broker := NewBroker()

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("BrainDuel API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db, rdb))

	// Player routes — Bearer token resolved by playerAuthMiddleware.
	r.Route("/api", func(r chi.Router) {
		r.Use(playerAuthMiddleware(store))

		r.Post("/sessions", handleStartSession(logger, svc))
		r.Post("/sessions/{sessionID}/answer", handleSubmitAnswer(logger, svc, broker))

		r.Post("/duels", handleCreateDuel(logger, svc))
		r.Post("/duels/join", handleJoinDuel(logger, svc, broker))
		r.Get("/duels/{duelID}", handleGetDuel(logger, svc))
		r.Post("/duels/{duelID}/round", handleStartRound(logger, svc))
		r.Post("/duels/{duelID}/cancel", handleCancelDuel(logger, svc))
		r.Post("/duels/{duelID}/repost", handleRepostDuel(logger, svc))
		r.Post("/duels/{duelID}/rematch", handleRematch(logger, svc))
		r.Get("/duels/{duelID}/events", handleDuelEvents(logger, svc, broker))

		r.Post("/series", handleCreateSeries(logger, svc))
		r.Get("/series/{seriesID}", handleGetSeries(logger, svc))
		r.Post("/series/{seriesID}/next", handleSeriesNextGame(logger, svc))
	})

	// Admin routes — cookie session auth.
	r.Post("/api/admin/login", handleAdminLogin(db))
	r.Post("/api/admin/logout", handleAdminLogout(db))
	r.Get("/api/admin/me", handleAdminMe(db))
	r.Route("/api/admin/duels", func(r chi.Router) {
		r.Use(adminAuthMiddleware(db))
		r.Get("/overdue", handleAdminOverdueDuels(logger, store))
		r.Post("/reap", handleAdminRunReaper(logger, svc))
	})
}
