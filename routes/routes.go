package routes

import (
	"github.com/Dosada05/rating-system/handlers"
	"github.com/Dosada05/rating-system/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	ratingHandler *handlers.RatingHandler,
	matchHandler *handlers.MatchHandler,
	registrationHandler *handlers.RegistrationHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Публичное read-API
	router.Get("/players/{playerID}/rating", ratingHandler.GetPlayerRatingHandler)
	router.Get("/players/{playerID}/rating/history", ratingHandler.GetPlayerHistoryHandler)
	router.Get("/leaderboard", ratingHandler.LeaderboardHandler)

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Get("/matches", matchHandler.ListTournamentMatchesHandler)
		r.Get("/registrations", registrationHandler.ListTournamentRegistrationsHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Post("/registrations", registrationHandler.RegisterHandler)
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/", matchHandler.GetMatchHandler)

		// Отчёты о счёте - только организатор или назначенный судья.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Post("/report", matchHandler.BeginReportHandler)
			r.Post("/score", matchHandler.SubmitScoreHandler)
			r.Post("/finalize", matchHandler.FinalizeHandler)
			r.Post("/dispute", matchHandler.DisputeHandler)
			r.Post("/resolve", matchHandler.ResolveHandler)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Delete("/registrations/{registrationID}", registrationHandler.UnregisterHandler)
	})

	// Живой канал
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeTournament)
	router.Get("/ws/tournaments/{tournamentID}/matches/{matchID}", webSocketHandler.ServeMatch)
}
