package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/teamtrack/teamtrack/handlers"
	"github.com/teamtrack/teamtrack/middleware"
)

// SetupRoutes wires every endpoint onto the router. Sign-in endpoints are
// public; everything else requires a bearer token.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	teamHandler *handlers.TeamHandler,
	sessionHandler *handlers.SessionHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/request-code", authHandler.RequestCode)
	router.Post("/auth/verify", authHandler.VerifySignIn)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetMe)
			r.Get("/", userHandler.ListDirectory)
			r.Get("/{userID}", userHandler.GetUserByID)
			r.Patch("/{userID}", userHandler.UpdateProfile)
			r.Put("/{userID}/photo", userHandler.UploadPhoto)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Get("/", teamHandler.ListTeams)
			r.Get("/mine", teamHandler.ListMyTeams)
			r.Post("/", teamHandler.CreateTeam)

			r.Route("/{teamID}", func(r chi.Router) {
				r.Get("/", teamHandler.GetTeamByID)
				r.Patch("/", teamHandler.UpdateTeamDetails)
				r.Delete("/", teamHandler.DeleteTeam)
				r.Put("/image", teamHandler.UploadTeamImage)

				r.Post("/applications", teamHandler.Apply)
				r.Delete("/applications", teamHandler.WithdrawApplication)
				r.Post("/applications/{userID}/approve", teamHandler.Approve)
				r.Delete("/applications/{userID}", teamHandler.Deny)

				r.Put("/members/{userID}", teamHandler.AddMember)
				r.Delete("/members/{userID}", teamHandler.RemoveMember)
				r.Put("/captains/{userID}", teamHandler.PromoteCaptain)
				r.Delete("/captains/{userID}", teamHandler.DemoteCaptain)
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.ListSessions)
			r.Post("/", sessionHandler.CreateSession)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSessionByID)
				r.Patch("/", sessionHandler.UpdateSession)
				r.Delete("/", sessionHandler.DeleteSession)

				r.Put("/attending", sessionHandler.SetAttending)
				r.Put("/available", sessionHandler.SetAvailable)
				r.Put("/picks/{userID}", sessionHandler.PickTeam)

				r.Get("/roster", sessionHandler.GetRoster)
				r.Get("/register.xlsx", sessionHandler.ExportRegister)
			})
		})

		r.Get("/ws/teams/{teamID}", webSocketHandler.ServeWs)
	})
}
