package api

import (
	"net/http"
	"time"

	"codegrade/internal/api/handler"
	"codegrade/internal/app/service"
	"codegrade/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	submissionService *service.SubmissionService,
	resultService *service.ResultService,
	resultToken string,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// JWT Auth Middleware Setup
	// Verifies a token found in "Authorization: Bearer T" and puts claims in
	// context; enforcement happens in middleware.Authenticator on the routes
	// that need it.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(apiRouter chi.Router) {
		// Auth routes (public)
		authHandler := handler.NewAuthHandler(authService)
		apiRouter.Group(func(publicAuth chi.Router) {
			authHandler.RegisterRoutes(publicAuth)
		})

		// Submission routes (authenticated)
		submissionHandler := handler.NewSubmissionHandler(submissionService)
		apiRouter.Route("/submissions", submissionHandler.RegisterRoutes)

		// Runner result callback (shared-secret protected)
		internalHandler := handler.NewInternalHandler(resultService, resultToken)
		apiRouter.Route("/internal", internalHandler.RegisterRoutes)
	})

	return r
}
