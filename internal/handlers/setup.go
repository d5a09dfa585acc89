package handlers

import (
	"net/http"
	"time"

	"guildchat-backend/internal/accounts"
	"guildchat-backend/internal/credentials"
	"guildchat-backend/internal/invites"
	"guildchat-backend/internal/jwt"
	"guildchat-backend/internal/keyValue"
	"guildchat-backend/internal/messages"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/servers"
	"guildchat-backend/internal/snowflake"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Dependencies struct {
	Sugar         *zap.SugaredLogger
	Accounts      *accounts.Registry
	Servers       *servers.Registry
	Invites       *invites.Registry
	Messages      *messages.Registry
	Authenticator *credentials.Authenticator
	Issuer        *jwt.Issuer
	Cache         *keyValue.Store
	IDs           *snowflake.Generator
}

type Handler struct {
	sugar         *zap.SugaredLogger
	accounts      *accounts.Registry
	servers       *servers.Registry
	invites       *invites.Registry
	messages      *messages.Registry
	authenticator *credentials.Authenticator
	issuer        *jwt.Issuer
	cache         *keyValue.Store
	ids           *snowflake.Generator
	validate      *validator.Validate
}

func New(deps Dependencies) *Handler {
	return &Handler{
		sugar:         deps.Sugar,
		accounts:      deps.Accounts,
		servers:       deps.Servers,
		invites:       deps.Invites,
		messages:      deps.Messages,
		authenticator: deps.Authenticator,
		issuer:        deps.Issuer,
		cache:         deps.Cache,
		ids:           deps.IDs,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) Router(cfg *models.ConfigFile) http.Handler {
	r := chi.NewRouter()

	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Cors {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CorsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/users", h.Register)

		api.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.Login)
			r.Delete("/", h.Logout)
		})

		api.Route("/users/self", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Get("/", h.GetSelf)
			r.Put("/", h.UpdateSelf)
			r.Delete("/", h.DeleteSelf)
			r.Put("/presence", h.SetPresence)
			r.Get("/servers", h.GetServerList)
		})

		api.Route("/servers", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Post("/", h.CreateServer)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetServer)
				r.Put("/", h.UpdateServer)
				r.Delete("/", h.DeleteServer)
				r.Delete("/members/self", h.LeaveServer)
				r.Post("/invites", h.CreateInvite)
				r.Get("/invites", h.GetInviteList)
				r.Post("/messages", h.CreateMessage)
			})
		})

		api.With(h.UserVerifier).Post("/invites/{code}", h.AcceptInvite)

		api.Route("/messages/{id}", func(r chi.Router) {
			r.Use(h.UserVerifier)
			r.Get("/", h.GetMessage)
			r.Put("/", h.UpdateMessage)
			r.Delete("/", h.DeleteMessage)
		})
	})

	return r
}
