package routes

import (
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/identity"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/socketsvc/handlers"
)

func SetRoutes(r chi.Router, h *handlers.Handler, tokenAuth *jwtauth.JWTAuth) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		// browsers cannot set headers on a websocket, so ?token= is read too
		r.Group(func(r chi.Router) {
			r.Use(identity.Optional(tokenAuth))
			r.Get("/ws", h.HandleWebSocket)
		})
	})
}
