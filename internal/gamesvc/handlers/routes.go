package handlers

import (
	"github.com/go-chi/chi"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/identity"
)

func (h *Handler) SetRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)

		// identity is optional on every route; handlers decide
		r.Group(func(r chi.Router) {
			r.Use(identity.Optional(h.tokenAuth))

			r.Get("/daily/seed", h.DailySeed)
			r.Get("/daily/status", h.DailyStatus)
			r.Post("/daily/score", h.SubmitDailyScore)
			r.Get("/daily/stats", h.DailyStats)

			r.Post("/scores", h.SubmitScore)

			r.Post("/cards", h.RecordCards)
			r.Get("/cards/stats", h.CardStats)

			r.Post("/rooms", h.CreateRoom)
			r.Post("/rooms/join", h.JoinRoom)
		})
	})
}
