package inbox

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/inbox", func(r chi.Router) {
		r.Get("/conversations", h.ListConversations)
		r.Post("/conversations", h.OpenChat)
		r.Get("/conversations/{sessionID}", h.GetConversation)
		r.Post("/conversations/{sessionID}/select", h.SelectConversation)
		r.Post("/conversations/{sessionID}/send", h.Send)
		r.Post("/conversations/{sessionID}/takeover", h.RequestTakeover)
		r.Post("/conversations/{sessionID}/release", h.Release)
		r.Get("/conversations/{sessionID}/takeover-status", h.TakeoverStatus)
		r.Get("/filter", h.GetFilter)
		r.Put("/filter", h.PutFilter)
		r.Post("/refresh", h.Refresh)
	})
}
