package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"presenter/internal/api"
	"presenter/internal/store"
	"presenter/internal/utils"
)

func New(log *utils.Logger, st store.Store, allowedOrigin string) http.Handler {
	return NewWithHandlers(api.NewHandlers(log, st), allowedOrigin)
}

func NewWithHandlers(h *api.Handlers, allowedOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.Get("/api/v1/healthz", h.Health)

	r.Get("/api/v1/presentations", h.ListPresentations)
	r.Post("/api/v1/presentations", h.CreatePresentation)
	r.Get("/api/v1/presentations/role", h.GetMyRole)
	r.Get("/api/v1/presentations/{id}", h.GetPresentation)
	r.Post("/api/v1/presentations/{id}/join", h.JoinPresentation)
	r.Get("/api/v1/presentations/{id}/slides", h.ListSlides)
	r.Post("/api/v1/presentations/{id}/slides", h.AddSlide)
	r.Get("/api/v1/presentations/{id}/slides/{slideId}", h.GetSlide)
	r.Delete("/api/v1/slides/{slideId}", h.RemoveSlide)

	r.Get("/ws/presentations", h.PresentationWS)

	return r
}
