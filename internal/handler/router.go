package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/OspreyFly/fuzzy-phids-backend/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware магазина насекомых.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/insects", func(r chi.Router) {
		r.Post("/", h.CreateInsect)
		r.Get("/", h.ListInsects)
		r.Get("/{id}", h.GetInsect)
		r.Patch("/{id}", h.UpdateInsect)
		r.Delete("/{id}", h.DeleteInsect)
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Get("/{id}/total", h.GetOrderTotal)
		r.Delete("/{id}", h.DeleteOrder)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Get("/", h.ListUsers)
		r.Get("/{username}", h.GetUser)
		r.Patch("/{username}", h.UpdateUser)
		r.Delete("/{username}", h.DeleteUser)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
