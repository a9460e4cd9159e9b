package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/madeline/internal/httpserver/deps"
	"github.com/MrSnakeDoc/madeline/internal/httpserver/handlers"
)

func init() { Register(registerHealthz) }

// Liveness stays open so orchestrators can reach it.
func registerHealthz(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
}
