package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smite-tools/draft-server/internal/registry"
	"github.com/smite-tools/draft-server/internal/ws"
)

func SetupRoutes(reg *registry.Registry, wsOpts ws.Options) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", Health(reg))
	r.Get("/room/{id}", RoomInfo(reg))
	r.Get("/ws", ws.Handler(wsOpts))
	return r
}
