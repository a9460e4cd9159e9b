package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/madeline/internal/httpserver/deps"
	"github.com/MrSnakeDoc/madeline/internal/logger"
)

type readyzResponse struct {
	Ready   bool `json:"ready"`
	Store   bool `json:"store"`
	Gateway bool `json:"gateway"`
}

// Readyz answers 200 once the store responds and the gateway is up, 503 otherwise.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeOK := pingStore(r.Context(), d) == nil
		gatewayOK := d.Gateway == nil || d.Gateway()

		res := readyzResponse{Ready: storeOK && gatewayOK, Store: storeOK, Gateway: gatewayOK}
		status := http.StatusOK
		if !res.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, res)
	}
}

func pingStore(ctx context.Context, d deps.Deps) error {
	if d.Store == nil {
		return errNoStore
	}
	ctx, cancel := context.WithTimeout(ctx, d.Timeout())
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		d.Logger.Warn("store ping failed", logger.String("driver", d.StoreDriver), logger.Error(err))
		return err
	}
	return nil
}
