package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/madeline/internal/httpserver/deps"
)

var errNoStore = errors.New("store not initialized")

type componentStatus struct {
	OK        bool   `json:"ok"`
	Driver    string `json:"driver,omitempty"`
	Bookmarks *int64 `json:"bookmarks,omitempty"`
	Sessions  *int   `json:"sessions,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of each component the bot depends on.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":   checkStore(r.Context(), d),
			"gateway": {OK: d.Gateway == nil || d.Gateway()},
		}
		if d.Sessions != nil {
			n := d.Sessions()
			components["paginator"] = componentStatus{OK: true, Sessions: &n}
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
		})
	}
}

func overallStatus(components map[string]componentStatus) string {
	// Without storage no bookmark command works.
	if s, ok := components["store"]; ok && !s.OK {
		return "critical"
	}
	if g, ok := components["gateway"]; ok && !g.OK {
		return "degraded"
	}
	return "ok"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	status := componentStatus{Driver: d.StoreDriver}
	if err := pingStore(ctx, d); err != nil {
		status.Error = err.Error()
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout())
	defer cancel()
	n, err := d.Store.Count(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.OK = true
	status.Bookmarks = &n
	return status
}
