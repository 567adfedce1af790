package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/aurellebeauty/aurelle-backend/api/responses"
	"github.com/aurellebeauty/aurelle-backend/pkg/config"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

const readyProbeTimeout = 3 * time.Second

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Aurelle-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies and reports per-component state.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis, pubsub pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Aurelle-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()

		components := map[string]string{}
		healthy := true
		for name, dep := range map[string]pinger{
			"postgres": db,
			"redis":    redis,
			"pubsub":   pubsub,
		} {
			if dep == nil {
				components[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				components[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "component", name), "readiness probe failed", err)
				}
				continue
			}
			components[name] = "up"
		}

		payload := map[string]any{
			"status":     "ready",
			"components": components,
		}
		if !healthy {
			payload["status"] = "degraded"
			responses.WriteSuccessStatus(w, http.StatusServiceUnavailable, payload)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}
