// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package api

import (
	"net/http"
	"time"

	"github.com/jmercer/concord/internal/models"
)

// version is reported by the health endpoint. Release builds override it
// via -ldflags "-X github.com/jmercer/concord/internal/api.version=...".
var version = "dev"

// Health handles GET /health.
//
// Reports whether sync traffic would succeed right now: the store must
// serve transactions and the event publisher's circuit must not be open.
// The hub counters are informational and never degrade the status; an
// idle deployment with zero clients is healthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	storeHealthy := h.store != nil && h.store.Healthy()

	status := "healthy"
	if !storeHealthy {
		status = "degraded"
	}

	breaker := ""
	if h.publisher != nil {
		breaker = h.publisher.BreakerState()
		if breaker == "open" {
			status = "degraded"
		}
	}

	health := models.HealthStatus{
		Status:        status,
		Version:       version,
		StoreHealthy:  storeHealthy,
		EventBreaker:  breaker,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		health.ConnectedClients = h.hub.GetClientCount()
		health.ActiveRooms = h.hub.RoomCount()
	}

	respondSuccess(w, http.StatusOK, health)
}

// HealthLive handles GET /health/live.
// Answers 200 whenever the process is up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /health/ready.
// Answers 200 only when the store can serve transactions; 503 otherwise,
// so a load balancer stops routing before requests start failing.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.store == nil || !h.store.Healthy() {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status: "error",
			Data: map[string]interface{}{
				"ready": false,
			},
			Metadata: models.Metadata{
				Timestamp: time.Now(),
			},
			Error: &models.APIError{
				Code:    "NOT_READY",
				Message: "store is not accepting transactions",
			},
		})
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"ready": true,
	})
}
