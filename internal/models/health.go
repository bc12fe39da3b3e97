// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package models

// HealthStatus is the payload of GET /health.
//
// Status is "healthy" when the store serves transactions and the event
// publisher's circuit is closed, "degraded" otherwise. The process itself
// being up is what the liveness probe reports; this endpoint reports
// whether sync traffic would actually succeed.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	StoreHealthy     bool    `json:"storeHealthy"`
	EventBreaker     string  `json:"eventBreaker,omitempty"`
	ConnectedClients int     `json:"connectedClients"`
	ActiveRooms      int     `json:"activeRooms"`
	UptimeSeconds    float64 `json:"uptimeSeconds"`
}
