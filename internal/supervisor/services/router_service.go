// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

package services

import (
	"context"
)

// EventRouter interface matches *events.Router's blocking run loop.
//
// This interface allows the EventRouterService to work with the router
// without importing the events package.
//
// Satisfied by *events.Router from internal/events/router.go:
//   - Run(ctx context.Context) error
type EventRouter interface {
	Run(ctx context.Context) error
}

// EventRouterService wraps the event router as a supervised service.
//
// The router drives the bus subscription that feeds broadcasts into the
// WebSocket hub. Its Run method blocks until the context is canceled, so
// this wrapper simply delegates. A supervisor restart re-establishes the
// subscription; events published while the router was down are not
// replayed, clients recover by snapshot refetch.
//
// Example usage:
//
//	router, _ := events.NewRouter(cfg, logger)
//	svc := services.NewEventRouterService(router)
//	tree.AddMessagingService(svc)
type EventRouterService struct {
	router EventRouter
	name   string
}

// NewEventRouterService creates a new event router service wrapper.
func NewEventRouterService(router EventRouter) *EventRouterService {
	return &EventRouterService{
		router: router,
		name:   "event-router",
	}
}

// Serve implements suture.Service by delegating to router.Run.
func (s *EventRouterService) Serve(ctx context.Context) error {
	return s.router.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *EventRouterService) String() string {
	return s.name
}
