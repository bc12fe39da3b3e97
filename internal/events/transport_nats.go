// Concord - Realtime Vote and Presence Sync for Community Idea Boards
// Copyright 2026 J. Mercer (jmercer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmercer/concord

//go:build nats

package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/jmercer/concord/internal/config"
)

// newNATSTransport wires a JetStream-backed Pub/Sub, optionally starting an
// embedded NATS server first so a single binary still needs no external
// broker. The sync stream is provisioned by the subscriber side.
func newNATSTransport(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	t := &Transport{}

	url := cfg.URL
	if cfg.EmbeddedServer {
		srv, err := newEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		url = srv.ClientURL()
		t.closers = append(t.closers, func() error {
			srv.Shutdown()
			return nil
		})
		logger.Info("Embedded NATS server started", watermill.LogFields{
			"url": url,
		})
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	t.publisher = pub
	t.closers = append(t.closers, pub.Close)

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: "concord-sync",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			DurablePrefix: "concord",
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.DeliverNew(),
				natsgo.AckExplicit(),
			},
		},
	}, logger)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}
	t.subscriber = sub
	t.closers = append(t.closers, sub.Close)

	return t, nil
}

// embeddedServer wraps an in-process NATS server with JetStream enabled.
type embeddedServer struct {
	server *server.Server
}

func newEmbeddedServer(cfg config.EventsConfig) (*embeddedServer, error) {
	opts := &server.Options{
		ServerName:         "concord-events",
		Host:               "127.0.0.1",
		Port:               -1,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoLog:              true,
		MaxPayload:         1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}

	return &embeddedServer{server: ns}, nil
}

// ClientURL returns the connection URL for in-process clients.
func (s *embeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// Shutdown stops the server and waits for it to drain.
func (s *embeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
