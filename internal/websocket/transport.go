// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package websocket

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/switchboard/internal/config"
	"github.com/tomtom215/switchboard/internal/logging"
)

// Transport is the pub/sub pair the broadcast relay runs over.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	name       string
	closers    []func() error
}

// Name identifies the transport in logs.
func (t *Transport) Name() string { return t.name }

// Close releases the publisher and subscriber.
func (t *Transport) Close() error {
	var errs []error
	for _, c := range t.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NATSOptions tunes the NATS connection used by the relay.
type NATSOptions struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

// DefaultNATSOptions reconnects forever every two seconds.
func DefaultNATSOptions(url string) NATSOptions {
	return NATSOptions{
		URL:           url,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		CloseTimeout:  10 * time.Second,
	}
}

// WatermillLogger adapts the global zerolog logger for watermill.
func WatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// NewGoChannelTransport returns an in-process transport for a single
// gateway instance.
func NewGoChannelTransport(logger watermill.LoggerAdapter) *Transport {
	if logger == nil {
		logger = WatermillLogger()
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: defaultSendBuffer}, logger)
	return &Transport{
		Publisher:  pubsub,
		Subscriber: pubsub,
		name:       config.TransportLocal,
		closers:    []func() error{pubsub.Close},
	}
}

// NewNATSTransport connects the relay to core NATS. JetStream stays
// disabled and no queue group is used, so every instance receives every
// broadcast.
func NewNATSTransport(opts NATSOptions, logger watermill.LoggerAdapter) (*Transport, error) {
	if logger == nil {
		logger = WatermillLogger()
	}
	if opts.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(opts.MaxReconnects),
		natsgo.ReconnectWait(opts.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Broadcast relay disconnected from NATS", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Broadcast relay reconnected to NATS", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}
	jetStream := wmNats.JetStreamConfig{Disabled: true}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         opts.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   jetStream,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              opts.URL,
		SubscribersCount: 1,
		CloseTimeout:     opts.CloseTimeout,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        jetStream,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Transport{
		Publisher:  pub,
		Subscriber: sub,
		name:       config.TransportNATS,
		closers:    []func() error{sub.Close, pub.Close},
	}, nil
}

// NewTransportFromConfig picks the transport named by cfg. natsURL
// overrides cfg.NATSURL, for an embedded server started at runtime.
func NewTransportFromConfig(cfg config.BroadcastConfig, natsURL string) (*Transport, error) {
	switch cfg.Transport {
	case config.TransportLocal, "":
		return NewGoChannelTransport(nil), nil
	case config.TransportNATS:
		if natsURL == "" {
			natsURL = cfg.NATSURL
		}
		return NewNATSTransport(DefaultNATSOptions(natsURL), nil)
	default:
		return nil, fmt.Errorf("unknown broadcast transport %q", cfg.Transport)
	}
}
