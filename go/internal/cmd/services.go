package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/tableside/go/internal/gateway"
	"github.com/mcdev12/tableside/go/internal/orders"
	"github.com/mcdev12/tableside/go/internal/relay"
	"github.com/mcdev12/tableside/go/internal/waiters"
)

type Services struct {
	Orders        *orders.App
	OrderService  *orders.Service
	Waiters       *waiters.App
	WaiterService *waiters.Service
	WaiterHTTP    *waiters.HTTPHandler
	Gateway       *gateway.Service
	Relay         *relay.JetStreamPublisher
}

// Close releases the relay connection
func (s *Services) Close() {
	if s.Relay != nil {
		s.Relay.Close()
	}
}

func setupServices(ctx context.Context, config *Config, stores *Stores) (*Services, error) {
	// Wire up dependency injection chain
	// Repository layer → App layer → Service layer, with the gateway as broadcaster
	clock := clockwork.NewRealClock()

	gatewayConfig := gateway.DefaultConfig()
	if config.Relay.Mode == RelayModeJetStream {
		consumerConfig := gateway.DefaultJetStreamConsumerConfig()
		consumerConfig.URL = config.Relay.NATSURL
		consumerConfig.ConsumerPrefix = config.Relay.ConsumerPrefix
		gatewayConfig.JetStream = &consumerConfig
	}

	services := &Services{}

	// The relay stream must exist before the gateway binds its consumer.
	var broadcaster orders.Broadcaster
	if config.Relay.Mode == RelayModeJetStream {
		relayConfig := relay.DefaultJetStreamConfig()
		relayConfig.URL = config.Relay.NATSURL
		publisher, err := relay.NewJetStreamPublisher(ctx, relayConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create relay publisher: %w", err)
		}
		services.Relay = publisher
		broadcaster = publisher
	}

	gatewayService, err := gateway.NewService(ctx, gatewayConfig, clock)
	if err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	if broadcaster == nil {
		broadcaster = gatewayService.Broadcaster()
	}

	// Orders
	engineConfig := orders.DefaultConfig()
	engineConfig.CompletedRetention = config.Snapshot.CompletedRetention
	engineConfig.BroadcastTimeout = config.Events.BroadcastTimeout
	ordersApp := orders.NewApp(stores.Orders, broadcaster, clock, engineConfig)

	// Waiters
	waitersApp := waiters.NewApp(stores.Waiters, clock, config.Waiters.PasskeyCost)

	gatewayService.Attach(ordersApp, waitersApp, clock)

	services.Orders = ordersApp
	services.OrderService = orders.NewService(ordersApp)
	services.Waiters = waitersApp
	services.WaiterService = waiters.NewService(waitersApp)
	services.WaiterHTTP = waiters.NewHTTPHandler(waitersApp)
	services.Gateway = gatewayService
	return services, nil
}
