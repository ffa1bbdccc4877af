package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableside/go/internal/countdown"
	"github.com/mcdev12/tableside/go/internal/models"
	"github.com/mcdev12/tableside/go/internal/orders"
)

// Engine is everything the gateway needs from the lifecycle engine
type Engine interface {
	orders.OrdersApp
	SnapshotSource
	CurrentOrders(ctx context.Context) ([]*models.Order, error)
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	// JetStream enables relay mode: observers are fed from the stream
	// instead of directly by the engine. Nil means direct mode.
	JetStream *JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// Service is the synchronization gateway: websocket observers, client
// commands and the polling state endpoints
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	eventConsumer     *EventConsumer
}

// NewService creates the connection manager. The engine is attached
// afterwards with Attach because it needs the manager as its broadcaster.
func NewService(ctx context.Context, config Config, clock clockwork.Clock) (*Service, error) {
	cm := NewConnectionManager(config.ConnectionConfig, clock)

	s := &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
	}

	if config.JetStream != nil {
		consumer, err := NewEventConsumer(ctx, cm, *config.JetStream)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.eventConsumer = consumer
	}

	return s, nil
}

// Broadcaster returns the fan-out side, used by the engine in direct mode
func (s *Service) Broadcaster() *ConnectionManager {
	return s.connectionManager
}

// Attach wires the engine and the waiter directory into the gateway
func (s *Service) Attach(engine Engine, directory WaiterDirectory, clock clockwork.Clock) {
	s.connectionManager.SetSnapshotSource(engine)
	s.connectionManager.SetCommandDispatcher(NewCommandHandler(engine, directory))
	s.stateHandler = NewStateHandler(engine, countdown.NewCalculator(clock))
}

// Start runs the gateway until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("relay", s.eventConsumer != nil).Msg("starting order gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("order gateway service shutting down")
	return s.Stop()
}

// Stop releases the relay connection. The connection manager stops with its context.
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("order gateway service stopped")
	return nil
}

// RegisterRoutes registers the websocket and state routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	if s.stateHandler != nil {
		s.stateHandler.RegisterStateRoutes(mux)
	}
	log.Info().Msg("order gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
