package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableside/go/internal/events"
)

// JetStreamConsumerConfig holds configuration for the JetStream consumer
type JetStreamConsumerConfig struct {
	URL        string
	StreamName string
	// ConsumerPrefix names this process's consumer. Every gateway gets its
	// own consumer so each one sees every event.
	ConsumerPrefix string
	SubjectFilter  string
	MaxDeliver     int
	AckWait        time.Duration
	// InactiveThreshold lets the server remove a consumer whose gateway is gone.
	InactiveThreshold time.Duration
	// MaxAckPending stays at 1 so events are re-broadcast in stream order.
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConsumerConfig returns default JetStream consumer configuration
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:               nats.DefaultURL,
		StreamName:        "ORDER_EVENTS",
		ConsumerPrefix:    "tableside-gateway",
		SubjectFilter:     "orders.events.>",
		MaxDeliver:        5,
		AckWait:           30 * time.Second,
		InactiveThreshold: 5 * time.Minute,
		MaxAckPending:     1,
		MaxReconnects:     -1,
		ReconnectWait:     2 * time.Second,
	}
}

// errInvalidRelayedEvent marks a message that can never be processed
var errInvalidRelayedEvent = errors.New("invalid relayed event")

// Broadcaster is where relayed events are fanned out
type Broadcaster interface {
	Broadcast(ctx context.Context, env *events.Envelope) error
}

// EventConsumer consumes relayed order events and broadcasts them to observers
type EventConsumer struct {
	broadcaster Broadcaster
	nc          *nats.Conn
	js          jetstream.JetStream
	consumer    jetstream.Consumer
	config      JetStreamConsumerConfig
	name        string
}

// consumerName returns a consumer name unique to this process
func consumerName(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// NewEventConsumer connects to NATS and creates this gateway's consumer
func NewEventConsumer(ctx context.Context, broadcaster Broadcaster, config JetStreamConsumerConfig) (*EventConsumer, error) {
	name := consumerName(config.ConsumerPrefix)
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{
		broadcaster: broadcaster,
		nc:          nc,
		js:          js,
		config:      config,
		name:        name,
	}

	if err := ec.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	// Observers only care about what happens from now on; a reconnecting
	// browser gets a fresh snapshot instead of a replay.
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              ec.name,
		Durable:           ec.name,
		Description:       "Order gateway websocket consumer",
		FilterSubject:     ec.config.SubjectFilter,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		MaxDeliver:        ec.config.MaxDeliver,
		AckWait:           ec.config.AckWait,
		MaxAckPending:     ec.config.MaxAckPending,
		InactiveThreshold: ec.config.InactiveThreshold,
		ReplayPolicy:      jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", ec.name).
		Str("stream", ec.config.StreamName).
		Msg("JetStream consumer ready")

	ec.consumer = consumer
	return nil
}

// Start consumes until ctx is done
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.name).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			err := ec.processMessage(ctx, msg.Data())
			if err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("failed to process message")
			}
			settle(msg, err)
		}
	}
}

// settler is the acknowledgement side of a JetStream message
type settler interface {
	Ack() error
	Nak() error
	Term() error
}

// settle acks a processed message, terminates one that can never be
// decoded and naks one whose broadcast failed so it is redelivered.
func settle(msg settler, err error) {
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	case errors.Is(err, errInvalidRelayedEvent):
		if termErr := msg.Term(); termErr != nil {
			log.Error().Err(termErr).Msg("failed to TERM message")
		}
	default:
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error().Err(nakErr).Msg("failed to NAK message")
		}
	}
}

// processMessage decodes one relayed envelope and fans it out
func (ec *EventConsumer) processMessage(ctx context.Context, data []byte) error {
	env, err := decodeRelayed(data)
	if err != nil {
		return err
	}

	if err := ec.broadcaster.Broadcast(ctx, env); err != nil {
		return fmt.Errorf("broadcast %s: %w", env.Type, err)
	}

	log.Debug().
		Str("event_id", env.ID).
		Str("event_type", string(env.Type)).
		Msg("relayed event broadcasted")
	return nil
}

// decodeRelayed parses and checks an envelope read from the stream
func decodeRelayed(data []byte) (*events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: unmarshal envelope: %w", errInvalidRelayedEvent, err)
	}
	if _, err := events.ParsePayload(&env); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errInvalidRelayedEvent, env.Type, err)
	}
	return &env, nil
}

// Stop closes the NATS connection
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
