package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConfig holds configuration for the NATS-backed bus.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string // events publish to "<prefix>.<roomID>"
	MaxReconnects int
	ReconnectWait time.Duration
	AckWait       time.Duration
	MaxDeliver    int
}

// DefaultJetStreamConfig returns the stock configuration.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "ROOM_EVENTS",
		SubjectPrefix: "room.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
	}
}

// JetStream is a Bus backed by a NATS JetStream stream, for deployments
// where the engine and the gateway run as separate processes.
type JetStream struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStream connects to NATS and ensures the event stream exists.
func NewJetStream(ctx context.Context, config JetStreamConfig) (*JetStream, error) {
	opts := []nats.Option{
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

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      config.StreamName,
		Subjects:  []string{config.SubjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return &JetStream{nc: nc, js: js, config: config}, nil
}

func (b *JetStream) subject(roomID string) string {
	return fmt.Sprintf("%s.%s", b.config.SubjectPrefix, roomID)
}

func (b *JetStream) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := b.js.Publish(ctx, b.subject(event.RoomID), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscribe creates an ephemeral consumer for one room's subject and feeds
// decoded events to fn until the returned unsubscribe runs.
func (b *JetStream) Subscribe(roomID string, fn Handler) (func(), error) {
	ctx := context.Background()

	stream, err := b.js.Stream(ctx, b.config.StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: b.subject(roomID),
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.config.AckWait,
		MaxDeliver:    b.config.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("malformed event, dropping")
			msg.Term()
			return
		}
		fn(event)
		if err := msg.Ack(); err != nil {
			log.Error().Err(err).Msg("failed to ACK event")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}

	return func() { consumeCtx.Stop() }, nil
}

func (b *JetStream) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}
