package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
	ExcludeTypes    []EventType   // Event types that never leave the process
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "PRACTICE_EVENTS",
		SubjectPrefix:   "practice.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
		ExcludeTypes:    []EventType{EventTypeTimerTick},
	}
}

// Subject returns the subject an event type is published on.
func (c JetStreamConfig) Subject(eventType EventType) string {
	return fmt.Sprintf("%s.%s", c.SubjectPrefix, eventType)
}

type JetStreamPublisher struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	config   JetStreamConfig
	excluded map[EventType]bool
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	excluded := make(map[EventType]bool, len(cfg.ExcludeTypes))
	for _, t := range cfg.ExcludeTypes {
		excluded[t] = true
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg, excluded: excluded}

	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

// streamConfig describes the stream every practice subject is captured by.
func (c JetStreamConfig) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        c.StreamName,
		Description: "Practice session lifecycle events",
		Subjects:    []string{c.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      c.MaxAge,
		MaxMsgs:     c.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    c.Replicas,
		Duplicates:  c.DuplicateWindow,
	}
}

// ensureStream creates the stream on first use and reconciles its limits when
// the configuration drifted.
func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	want := p.config.streamConfig()

	stream, err := p.js.Stream(ctx, want.Name)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err := p.js.CreateStream(ctx, want); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", want.Name).Strs("subjects", want.Subjects).Msg("created JetStream stream")
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !streamDrifted(info.Config, want) {
		return nil
	}
	if _, err := p.js.UpdateStream(ctx, want); err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	log.Info().Str("stream", want.Name).Msg("updated JetStream stream limits")
	return nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event SessionEvent) error {
	if p.excluded[event.Type] {
		return nil
	}

	subject := p.config.Subject(event.Type)
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Session-ID": []string{event.SessionID},
			"Event-ID":   []string{event.ID},
		},
	},
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published to JetStream")

	return nil
}

// Close flushes pending publishes and closes the connection.
func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

func streamDrifted(have, want jetstream.StreamConfig) bool {
	if len(have.Subjects) != len(want.Subjects) {
		return true
	}
	for i := range want.Subjects {
		if have.Subjects[i] != want.Subjects[i] {
			return true
		}
	}
	return have.MaxAge != want.MaxAge ||
		have.MaxMsgs != want.MaxMsgs ||
		have.Replicas != want.Replicas ||
		have.Duplicates != want.Duplicates
}
