package events

import (
	"context"
	"errors"
)

// Publisher delivers session events to an observer. Each session publishes
// from its own goroutine in event order, so a slow Publish delays only that
// session's later events.
type Publisher interface {
	Publish(ctx context.Context, event SessionEvent) error
}

// NoopPublisher discards everything.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, SessionEvent) error { return nil }

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, event SessionEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event SessionEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event SessionEvent) error {
	return f(ctx, event)
}
