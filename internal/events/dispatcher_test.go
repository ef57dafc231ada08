package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherRoutesByType(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewInMemoryDispatcher()

	var created, assigned int
	dispatcher.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		created++
		return nil
	})
	dispatcher.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
		assigned++
		return nil
	})

	if err := dispatcher.Publish(ctx, Event{Type: EventTicketCreated}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := dispatcher.Publish(ctx, Event{Type: EventTicketCreated}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if created != 2 {
		t.Errorf("created handler ran %d times, want 2", created)
	}
	if assigned != 0 {
		t.Errorf("assigned handler ran %d times, want 0", assigned)
	}
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewInMemoryDispatcher()

	var second bool
	dispatcher.Subscribe(EventTicketRated, func(context.Context, Event) error {
		return errors.New("handler failed")
	})
	dispatcher.Subscribe(EventTicketRated, func(context.Context, Event) error {
		second = true
		return nil
	})

	if err := dispatcher.Publish(ctx, Event{Type: EventTicketRated}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !second {
		t.Error("second handler did not run after first failed")
	}
}

func TestDispatcherNoSubscribers(t *testing.T) {
	if err := NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventTicketCreated}); err != nil {
		t.Fatalf("publish without subscribers: %v", err)
	}
}
