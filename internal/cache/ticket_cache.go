package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ticketflow/ticketflow/internal/domain"
)

// TicketCache is a read-through cache for tickets keyed by ID. A ticket is
// stored as one JSON value, so readers never observe a partially-applied
// transition. Every mutation invalidates the entry.
//
// All methods degrade to no-ops when no Redis client is configured.
type TicketCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTicketCache constructs the cache.
func NewTicketCache(client *redis.Client, ttl time.Duration) *TicketCache {
	return &TicketCache{client: client, ttl: ttl}
}

func ticketKey(id string) string {
	return "ticket:" + id
}

// Get returns the cached ticket, or (nil, nil) on a miss.
func (c *TicketCache) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, ticketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		// corrupt entry, drop it
		_ = c.client.Del(ctx, ticketKey(id)).Err()
		return nil, nil
	}
	return &ticket, nil
}

// Set stores the ticket under its ID.
func (c *TicketCache) Set(ctx context.Context, ticket *domain.Ticket) error {
	if c == nil || c.client == nil || ticket == nil {
		return nil
	}
	raw, err := json.Marshal(ticket)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ticketKey(ticket.ID), raw, c.ttl).Err()
}

// Invalidate drops the cached entry for the ticket.
func (c *TicketCache) Invalidate(ctx context.Context, id string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, ticketKey(id)).Err()
}
