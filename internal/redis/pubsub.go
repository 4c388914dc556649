package redisx

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RoomEventsPubSub relays encoded room events between service instances.
// Every instance publishes on the auction's channel and delivers what it
// receives to its own websocket clients.
type RoomEventsPubSub struct {
	rdb *redis.Client
}

func NewRoomEventsPubSub(rdb *redis.Client) *RoomEventsPubSub {
	return &RoomEventsPubSub{rdb: rdb}
}

func (p *RoomEventsPubSub) Publish(ctx context.Context, auctionID uuid.UUID, payload []byte) error {
	const op = "redisx.RoomEventsPubSub.Publish"

	if err := p.rdb.Publish(ctx, ChannelAuctionEvents(auctionID), payload).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Subscribe blocks delivering events of all auctions to handler until ctx is
// done.
func (p *RoomEventsPubSub) Subscribe(
	ctx context.Context,
	handler func(ctx context.Context, auctionID uuid.UUID, payload []byte),
) error {
	const op = "redisx.RoomEventsPubSub.Subscribe"

	sub := p.rdb.PSubscribe(ctx, PatternAuctionEvents())
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if id, ok := AuctionIDFromChannel(m.Channel); ok {
				handler(ctx, id, []byte(m.Payload))
			}
		}
	}
}
