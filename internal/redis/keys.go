package redisx

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const ns = "tixauction:v1"

func KeyAuctionList(includeEnded bool) string {
	if includeEnded {
		return ns + ":auctions:all"
	}
	return ns + ":auctions:open"
}

// KeyRateLimit is the prefix of the per-caller limiter keys in scope.
func KeyRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func KeyIdemBid(auctionID uuid.UUID, idemKey string) string {
	return fmt.Sprintf("%s:idem:bids:%s:%s", ns, auctionID, idemKey)
}

func ChannelAuctionEvents(auctionID uuid.UUID) string {
	return fmt.Sprintf("%s:auction:%s:events", ns, auctionID)
}

// PatternAuctionEvents matches the event channel of every auction.
func PatternAuctionEvents() string {
	return ns + ":auction:*:events"
}

// AuctionIDFromChannel extracts the auction id from an event channel name.
func AuctionIDFromChannel(channel string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(channel, ns+":auction:")
	if !ok {
		return uuid.Nil, false
	}

	raw, ok = strings.CutSuffix(raw, ":events")
	if !ok {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}
