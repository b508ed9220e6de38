package domain

import "context"

// Upstream is the hotel backend reached over JSON-RPC. CallTool returns the
// decoded structured result of one tool call; ListTools returns the raw
// tools/list result object.
type Upstream interface {
	CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error)
	ListTools(ctx context.Context) (map[string]any, error)
}

// RawUpstream is an Upstream that can also hand back a tool result's JSON
// text, so callers can walk it in document order.
type RawUpstream interface {
	CallToolRaw(ctx context.Context, name string, args map[string]any) (map[string]any, []byte, error)
}

// HotelProvider is one booking backend behind the façade.
type HotelProvider interface {
	Name() string
	SearchOffers(ctx context.Context, req SearchRequest) (SearchResult, error)
	CreateBooking(ctx context.Context, hotelName, roomType string, guest GuestDetails) (BookingOutcome, error)
	CancelBooking(ctx context.Context, ref, reason, email string) (CancellationOutcome, error)
	BookingStatus(ctx context.Context, ref string) (StatusOutcome, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type BookingJournal interface {
	Record(ctx context.Context, e JournalEntry) error
	ListByReference(ctx context.Context, ref string, limit int) ([]JournalEntry, error)
}
