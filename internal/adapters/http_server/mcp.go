package httpserver

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"sigtrip_wrapper/internal/app"
	"sigtrip_wrapper/internal/domain"
)

// === MCP Tool Input Types ===

type SearchToolInput struct {
	Location          string  `json:"location" jsonschema:"city or area to search, e.g. Denver or New York"`
	CheckIn           *string `json:"check_in,omitempty" jsonschema:"check-in date; YYYY-MM-DD preferred"`
	CheckOut          *string `json:"check_out,omitempty" jsonschema:"check-out date; YYYY-MM-DD preferred"`
	Guests            *int    `json:"guests,omitempty" jsonschema:"number of adult guests (default 1)"`
	MaxHotels         int     `json:"max_hotels,omitempty" jsonschema:"maximum hotels to return (default 5)"`
	MaxOffersPerHotel int     `json:"max_offers_per_hotel,omitempty" jsonschema:"maximum offers per hotel (default 3)"`
}

type CompareToolInput struct {
	Location  string   `json:"location" jsonschema:"city or area to search"`
	HotelIDs  []string `json:"hotel_ids,omitempty" jsonschema:"restrict the comparison to these hotel ids"`
	CheckIn   *string  `json:"check_in,omitempty" jsonschema:"check-in date"`
	CheckOut  *string  `json:"check_out,omitempty" jsonschema:"check-out date"`
	Guests    *int     `json:"guests,omitempty" jsonschema:"number of adult guests"`
	MaxHotels int      `json:"max_hotels,omitempty" jsonschema:"maximum hotels to compare (default 8)"`
}

type BookingToolInput struct {
	OfferID      string `json:"offer_id,omitempty" jsonschema:"offer id from search results, e.g. sigtrip:The_Rally_Hotel:KING"`
	RoomID       string `json:"room_id,omitempty" jsonschema:"legacy alias of offer_id"`
	GuestDetails string `json:"guest_details" jsonschema:"JSON string with first_name, last_name, email, phone, check_in, check_out and optional guests"`
}

type CancelToolInput struct {
	ProviderBookingRef string `json:"provider_booking_ref" jsonschema:"booking reference returned by the provider"`
	Reason             string `json:"reason,omitempty" jsonschema:"cancellation reason"`
	Email              string `json:"email,omitempty" jsonschema:"guest email, when the provider requires it"`
}

type StatusToolInput struct {
	ProviderBookingRef string `json:"provider_booking_ref" jsonschema:"booking reference returned by the provider"`
}

// NewMCPServer registers the hotel tools on a fresh MCP server.
func (h *Handlers) NewMCPServer(version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "sigtrip-wrapper", Version: version},
		&mcp.ServerOptions{
			Instructions: "Hotel search, comparison and booking. Search first, then book with an offer_id " +
				"from the results; the booking returns a payment URL the guest must complete.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_hotel_offers",
		Description: "Search hotels in a location and return listing cards with the cheapest offers.",
	}, h.mcpSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_hotels",
		Description: "Compare hotels in a location, grouped by property and ranked by price.",
	}, h.mcpCompare)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_booking_request",
		Description: "Start a booking for an offer. Returns a payment URL valid for a short session.",
	}, h.mcpBook)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_booking",
		Description: "Cancel a booking when the provider supports it. Reports any extra fields the provider requires.",
	}, h.mcpCancel)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_booking_status",
		Description: "Look up the state of a booking when the provider supports it.",
	}, h.mcpStatus)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handlers) NewMCPHandler(version string) http.Handler {
	server := h.NewMCPServer(version)
	return mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return server },
		&mcp.StreamableHTTPOptions{Stateless: true, JSONResponse: true},
	)
}

// === Tool Handlers ===

// toolResult returns the success payload, or the error envelope flagged
// as a tool error.
func toolResult(v any, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return &mcp.CallToolResult{IsError: true}, domain.Envelope(err), nil
	}
	return nil, v, nil
}

func (h *Handlers) mcpSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchToolInput) (*mcp.CallToolResult, any, error) {
	return toolResult(h.Svc.Search(ctx, app.SearchInput{
		Location:          in.Location,
		CheckIn:           in.CheckIn,
		CheckOut:          in.CheckOut,
		Guests:            in.Guests,
		MaxHotels:         in.MaxHotels,
		MaxOffersPerHotel: in.MaxOffersPerHotel,
	}))
}

func (h *Handlers) mcpCompare(ctx context.Context, _ *mcp.CallToolRequest, in CompareToolInput) (*mcp.CallToolResult, any, error) {
	return toolResult(h.Svc.Compare(ctx, app.CompareInput{
		Location:  in.Location,
		HotelIDs:  in.HotelIDs,
		CheckIn:   in.CheckIn,
		CheckOut:  in.CheckOut,
		Guests:    in.Guests,
		MaxHotels: in.MaxHotels,
	}))
}

func (h *Handlers) mcpBook(ctx context.Context, _ *mcp.CallToolRequest, in BookingToolInput) (*mcp.CallToolResult, any, error) {
	return toolResult(h.Svc.Book(ctx, offerIDOrRoomID(in.OfferID, in.RoomID), in.GuestDetails))
}

func (h *Handlers) mcpCancel(ctx context.Context, _ *mcp.CallToolRequest, in CancelToolInput) (*mcp.CallToolResult, any, error) {
	return toolResult(h.Svc.Cancel(ctx, in.ProviderBookingRef, in.Reason, in.Email))
}

func (h *Handlers) mcpStatus(ctx context.Context, _ *mcp.CallToolRequest, in StatusToolInput) (*mcp.CallToolResult, any, error) {
	return toolResult(h.Svc.Status(ctx, in.ProviderBookingRef))
}
