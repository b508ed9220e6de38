package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"sigtrip_wrapper/internal/catalog"
	"sigtrip_wrapper/internal/domain"
	"sigtrip_wrapper/internal/negotiation"
	"sigtrip_wrapper/internal/payload"
)

const (
	sessionExpiration = "15m"
	defaultCountry    = "US"

	msgBookingFailed     = "Booking failed. Room may be unavailable."
	msgCancelMissing     = "Cancellation requires additional fields."
	msgStatusMissing     = "Status lookup requires additional fields."
	msgCancelUnsupported = "Upstream does not publish a cancellation tool."
	msgStatusUnsupported = "Upstream does not publish a booking status tool."
	msgNoData            = "Upstream returned no data."
)

// Keys that may carry a booking reference in upstream payloads.
var bookingRefKeys = []string{"reservationId", "bookingId", "confirmationNumber", "reservation_id", "booking_id"}

// Keys that may carry a reservation state.
var stateKeys = []string{"status", "bookingStatus", "reservationStatus", "state"}

// SigtripProvider fans search out over the hotels served for a location
// and negotiates the optional cancel and status tools.
type SigtripProvider struct {
	name    string
	up      domain.Upstream
	cat     *catalog.Catalog
	neg     *negotiation.Negotiator
	workers int
}

func NewSigtripProvider(name string, up domain.Upstream, cat *catalog.Catalog, workers int) *SigtripProvider {
	if workers <= 0 {
		workers = 4
	}
	return &SigtripProvider{name: name, up: up, cat: cat, neg: negotiation.New(up), workers: workers}
}

func (p *SigtripProvider) Name() string { return p.name }

// call runs one upstream tool and degrades no-data conditions to nil.
func (p *SigtripProvider) call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	data, err := p.up.CallTool(ctx, tool, args)
	if err != nil {
		return nil, callErr(ctx, err)
	}
	return data, nil
}

// callRaw is call plus the result's JSON text when the upstream offers it.
func (p *SigtripProvider) callRaw(ctx context.Context, tool string, args map[string]any) (map[string]any, []byte, error) {
	ru, ok := p.up.(domain.RawUpstream)
	if !ok {
		data, err := p.call(ctx, tool, args)
		return data, nil, err
	}
	data, raw, err := ru.CallToolRaw(ctx, tool, args)
	if err != nil {
		return nil, nil, callErr(ctx, err)
	}
	return data, raw, nil
}

// callErr maps exhausted or unparsed calls to "no data" (nil error).
func callErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if domain.IsNoData(err) {
		return nil
	}
	return err
}

func (p *SigtripProvider) SearchOffers(ctx context.Context, req domain.SearchRequest) (domain.SearchResult, error) {
	hotels := p.cat.HotelsFor(req.Location)
	if req.MaxHotels >= 0 && len(hotels) > req.MaxHotels {
		hotels = hotels[:req.MaxHotels]
	}

	cards := make([]domain.ListingCard, len(hotels))
	matches := make([]catalog.Match, len(hotels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, hotel := range hotels {
		g.Go(func() error {
			card, m, err := p.listing(gctx, hotel, req)
			if err != nil {
				return err
			}
			cards[i], matches[i] = card, m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.SearchResult{}, err
	}

	var lastMethod *string
	if len(matches) > 0 {
		lastMethod = ptr(matches[len(matches)-1].Method)
	}
	return domain.SearchResult{
		Provider: p.name,
		Query: domain.SearchQuery{
			Location: req.Location,
			CheckIn:  req.CheckIn,
			CheckOut: req.CheckOut,
			Guests:   req.Guests,
		},
		Metadata: domain.SearchMetadata{
			ProviderMetadata: domain.ProviderMetadata{
				CanonicalMapping: domain.CanonicalMapping{
					Strategy:          catalog.Strategy,
					Provider:          p.name,
					LastMappingMethod: lastMethod,
				},
			},
		},
		Hotels: cards,
	}, nil
}

// listing issues get_rooms, get_prices and view_room_gallery in sequence for
// one hotel. Missing upstream data yields an empty listing, not an error.
func (p *SigtripProvider) listing(ctx context.Context, hotel string, req domain.SearchRequest) (domain.ListingCard, catalog.Match, error) {
	hotelID := HotelID(p.name, hotel)

	rooms, err := p.call(ctx, "get_rooms", map[string]any{
		"hotelName": hotel,
		"adults":    req.Guests,
	})
	if err != nil {
		return domain.ListingCard{}, catalog.Match{}, err
	}
	prices, err := p.call(ctx, "get_prices", map[string]any{
		"hotelName":     hotel,
		"arrivalDate":   req.CheckIn,
		"departureDate": req.CheckOut,
		"adults":        req.Guests,
	})
	if err != nil {
		return domain.ListingCard{}, catalog.Match{}, err
	}
	rawPrices, _ := prices["prices"].([]any)
	offers := MapOffers(p.name, hotel, rawPrices, req.MaxOffersPerHotel)

	var images []string
	if galleryRooms := GalleryRooms(rooms); len(galleryRooms) > 0 {
		gallery, raw, err := p.callRaw(ctx, "view_room_gallery", map[string]any{
			"hotelName":     hotel,
			"expectedCount": len(galleryRooms),
			"rooms":         galleryRooms,
		})
		if err != nil {
			return domain.ListingCard{}, catalog.Match{}, err
		}
		images = ExtractImageURLs(gallery)
		if raw != nil {
			if ordered, err := ExtractImageURLsJSON(raw); err == nil {
				images = ordered
			}
		}
	}
	fallback, _ := p.cat.FallbackImage(req.Location)

	profile, match := p.cat.Resolve(hotelID, hotel, req.Location, defaultCountry)
	log.Debug().Str("hotel_id", hotelID).Str("property_id", profile.PropertyID).
		Str("method", match.Method).Float64("confidence", match.Confidence).Msg("property_resolved")

	return BuildListing(ListingInput{
		Provider:      p.name,
		HotelID:       hotelID,
		HotelName:     hotel,
		Location:      req.Location,
		Profile:       profile,
		Offers:        offers,
		Images:        images,
		FallbackImage: fallback,
	}), match, nil
}

// BookingReference pulls the provider booking reference out of a
// setup_booking result: a top-level bookingId (numbers included), else the
// first reference-like key found anywhere in the payload.
func BookingReference(data map[string]any) (string, bool) {
	if s, ok := payload.Scalar(data["bookingId"]); ok {
		return s, true
	}
	return payload.FindString(data, bookingRefKeys...)
}

func (p *SigtripProvider) CreateBooking(ctx context.Context, hotelName, roomType string, guest domain.GuestDetails) (domain.BookingOutcome, error) {
	data, err := p.call(ctx, "setup_booking", map[string]any{
		"hotelName":   hotelName,
		"roomType":    roomType,
		"firstName":   guest.FirstName,
		"lastName":    guest.LastName,
		"email":       guest.Email,
		"phoneNumber": guest.Phone,
		"checkIn":     guest.CheckIn,
		"checkOut":    guest.CheckOut,
		"guests":      guest.GuestCount(),
	})
	if err != nil {
		return domain.BookingOutcome{}, err
	}

	if url, ok := data["guaranteeUrl"].(string); ok && url != "" {
		var ref *string
		if s, ok := BookingReference(data); ok {
			ref = &s
		}
		return domain.BookingOutcome{
			Status:            domain.BookingPaymentRequired,
			PaymentURL:        &url,
			SessionExpiration: ptr(sessionExpiration),
			ProviderReference: ref,
		}, nil
	}
	return domain.BookingOutcome{Status: domain.BookingFailed, Error: ptr(msgBookingFailed)}, nil
}

// negotiate discovers tools and plans a call to the first supported
// candidate. A failed discovery counts as an empty tool set.
func (p *SigtripProvider) negotiate(ctx context.Context, candidates []string, nc negotiation.Context) (string, negotiation.Plan, bool, error) {
	tools, err := p.neg.Discover(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", negotiation.Plan{}, false, ctx.Err()
		}
		log.Warn().Err(err).Msg("capability_discovery_failed")
		tools = nil
	}
	name, ok := negotiation.FindSupported(tools, candidates)
	if !ok {
		return "", negotiation.Plan{}, false, nil
	}
	plan := negotiation.BuildArguments(tools[name], nc)
	if !plan.Ready() {
		log.Info().Str("tool", name).Strs("required_fields", plan.Missing).Msg("negotiation_missing_fields")
	}
	return name, plan, true, nil
}

func (p *SigtripProvider) CancelBooking(ctx context.Context, ref, reason, email string) (domain.CancellationOutcome, error) {
	out := domain.CancellationOutcome{Provider: p.name, ProviderReference: ptr(ref)}
	tool, plan, ok, err := p.negotiate(ctx, negotiation.CancelCandidates,
		negotiation.Context{BookingReference: ref, Email: email, Reason: reason})
	if err != nil {
		return out, err
	}
	if !ok {
		out.Status = domain.CancellationUnsupported
		out.Message = ptr(msgCancelUnsupported)
		return out, nil
	}
	if !plan.Ready() {
		out.Status = domain.CancellationFailed
		out.Message = ptr(msgCancelMissing)
		out.RequiredFields = plan.Missing
		out.NextAction = ptr(plan.NextAction)
		return out, nil
	}

	data, err := p.call(ctx, tool, plan.Arguments)
	if err != nil {
		return out, err
	}
	if data == nil {
		out.Status = domain.CancellationFailed
		out.Message = ptr(msgNoData)
		return out, nil
	}
	out.Message = upstreamMessage(data)
	switch classifyState(data) {
	case stateFailed:
		out.Status = domain.CancellationFailed
	case stateCancelled:
		out.Status = domain.CancellationCancelled
	default:
		out.Status = domain.CancellationPending
	}
	return out, nil
}

func (p *SigtripProvider) BookingStatus(ctx context.Context, ref string) (domain.StatusOutcome, error) {
	out := domain.StatusOutcome{Provider: p.name, ProviderReference: ptr(ref)}
	tool, plan, ok, err := p.negotiate(ctx, negotiation.StatusCandidates,
		negotiation.Context{BookingReference: ref})
	if err != nil {
		return out, err
	}
	if !ok {
		out.Status = domain.ReservationUnsupported
		out.Message = ptr(msgStatusUnsupported)
		return out, nil
	}
	if !plan.Ready() {
		out.Status = domain.ReservationUnknown
		out.Message = ptr(msgStatusMissing)
		out.RequiredFields = plan.Missing
		out.NextAction = ptr(plan.NextAction)
		return out, nil
	}

	data, err := p.call(ctx, tool, plan.Arguments)
	if err != nil {
		return out, err
	}
	if data == nil {
		out.Status = domain.ReservationUnknown
		out.Message = ptr(msgNoData)
		return out, nil
	}
	out.Message = upstreamMessage(data)
	switch classifyState(data) {
	case stateCancelled:
		out.Status = domain.ReservationCancelled
	case stateConfirmed:
		out.Status = domain.ReservationConfirmed
	case statePending:
		out.Status = domain.ReservationPending
	default:
		out.Status = domain.ReservationUnknown
	}
	return out, nil
}

/********** reservation state classification **********/

type state int

const (
	stateUnknown state = iota
	stateFailed
	stateCancelled
	statePending
	stateConfirmed
)

var (
	failureWords   = []string{"fail", "failed", "failure", "error", "invalid", "denied", "rejected"}
	cancelledWords = []string{"cancelled", "canceled"}
	pendingWords   = []string{"pending", "requested", "processing", "submitted", "received", "awaiting"}
	confirmedWords = []string{"confirmed", "booked", "active", "guaranteed", "reserved"}
)

// classifyState reads a state field, else the fallback text, else the
// upstream message. An explicit success=false or error member is a failure;
// an explicit success=true suppresses failure words in the text.
func classifyState(data map[string]any) state {
	succeeded, hasSuccess := data["success"].(bool)
	if hasSuccess && !succeeded {
		return stateFailed
	}
	if e, present := data["error"]; present && e != nil && e != false && e != "" {
		return stateFailed
	}

	text, ok := payload.FindString(data, stateKeys...)
	if !ok {
		text, ok = fallbackText(data)
	}
	if !ok {
		if m := upstreamMessage(data); m != nil {
			text, ok = *m, true
		}
	}
	if !ok {
		return stateUnknown
	}

	words := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r < 'a' || r > 'z'
	}) {
		words[w] = struct{}{}
	}
	has := func(list []string) bool {
		for _, w := range list {
			if _, ok := words[w]; ok {
				return true
			}
		}
		return false
	}
	switch {
	case !succeeded && has(failureWords):
		return stateFailed
	case has(cancelledWords):
		return stateCancelled
	case has(pendingWords):
		return statePending
	case has(confirmedWords):
		return stateConfirmed
	}
	return stateUnknown
}

func fallbackText(data map[string]any) (string, bool) {
	if len(data) != 1 {
		return "", false
	}
	s, ok := data[domain.FallbackTextKey].(string)
	return s, ok && s != ""
}

func upstreamMessage(data map[string]any) *string {
	if s, ok := fallbackText(data); ok {
		return &s
	}
	if s, ok := data["message"].(string); ok && s != "" {
		return &s
	}
	return nil
}
