package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sigtrip_wrapper/internal/domain"
)

const (
	defaultMaxHotels        = 5
	defaultMaxOffers        = 3
	compareMaxHotels        = 8
	compareMaxOffers        = 5
	defaultSessionTTL       = 15 * time.Minute
	journalPayloadSizeGuard = 64 << 10

	warnDefaultDates = "Dates were missing or invalid; default date range was applied."
	warnGuests       = "Guests must be >= 1; guests was set to 1."
	dedupeStrategy   = "group_by_property_id"
)

// Observer receives negotiated-operation outcomes for metrics.
type Observer interface {
	Negotiation(operation, outcome string)
}

type nopObserver struct{}

func (nopObserver) Negotiation(string, string) {}

// Service is the façade behind every outward surface. All returned errors
// are *domain.APIError.
type Service struct {
	p          domain.HotelProvider
	cache      domain.Cache
	journal    domain.BookingJournal
	obs        Observer
	sessionTTL time.Duration
	now        func() time.Time
}

type Option func(*Service)

// WithCache enables booking idempotency for the payment session window.
func WithCache(c domain.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithJournal(j domain.BookingJournal) Option { return func(s *Service) { s.journal = j } }
func WithObserver(o Observer) Option          { return func(s *Service) { s.obs = o } }
func WithClock(now func() time.Time) Option   { return func(s *Service) { s.now = now } }

func NewService(p domain.HotelProvider, opts ...Option) *Service {
	s := &Service{p: p, obs: nopObserver{}, sessionTTL: defaultSessionTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

/********** search / compare **********/

type SearchInput struct {
	Location          string  `json:"location"`
	CheckIn           *string `json:"check_in,omitempty"`
	CheckOut          *string `json:"check_out,omitempty"`
	Guests            *int    `json:"guests,omitempty"`
	MaxHotels         int     `json:"max_hotels,omitempty"`
	MaxOffersPerHotel int     `json:"max_offers_per_hotel,omitempty"`
}

type CompareInput struct {
	Location  string   `json:"location"`
	HotelIDs  []string `json:"hotel_ids,omitempty"`
	CheckIn   *string  `json:"check_in,omitempty"`
	CheckOut  *string  `json:"check_out,omitempty"`
	Guests    *int     `json:"guests,omitempty"`
	MaxHotels int      `json:"max_hotels,omitempty"`
}

func (s *Service) Search(ctx context.Context, in SearchInput) (domain.SearchResult, error) {
	location := strings.TrimSpace(in.Location)
	if location == "" {
		return domain.SearchResult{}, domain.NewValidationError(domain.CodeInvalidLocation, "location is required", nil)
	}
	if in.MaxHotels <= 0 {
		in.MaxHotels = defaultMaxHotels
	}
	if in.MaxOffersPerHotel <= 0 {
		in.MaxOffersPerHotel = defaultMaxOffers
	}

	checkIn, checkOut, dates := NormalizeDates(s.now(), in.CheckIn, in.CheckOut)
	rawGuests := 1
	if in.Guests != nil {
		rawGuests = *in.Guests
	}
	guests := max(1, rawGuests)

	res, err := s.p.SearchOffers(ctx, domain.SearchRequest{
		Location:          location,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		Guests:            guests,
		MaxHotels:         in.MaxHotels,
		MaxOffersPerHotel: in.MaxOffersPerHotel,
	})
	if err != nil {
		return domain.SearchResult{}, s.internal(ctx, "search", err)
	}

	md := domain.SearchMetadata{
		RawInput: domain.RawInput{
			Location: in.Location,
			CheckIn:  in.CheckIn,
			CheckOut: in.CheckOut,
			Guests:   rawGuests,
		},
		NormalizedInput:  res.Query,
		DefaultsApplied:  []string{},
		Warnings:         []string{},
		DataSource:       summarizeSources(res.Hotels),
		ProviderMetadata: res.Metadata.ProviderMetadata,
		ContractVersion:  domain.ContractVersion,
	}
	if dates.UsedDefault {
		md.DefaultsApplied = append(md.DefaultsApplied, "dates")
		md.Warnings = append(md.Warnings, warnDefaultDates)
	}
	if rawGuests < 1 {
		md.DefaultsApplied = append(md.DefaultsApplied, "guests")
		md.Warnings = append(md.Warnings, warnGuests)
	}
	res.Metadata = md
	if res.Hotels == nil {
		res.Hotels = []domain.ListingCard{}
	}
	return res, nil
}

func summarizeSources(hotels []domain.ListingCard) domain.DataSource {
	ds := domain.DataSource{Image: "upstream", Pricing: "upstream"}
	for _, h := range hotels {
		if h.ImageSource != domain.ImageSourceUpstream {
			ds.Image = "mixed"
		}
		if h.PricingSource != domain.PricingSourceUpstream {
			ds.Pricing = "mixed"
		}
	}
	return ds
}

func (s *Service) Compare(ctx context.Context, in CompareInput) (domain.CompareResult, error) {
	if in.MaxHotels <= 0 {
		in.MaxHotels = compareMaxHotels
	}
	search, err := s.Search(ctx, SearchInput{
		Location:          in.Location,
		CheckIn:           in.CheckIn,
		CheckOut:          in.CheckOut,
		Guests:            in.Guests,
		MaxHotels:         in.MaxHotels,
		MaxOffersPerHotel: compareMaxOffers,
	})
	if err != nil {
		return domain.CompareResult{}, err
	}

	hotels := search.Hotels
	if len(in.HotelIDs) > 0 {
		wanted := make(map[string]struct{}, len(in.HotelIDs))
		for _, id := range in.HotelIDs {
			wanted[id] = struct{}{}
		}
		kept := hotels[:0:0]
		for _, h := range hotels {
			if _, ok := wanted[h.HotelID]; ok {
				kept = append(kept, h)
			}
		}
		hotels = kept
	}
	items := RankComparison(GroupByProperty(hotels))

	return domain.CompareResult{
		Provider: search.Provider,
		Query:    search.Query,
		Metadata: domain.CompareMetadata{
			SearchMetadata:     search.Metadata,
			ComparisonCount:    len(items),
			FilteredByHotelIDs: len(in.HotelIDs) > 0,
			DedupeStrategy:     dedupeStrategy,
		},
		Comparison: items,
	}, nil
}

/********** booking lifecycle **********/

// Book validates the guest payload and offer id, then requests a payment
// session upstream. With a cache configured, an identical request inside
// the session window replays the stored outcome.
func (s *Service) Book(ctx context.Context, offerID, guestDetails string) (domain.BookingOutcome, error) {
	guest, apiErr := parseGuestDetails(guestDetails)
	if apiErr != nil {
		return domain.BookingOutcome{}, apiErr
	}
	hotel, room, ok := ParseOfferID(s.p.Name(), offerID)
	if !ok {
		return domain.BookingOutcome{}, domain.NewValidationError(domain.CodeInvalidOfferID,
			"offer_id must look like "+s.p.Name()+":<Hotel_Name>:<roomType>",
			map[string]any{"offer_id": offerID})
	}

	key := bookingKey(offerID, guest)
	if s.cache != nil {
		var stored domain.BookingOutcome
		if hit, err := s.cache.Get(ctx, key, &stored); err != nil {
			log.Warn().Err(err).Str("offer_id", offerID).Msg("booking_cache_get_failed")
		} else if hit {
			log.Info().Str("offer_id", offerID).Msg("booking_replayed")
			return stored, nil
		}
	}

	out, err := s.p.CreateBooking(ctx, hotel, room, guest)
	if err != nil {
		return domain.BookingOutcome{}, s.internal(ctx, "book", err)
	}
	if out.Status == domain.BookingFailed {
		msg := "Booking failed"
		if out.Error != nil && *out.Error != "" {
			msg = *out.Error
		}
		s.record(ctx, domain.JournalEntry{Operation: domain.OpBook, OfferID: offerID,
			Status: string(out.Status), ErrorCode: domain.CodeBookingFailed}, out)
		return domain.BookingOutcome{}, domain.NewBookingFailedError(msg, offerID)
	}
	out.ContractVersion = domain.ContractVersion

	if s.cache != nil {
		ttl := int(s.sessionTTL.Seconds())
		if err := s.cache.Set(ctx, key, out, ttl); err != nil {
			log.Warn().Err(err).Str("offer_id", offerID).Msg("booking_cache_set_failed")
		}
		if out.ProviderReference != nil {
			if err := s.cache.Set(ctx, refKey(*out.ProviderReference), key, ttl); err != nil {
				log.Warn().Err(err).Str("provider_reference", *out.ProviderReference).Msg("booking_cache_set_failed")
			}
		}
	}
	entry := domain.JournalEntry{Operation: domain.OpBook, OfferID: offerID, Status: string(out.Status)}
	if out.ProviderReference != nil {
		entry.ProviderReference = *out.ProviderReference
	}
	s.record(ctx, entry, out)
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, ref, reason, email string) (domain.CancellationOutcome, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.CancellationOutcome{}, invalidRef()
	}
	out, err := s.p.CancelBooking(ctx, ref, strings.TrimSpace(reason), strings.TrimSpace(email))
	if err != nil {
		return domain.CancellationOutcome{}, s.internal(ctx, "cancel", err)
	}
	s.obs.Negotiation(domain.OpCancel, string(out.Status))

	if out.Status == domain.CancellationFailed && len(out.RequiredFields) > 0 {
		s.record(ctx, domain.JournalEntry{Operation: domain.OpCancel, ProviderReference: ref,
			Status: string(out.Status), ErrorCode: domain.CodeMissingCancellationFields}, out)
		return domain.CancellationOutcome{}, domain.NewMissingFieldsError(domain.CodeMissingCancellationFields,
			deref(out.Message, "Cancellation requires additional fields."), out.RequiredFields, deref(out.NextAction, ""), ref)
	}
	out.ContractVersion = domain.ContractVersion

	if out.Status == domain.CancellationCancelled && s.cache != nil {
		s.evictReplay(ctx, ref)
	}
	s.record(ctx, domain.JournalEntry{Operation: domain.OpCancel, ProviderReference: ref, Status: string(out.Status)}, out)
	return out, nil
}

// evictReplay drops the stored booking outcome for ref so a new identical
// request reaches upstream again.
func (s *Service) evictReplay(ctx context.Context, ref string) {
	var key string
	hit, err := s.cache.Get(ctx, refKey(ref), &key)
	if err != nil {
		log.Warn().Err(err).Str("provider_reference", ref).Msg("booking_cache_get_failed")
	}
	if hit && key != "" {
		if err := s.cache.Del(ctx, key); err != nil {
			log.Warn().Err(err).Str("provider_reference", ref).Msg("booking_cache_del_failed")
		}
	}
	if err := s.cache.Del(ctx, refKey(ref)); err != nil {
		log.Warn().Err(err).Str("provider_reference", ref).Msg("booking_cache_del_failed")
	}
}

func (s *Service) Status(ctx context.Context, ref string) (domain.StatusOutcome, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.StatusOutcome{}, invalidRef()
	}
	out, err := s.p.BookingStatus(ctx, ref)
	if err != nil {
		return domain.StatusOutcome{}, s.internal(ctx, "status", err)
	}
	if len(out.RequiredFields) > 0 {
		s.obs.Negotiation(domain.OpStatus, "missing_fields")
		return domain.StatusOutcome{}, domain.NewMissingFieldsError(domain.CodeMissingStatusFields,
			deref(out.Message, "Status lookup requires additional fields."), out.RequiredFields, deref(out.NextAction, ""), ref)
	}
	s.obs.Negotiation(domain.OpStatus, string(out.Status))
	out.ContractVersion = domain.ContractVersion
	s.record(ctx, domain.JournalEntry{Operation: domain.OpStatus, ProviderReference: ref, Status: string(out.Status)}, out)
	return out, nil
}

// Journal lists recorded outcomes for a provider reference, newest first.
func (s *Service) Journal(ctx context.Context, ref string, limit int) ([]domain.JournalEntry, error) {
	if s.journal == nil {
		return nil, domain.NewJournalUnavailableError()
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, invalidRef()
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	entries, err := s.journal.ListByReference(ctx, ref, limit)
	if err != nil {
		return nil, s.internal(ctx, "journal", err)
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	return entries, nil
}

/********** helpers **********/

func parseGuestDetails(raw string) (domain.GuestDetails, *domain.APIError) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return domain.GuestDetails{}, domain.NewValidationError(domain.CodeInvalidGuestDetailsJSON,
			"guest_details must be valid JSON string", nil)
	}
	if _, ok := decoded.(map[string]any); !ok {
		return domain.GuestDetails{}, schemaError([]domain.FieldError{{Field: "guest_details", Message: "must be a JSON object"}})
	}

	var g domain.GuestDetails
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		field := "guest_details"
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			field = typeErr.Field
		}
		return domain.GuestDetails{}, schemaError([]domain.FieldError{{Field: field, Message: "wrong type"}})
	}
	if errs := g.Validate(); len(errs) > 0 {
		return domain.GuestDetails{}, schemaError(errs)
	}
	return g, nil
}

func schemaError(errs []domain.FieldError) *domain.APIError {
	return domain.NewValidationError(domain.CodeInvalidGuestDetailsSchema,
		"guest_details schema validation failed", map[string]any{"validation_errors": errs})
}

func invalidRef() *domain.APIError {
	return domain.NewValidationError(domain.CodeInvalidBookingRef, "provider_booking_ref is required", nil)
}

// bookingKey hashes the offer id and the canonical guest payload.
func bookingKey(offerID string, g domain.GuestDetails) string {
	var buf bytes.Buffer
	buf.WriteString(offerID)
	buf.WriteByte(0)
	b, _ := json.Marshal(g)
	buf.Write(b)
	sum := sha256.Sum256(buf.Bytes())
	return "booking:" + hex.EncodeToString(sum[:])
}

func refKey(ref string) string { return "booking_ref:" + ref }

func (s *Service) internal(ctx context.Context, op string, err error) error {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	log.Error().Err(err).Str("op", op).Msg("operation_failed")
	return domain.NewInternalError(err)
}

// record appends to the journal when one is configured. Failures are logged.
func (s *Service) record(ctx context.Context, e domain.JournalEntry, v any) {
	if s.journal == nil {
		return
	}
	e.Provider = s.p.Name()
	e.CreatedAt = s.now().UTC()
	if b, err := json.Marshal(v); err == nil && len(b) < journalPayloadSizeGuard {
		e.PayloadJSON = b
	}
	if err := s.journal.Record(ctx, e); err != nil {
		log.Warn().Err(err).Str("operation", e.Operation).Str("ref", e.ProviderReference).Msg("journal_record_failed")
	}
}

func deref(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}
