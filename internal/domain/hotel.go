package domain

// Listing-level enums. Values are part of the outward contract.
const (
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"

	ImageSourceUpstream = "upstream"
	ImageSourceFallback = "fallback"
	ImageSourceNone     = "none"

	PricingSourceUpstream = "upstream"
	PricingSourceNone     = "none"

	ContractVersion = "v1"
)

type PricePreview struct {
	FromTotal         *float64 `json:"from_total"`
	FromNightly       *float64 `json:"from_nightly"`
	Currency          *string  `json:"currency"`
	IncludesTaxesFees bool     `json:"includes_taxes_fees"`
}

// Offer is one bookable rate for one room type at one hotel.
// OfferID is "<provider>:<Hotel_Name>:<roomType>".
type Offer struct {
	OfferID            string   `json:"offer_id"`
	RoomType           string   `json:"room_type"`
	RoomName           string   `json:"room_name"`
	TotalAmount        *float64 `json:"total_amount"`
	NightlyAmount      *float64 `json:"nightly_amount"`
	Currency           *string  `json:"currency"`
	Category           *string  `json:"category"`
	CancellationPolicy *string  `json:"cancellation_policy"`
}

type LocationDetails struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
}

type Rating struct {
	Score    float64 `json:"score" yaml:"score"`
	Provider string  `json:"provider" yaml:"provider"`
}

type BookingCapabilities struct {
	InstantConfirmation  bool `json:"instant_confirmation" yaml:"instant_confirmation"`
	PayAtHotel           bool `json:"pay_at_hotel" yaml:"pay_at_hotel"`
	RequiresPaymentToken bool `json:"requires_payment_token" yaml:"requires_payment_token"`
}

// ListingCard aggregates one upstream hotel with its canonical profile,
// offers and images.
type ListingCard struct {
	HotelID             string               `json:"hotel_id"`
	PropertyID          string               `json:"property_id,omitempty"`
	Provider            string               `json:"provider"`
	ProviderIDs         []string             `json:"provider_ids"`
	Name                string               `json:"name"`
	Location            string               `json:"location"`
	LocationDetails     *LocationDetails     `json:"location_details"`
	Description         string               `json:"description"`
	Amenities           []string             `json:"amenities"`
	Rating              *Rating              `json:"rating"`
	BookingCapabilities *BookingCapabilities `json:"booking_capabilities"`
	ThumbnailURL        *string              `json:"thumbnail_url"`
	ImageURLs           []string             `json:"image_urls"`
	PricePreview        PricePreview         `json:"price_preview"`
	AvailabilityStatus  string               `json:"availability_status"`
	ImageSource         string               `json:"image_source"`
	PricingSource       string               `json:"pricing_source"`
	TopOffers           []Offer              `json:"top_offers"`
}

// SearchRequest is what the façade hands a provider after normalization.
type SearchRequest struct {
	Location          string
	CheckIn           string
	CheckOut          string
	Guests            int
	MaxHotels         int
	MaxOffersPerHotel int
}

type SearchQuery struct {
	Location string `json:"location"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
}

type CanonicalMapping struct {
	Strategy          string  `json:"strategy"`
	Provider          string  `json:"provider"`
	LastMappingMethod *string `json:"last_mapping_method"`
}

type ProviderMetadata struct {
	CanonicalMapping CanonicalMapping `json:"canonical_mapping"`
}

type RawInput struct {
	Location string  `json:"location"`
	CheckIn  *string `json:"check_in"`
	CheckOut *string `json:"check_out"`
	Guests   int     `json:"guests"`
}

type DataSource struct {
	Image   string `json:"image"`
	Pricing string `json:"pricing"`
}

type SearchMetadata struct {
	InterpretedFromQuery bool             `json:"interpreted_from_query"`
	RawInput             RawInput         `json:"raw_input"`
	NormalizedInput      SearchQuery      `json:"normalized_input"`
	DefaultsApplied      []string         `json:"defaults_applied"`
	Warnings             []string         `json:"warnings"`
	DataSource           DataSource       `json:"data_source"`
	ProviderMetadata     ProviderMetadata `json:"provider_metadata"`
	ContractVersion      string           `json:"contract_version"`
}

type SearchResult struct {
	Provider string         `json:"provider"`
	Query    SearchQuery    `json:"query"`
	Metadata SearchMetadata `json:"metadata"`
	Hotels   []ListingCard  `json:"hotels"`
}

type ComparisonItem struct {
	PropertyID         string   `json:"property_id,omitempty"`
	HotelID            string   `json:"hotel_id"`
	ProviderIDs        []string `json:"provider_ids"`
	Name               string   `json:"name"`
	AvailabilityStatus string   `json:"availability_status"`
	FromTotal          *float64 `json:"from_total"`
	Currency           *string  `json:"currency"`
	ImageURL           *string  `json:"image_url"`
	OfferCount         int      `json:"offer_count"`
	RankByPrice        *int     `json:"rank_by_price"`
}

type CompareMetadata struct {
	SearchMetadata
	ComparisonCount    int    `json:"comparison_count"`
	FilteredByHotelIDs bool   `json:"filtered_by_hotel_ids"`
	DedupeStrategy     string `json:"dedupe_strategy"`
}

type CompareResult struct {
	Provider   string           `json:"provider"`
	Query      SearchQuery      `json:"query"`
	Metadata   CompareMetadata  `json:"metadata"`
	Comparison []ComparisonItem `json:"comparison"`
}
