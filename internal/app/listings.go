package app

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"sigtrip_wrapper/internal/catalog"
	"sigtrip_wrapper/internal/domain"
	"sigtrip_wrapper/internal/payload"
)

const maxCardImages = 5

/********** alias registries **********/

var priceAliases = map[string][]string{
	"room_type":           {"roomType"},
	"room_name":           {"roomDescription"},
	"total":               {"totalAmount"},
	"nightly":             {"nightlyAmount"},
	"currency":            {"currency"},
	"category":            {"category"},
	"cancellation_policy": {"cancellationPolicy"},
}

var roomAliases = map[string][]string{
	"room_type": {"roomType", "roomCode"},
	"title":     {"roomDescription", "title"},
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}
var imageHints = []string{"image", "img", "cloudinary", "unsplash"}

/********** identities **********/

// HotelID is "<prefix>:<hotel name with spaces as underscores>".
func HotelID(prefix, hotelName string) string {
	return prefix + ":" + strings.ReplaceAll(hotelName, " ", "_")
}

func OfferID(prefix, hotelName, roomType string) string {
	return HotelID(prefix, hotelName) + ":" + roomType
}

// ParseOfferID accepts exactly "<prefix>:<hotel>:<roomType>" with both
// segments non-empty and returns the hotel name with spaces restored.
func ParseOfferID(prefix, offerID string) (hotelName, roomType string, ok bool) {
	parts := strings.Split(offerID, ":")
	if len(parts) != 3 || parts[0] != prefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return strings.ReplaceAll(parts[1], "_", " "), parts[2], true
}

/********** tiny helpers **********/

// firstValue returns the first present, non-null value for an alias set.
func firstValue(m map[string]any, aliases map[string][]string, key string) any {
	for _, k := range aliases[key] {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstText is like firstValue but only accepts non-empty strings.
func firstText(m map[string]any, aliases map[string][]string, key string) string {
	for _, k := range aliases[key] {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func optString(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

func titleCase(s string) string { return cases.Title(language.Und).String(s) }

// ToFloat coerces numbers and numeric strings. Anything else, including
// NaN and infinities, is unknown rather than zero.
func ToFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// totalOrInf orders unknown totals after every known one.
func totalOrInf(p *float64) float64 {
	if p == nil {
		return math.Inf(1)
	}
	return *p
}

/********** offers **********/

// MapOffers truncates raw price records to max, then maps and sorts them.
func MapOffers(prefix, hotelName string, prices []any, max int) []domain.Offer {
	if max < 0 {
		max = 0
	}
	if len(prices) > max {
		prices = prices[:max]
	}
	offers := make([]domain.Offer, 0, len(prices))
	for _, raw := range prices {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		roomType := "UNKNOWN"
		if v := firstValue(item, priceAliases, "room_type"); v != nil {
			if s, ok := payload.Scalar(v); ok {
				roomType = s
			}
		}
		roomName := firstText(item, priceAliases, "room_name")
		if roomName == "" {
			roomName = "Room"
		}
		offers = append(offers, domain.Offer{
			OfferID:            OfferID(prefix, hotelName, roomType),
			RoomType:           roomType,
			RoomName:           roomName,
			TotalAmount:        ToFloat(firstValue(item, priceAliases, "total")),
			NightlyAmount:      ToFloat(firstValue(item, priceAliases, "nightly")),
			Currency:           optString(firstValue(item, priceAliases, "currency")),
			Category:           optString(firstValue(item, priceAliases, "category")),
			CancellationPolicy: optString(firstValue(item, priceAliases, "cancellation_policy")),
		})
	}
	SortOffers(offers)
	return offers
}

// SortOffers orders ascending by total, unknown totals last, stable.
func SortOffers(offers []domain.Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		return totalOrInf(offers[i].TotalAmount) < totalOrInf(offers[j].TotalAmount)
	})
}

// BuildPricePreview reads the cheapest offer; offers must already be sorted.
func BuildPricePreview(offers []domain.Offer) domain.PricePreview {
	if len(offers) == 0 {
		return domain.PricePreview{IncludesTaxesFees: true}
	}
	best := offers[0]
	return domain.PricePreview{
		FromTotal:         best.TotalAmount,
		FromNightly:       best.NightlyAmount,
		Currency:          best.Currency,
		IncludesTaxesFees: true,
	}
}

func Availability(offers []domain.Offer) string {
	if len(offers) > 0 {
		return domain.AvailabilityAvailable
	}
	return domain.AvailabilityUnavailable
}

/********** images **********/

func LooksLikeImageURL(u string) bool {
	l := strings.ToLower(u)
	for _, ext := range imageExtensions {
		if strings.Contains(l, ext) {
			return true
		}
	}
	for _, h := range imageHints {
		if strings.Contains(l, h) {
			return true
		}
	}
	return false
}

// ExtractImageURLs collects http(s) image-looking strings anywhere in data,
// de-duplicated in first-seen order.
func ExtractImageURLs(data any) []string {
	return imageURLs(payload.Strings(data))
}

// ExtractImageURLsJSON is ExtractImageURLs over raw JSON, taking object keys
// in document order.
func ExtractImageURLsJSON(raw []byte) ([]string, error) {
	strs, err := payload.OrderedStrings(raw, payload.DefaultMaxDepth)
	if err != nil {
		return nil, err
	}
	return imageURLs(strs), nil
}

func imageURLs(candidates []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, s := range candidates {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			continue
		}
		if !LooksLikeImageURL(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// GalleryRooms builds the view_room_gallery room list from a get_rooms
// result, at most three entries.
func GalleryRooms(roomsData map[string]any) []any {
	rooms, _ := roomsData["rooms"].([]any)
	if len(rooms) > 3 {
		rooms = rooms[:3]
	}
	out := make([]any, 0, len(rooms))
	for _, raw := range rooms {
		room, _ := raw.(map[string]any)
		roomType := "Standard"
		if v := firstValue(room, roomAliases, "room_type"); v != nil {
			if s, ok := payload.Scalar(v); ok {
				roomType = s
			}
		}
		title := firstText(room, roomAliases, "title")
		if title == "" {
			title = "Room"
		}
		out = append(out, map[string]any{"roomType": roomType, "title": title})
	}
	return out
}

/********** listing cards **********/

// ListingInput is everything gathered for one upstream hotel.
type ListingInput struct {
	Provider      string
	HotelID       string
	HotelName     string
	Location      string
	Profile       catalog.Profile
	Offers        []domain.Offer
	Images        []string
	FallbackImage string
}

func BuildListing(in ListingInput) domain.ListingCard {
	images := append([]string(nil), in.Images...)
	hasUpstream := len(images) > 0

	thumb := in.FallbackImage
	if hasUpstream {
		thumb = images[0]
	}
	if thumb != "" && !hasUpstream {
		images = append([]string{thumb}, images...)
	}

	imageSource := domain.ImageSourceFallback
	switch {
	case hasUpstream:
		imageSource = domain.ImageSourceUpstream
	case thumb == "":
		imageSource = domain.ImageSourceNone
	}
	if len(images) > maxCardImages {
		images = images[:maxCardImages]
	}

	pricing := domain.PricingSourceNone
	if len(in.Offers) > 0 {
		pricing = domain.PricingSourceUpstream
	}

	name := in.Profile.Name
	if name == "" {
		name = in.HotelName
	}
	city := in.Profile.LocationDetails.City
	if city == "" {
		city = titleCase(in.Location)
	}
	details := in.Profile.LocationDetails
	caps := in.Profile.BookingCapabilities

	var thumbPtr *string
	if thumb != "" {
		thumbPtr = ptr(thumb)
	}
	if images == nil {
		images = []string{}
	}
	offers := in.Offers
	if offers == nil {
		offers = []domain.Offer{}
	}
	amenities := in.Profile.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	return domain.ListingCard{
		HotelID:             in.HotelID,
		PropertyID:          in.Profile.PropertyID,
		Provider:            in.Provider,
		ProviderIDs:         []string{in.HotelID},
		Name:                name,
		Location:            city,
		LocationDetails:     &details,
		Description:         in.Profile.Description,
		Amenities:           amenities,
		Rating:              in.Profile.Rating,
		BookingCapabilities: &caps,
		ThumbnailURL:        thumbPtr,
		ImageURLs:           images,
		PricePreview:        BuildPricePreview(offers),
		AvailabilityStatus:  Availability(offers),
		ImageSource:         imageSource,
		PricingSource:       pricing,
		TopOffers:           offers,
	}
}

/********** comparison **********/

// GroupByProperty merges cards that share a canonical property (or, without
// one, a hotel id). The cheapest member is kept, first wins on ties, and its
// provider ids become the ordered union of the group's.
func GroupByProperty(cards []domain.ListingCard) []domain.ListingCard {
	var order []string
	groups := map[string][]domain.ListingCard{}
	for _, c := range cards {
		key := c.PropertyID
		if key == "" {
			key = c.HotelID
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	out := make([]domain.ListingCard, 0, len(order))
	for _, key := range order {
		members := groups[key]
		best := members[0]
		for _, m := range members[1:] {
			if totalOrInf(m.PricePreview.FromTotal) < totalOrInf(best.PricePreview.FromTotal) {
				best = m
			}
		}
		var ids []string
		seen := map[string]struct{}{}
		for _, m := range members {
			memberIDs := m.ProviderIDs
			if len(memberIDs) == 0 && m.HotelID != "" {
				memberIDs = []string{m.HotelID}
			}
			for _, id := range memberIDs {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		best.ProviderIDs = ids
		out = append(out, best)
	}
	return out
}

// RankComparison orders groups by total, unknown last, and ranks only
// those with a known total.
func RankComparison(groups []domain.ListingCard) []domain.ComparisonItem {
	ranked := append([]domain.ListingCard(nil), groups...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return totalOrInf(ranked[i].PricePreview.FromTotal) < totalOrInf(ranked[j].PricePreview.FromTotal)
	})

	items := make([]domain.ComparisonItem, 0, len(ranked))
	for i, c := range ranked {
		var rank *int
		if c.PricePreview.FromTotal != nil {
			rank = ptr(i + 1)
		}
		items = append(items, domain.ComparisonItem{
			PropertyID:         c.PropertyID,
			HotelID:            c.HotelID,
			ProviderIDs:        c.ProviderIDs,
			Name:               c.Name,
			AvailabilityStatus: c.AvailabilityStatus,
			FromTotal:          c.PricePreview.FromTotal,
			Currency:           c.PricePreview.Currency,
			ImageURL:           c.ThumbnailURL,
			OfferCount:         len(c.TopOffers),
			RankByPrice:        rank,
		})
	}
	return items
}
