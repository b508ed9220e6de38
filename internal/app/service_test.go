package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sigtrip_wrapper/internal/app"
	"sigtrip_wrapper/internal/catalog"
	"sigtrip_wrapper/internal/domain"
)

func ptr[T any](v T) *T { return &v }

/********** fakes **********/

type fakeUpstream struct {
	mu        sync.Mutex
	tools     map[string]any
	listErr   error
	responses map[string]map[string]any
	errs      map[string]error
	calls     []string
	args      map[string]map[string]any
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		responses: map[string]map[string]any{},
		errs:      map[string]error{},
		args:      map[string]map[string]any{},
	}
}

func (f *fakeUpstream) CallTool(_ context.Context, name string, args map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	f.args[name] = args
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.responses[name], nil
}

func (f *fakeUpstream) ListTools(context.Context) (map[string]any, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeUpstream) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func toolList(tools ...map[string]any) map[string]any {
	list := make([]any, len(tools))
	for i, t := range tools {
		list[i] = t
	}
	return map[string]any{"tools": list}
}

func tool(name string, required []string, props ...string) map[string]any {
	req := make([]any, len(required))
	for i, r := range required {
		req[i] = r
	}
	properties := map[string]any{}
	for _, p := range append(props, required...) {
		properties[p] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"name":        name,
		"inputSchema": map[string]any{"type": "object", "required": req, "properties": properties},
	}
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type memJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *memJournal) Record(_ context.Context, e domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) ListByReference(_ context.Context, ref string, limit int) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.JournalEntry
	for i := len(j.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if j.entries[i].ProviderReference == ref {
			out = append(out, j.entries[i])
		}
	}
	return out, nil
}

type countingObserver struct {
	mu  sync.Mutex
	got []string
}

func (o *countingObserver) Negotiation(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, op+":"+outcome)
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return c
}

func newService(t *testing.T, up *fakeUpstream, opts ...app.Option) *app.Service {
	t.Helper()
	p := app.NewSigtripProvider("sigtrip", up, defaultCatalog(t), 2)
	return app.NewService(p, append([]app.Option{app.WithClock(fixedNow)}, opts...)...)
}

func apiErr(t *testing.T, err error) *domain.APIError {
	t.Helper()
	var e *domain.APIError
	if !errors.As(err, &e) {
		t.Fatalf("expected *domain.APIError, got %T (%v)", err, err)
	}
	return e
}

const validGuest = `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","phone":"+15550100","check_in":"2026-04-01","check_out":"2026-04-03"}`

/********** search / compare **********/

func TestSearch_DenverSingleRoomUsesFallbackImage(t *testing.T) {
	up := newFakeUpstream()
	up.responses["get_rooms"] = map[string]any{"rooms": []any{map[string]any{"roomType": "KING", "roomDescription": "King Room"}}}
	up.responses["get_prices"] = map[string]any{"prices": []any{map[string]any{"roomType": "KING", "totalAmount": 199.0, "currency": "USD"}}}
	up.responses["view_room_gallery"] = map[string]any{"rooms": []any{map[string]any{"roomType": "KING", "images": []any{}}}}

	res, err := newService(t, up).Search(context.Background(), app.SearchInput{
		Location: "Denver",
		CheckIn:  ptr("2026-04-01"),
		CheckOut: ptr("2026-04-03"),
		Guests:   ptr(2),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hotels) != 1 {
		t.Fatalf("want 1 hotel, got %d", len(res.Hotels))
	}
	h := res.Hotels[0]
	if h.HotelID != "sigtrip:The_Rally_Hotel" || h.PropertyID != "prop_us_denver_rally_hotel" {
		t.Fatalf("unexpected identity %s / %s", h.HotelID, h.PropertyID)
	}
	if h.PricePreview.FromTotal == nil || *h.PricePreview.FromTotal != 199 {
		t.Fatalf("want from_total 199, got %v", h.PricePreview.FromTotal)
	}
	if h.AvailabilityStatus != domain.AvailabilityAvailable || h.ImageSource != domain.ImageSourceFallback {
		t.Fatalf("unexpected status %s / %s", h.AvailabilityStatus, h.ImageSource)
	}
	fb, _ := defaultCatalog(t).FallbackImage("denver")
	if h.ThumbnailURL == nil || *h.ThumbnailURL != fb {
		t.Fatalf("want fallback thumbnail %s, got %v", fb, h.ThumbnailURL)
	}
	if m := res.Metadata.ProviderMetadata.CanonicalMapping; m.LastMappingMethod == nil || *m.LastMappingMethod != catalog.MethodProviderIDMap {
		t.Fatalf("unexpected mapping metadata %+v", m)
	}
	if res.Metadata.DataSource.Image != "mixed" || res.Metadata.DataSource.Pricing != "upstream" {
		t.Fatalf("unexpected data source %+v", res.Metadata.DataSource)
	}
	if got := up.args["get_prices"]; got["arrivalDate"] != "2026-04-01" || got["adults"] != 2 {
		t.Fatalf("unexpected get_prices args %v", got)
	}
}

// rawUpstream also serves result text so gallery order follows the document.
type rawUpstream struct {
	*fakeUpstream
	raw map[string][]byte
}

func (r rawUpstream) CallToolRaw(ctx context.Context, name string, args map[string]any) (map[string]any, []byte, error) {
	data, err := r.CallTool(ctx, name, args)
	if err != nil {
		return nil, nil, err
	}
	return data, r.raw[name], nil
}

func TestSearch_ThumbnailIsFirstGalleryURLInDocumentOrder(t *testing.T) {
	gallery := `{"rooms":[{"roomType":"KING","zeta":"https://img.example.com/z.jpg","alpha":"https://img.example.com/a.jpg"}]}`
	up := newFakeUpstream()
	up.responses["get_rooms"] = map[string]any{"rooms": []any{map[string]any{"roomType": "KING", "roomDescription": "King Room"}}}
	up.responses["get_prices"] = map[string]any{"prices": []any{map[string]any{"roomType": "KING", "totalAmount": 199.0}}}
	up.responses["view_room_gallery"] = map[string]any{"rooms": []any{map[string]any{
		"roomType": "KING", "zeta": "https://img.example.com/z.jpg", "alpha": "https://img.example.com/a.jpg",
	}}}

	p := app.NewSigtripProvider("sigtrip", rawUpstream{up, map[string][]byte{"view_room_gallery": []byte(gallery)}}, defaultCatalog(t), 2)
	res, err := app.NewService(p, app.WithClock(fixedNow)).Search(context.Background(), app.SearchInput{Location: "Denver"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	h := res.Hotels[0]
	if h.ImageSource != domain.ImageSourceUpstream || h.ThumbnailURL == nil || *h.ThumbnailURL != "https://img.example.com/z.jpg" {
		t.Fatalf("want document-first thumbnail, got %v (%s)", h.ThumbnailURL, h.ImageSource)
	}

	// without result text the decoded map is walked with sorted keys
	res, err = newService(t, up).Search(context.Background(), app.SearchInput{Location: "Denver"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := res.Hotels[0].ThumbnailURL; got == nil || *got != "https://img.example.com/a.jpg" {
		t.Fatalf("want sorted-first thumbnail, got %v", got)
	}
}

func TestSearch_UpstreamNoDataYieldsUnavailableListing(t *testing.T) {
	up := newFakeUpstream()
	up.errs["get_rooms"] = domain.ErrExhausted
	up.errs["get_prices"] = domain.ErrUnparsed

	res, err := newService(t, up).Search(context.Background(), app.SearchInput{Location: "london"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hotels) != 1 {
		t.Fatalf("want 1 hotel, got %d", len(res.Hotels))
	}
	h := res.Hotels[0]
	if h.AvailabilityStatus != domain.AvailabilityUnavailable || len(h.TopOffers) != 0 {
		t.Fatalf("unexpected listing %+v", h)
	}
	if up.called("view_room_gallery") != 0 {
		t.Fatalf("gallery must be skipped without rooms")
	}
	if !reflect.DeepEqual(res.Metadata.DefaultsApplied, []string{"dates"}) {
		t.Fatalf("unexpected defaults %v", res.Metadata.DefaultsApplied)
	}
	if res.Query.CheckIn != "2026-03-11" || res.Query.CheckOut != "2026-03-12" {
		t.Fatalf("unexpected default dates %s..%s", res.Query.CheckIn, res.Query.CheckOut)
	}
}

func TestSearch_GuestsClampedWithWarning(t *testing.T) {
	res, err := newService(t, newFakeUpstream()).Search(context.Background(), app.SearchInput{
		Location: "new york", CheckIn: ptr("2026-04-01"), CheckOut: ptr("2026-04-02"), Guests: ptr(0),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Query.Guests != 1 || res.Metadata.RawInput.Guests != 0 {
		t.Fatalf("unexpected guests %d / %d", res.Query.Guests, res.Metadata.RawInput.Guests)
	}
	if !reflect.DeepEqual(res.Metadata.DefaultsApplied, []string{"guests"}) || len(res.Metadata.Warnings) != 1 {
		t.Fatalf("unexpected metadata %+v", res.Metadata)
	}
}

func TestSearch_UnknownLocationAndBlank(t *testing.T) {
	svc := newService(t, newFakeUpstream())
	res, err := svc.Search(context.Background(), app.SearchInput{Location: "atlantis"})
	if err != nil || len(res.Hotels) != 0 {
		t.Fatalf("unknown location: %v, %d hotels", err, len(res.Hotels))
	}
	_, err = svc.Search(context.Background(), app.SearchInput{Location: "  "})
	if e := apiErr(t, err); e.Code != domain.CodeInvalidLocation {
		t.Fatalf("unexpected code %s", e.Code)
	}
}

func TestCompare_RanksAndFilters(t *testing.T) {
	up := newFakeUpstream()
	up.responses["get_prices"] = map[string]any{"prices": []any{map[string]any{"roomType": "Q", "totalAmount": "180"}}}
	svc := newService(t, up)

	res, err := svc.Compare(context.Background(), app.CompareInput{Location: "denver"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.Metadata.ComparisonCount != 1 || res.Metadata.FilteredByHotelIDs {
		t.Fatalf("unexpected metadata %+v", res.Metadata)
	}
	item := res.Comparison[0]
	if item.PropertyID != "prop_us_denver_rally_hotel" || item.RankByPrice == nil || *item.RankByPrice != 1 || *item.FromTotal != 180 {
		t.Fatalf("unexpected item %+v", item)
	}

	res, err = svc.Compare(context.Background(), app.CompareInput{Location: "denver", HotelIDs: []string{"sigtrip:Other"}})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res.Metadata.ComparisonCount != 0 || !res.Metadata.FilteredByHotelIDs || len(res.Comparison) != 0 {
		t.Fatalf("filter should drop everything: %+v", res)
	}
}

/********** booking **********/

func TestBook_ValidationCodes(t *testing.T) {
	up := newFakeUpstream()
	svc := newService(t, up)
	ctx := context.Background()

	cases := []struct {
		name, offer, guest, code string
	}{
		{"bad json", "sigtrip:The_Rally_Hotel:KING", `{"first_name":`, domain.CodeInvalidGuestDetailsJSON},
		{"not an object", "sigtrip:The_Rally_Hotel:KING", `["x"]`, domain.CodeInvalidGuestDetailsSchema},
		{"missing fields", "sigtrip:The_Rally_Hotel:KING", `{"first_name":"Ada"}`, domain.CodeInvalidGuestDetailsSchema},
		{"wrong type", "sigtrip:The_Rally_Hotel:KING", `{"first_name":1}`, domain.CodeInvalidGuestDetailsSchema},
		{"blank name", "sigtrip:The_Rally_Hotel:KING", strings.Replace(validGuest, `"Ada"`, `"  "`, 1), domain.CodeInvalidGuestDetailsSchema},
		{"email without at", "sigtrip:The_Rally_Hotel:KING", strings.Replace(validGuest, "ada@example.com", "ada.example.com", 1), domain.CodeInvalidGuestDetailsSchema},
		{"zero guests", "sigtrip:The_Rally_Hotel:KING", strings.Replace(validGuest, `"phone"`, `"guests":0,"phone"`, 1), domain.CodeInvalidGuestDetailsSchema},
		{"bad offer", "sigtrip:The_Rally_Hotel", validGuest, domain.CodeInvalidOfferID},
		{"foreign prefix", "other:The_Rally_Hotel:KING", validGuest, domain.CodeInvalidOfferID},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Book(ctx, c.offer, c.guest)
			e := apiErr(t, err)
			if e.Code != c.code || e.StatusCode != 400 {
				t.Fatalf("want %s/400, got %s/%d", c.code, e.Code, e.StatusCode)
			}
		})
	}
	if up.called("setup_booking") != 0 {
		t.Fatalf("invalid bookings must not reach upstream")
	}

	_, err := svc.Book(ctx, "sigtrip:X:Y", `{"first_name":"Ada"}`)
	details := apiErr(t, err).Details["validation_errors"].([]domain.FieldError)
	if len(details) != 5 {
		t.Fatalf("want 5 field errors, got %v", details)
	}
}

func TestBook_PaymentSessionAndReplay(t *testing.T) {
	up := newFakeUpstream()
	up.responses["setup_booking"] = map[string]any{
		"guaranteeUrl": "https://pay.example.com/s/1",
		"bookingId":    12345.0,
	}
	cache := newMemCache()
	journal := &memJournal{}
	svc := newService(t, up, app.WithCache(cache, time.Minute), app.WithJournal(journal))
	ctx := context.Background()

	out, err := svc.Book(ctx, "sigtrip:The_Rally_Hotel:KING", validGuest)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if out.Status != domain.BookingPaymentRequired || *out.PaymentURL != "https://pay.example.com/s/1" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.ProviderReference == nil || *out.ProviderReference != "12345" || *out.SessionExpiration != "15m" {
		t.Fatalf("unexpected reference/expiry %+v", out)
	}
	args := up.args["setup_booking"]
	if args["hotelName"] != "The Rally Hotel" || args["roomType"] != "KING" || args["guests"] != 1 {
		t.Fatalf("unexpected setup_booking args %v", args)
	}

	again, err := svc.Book(ctx, "sigtrip:The_Rally_Hotel:KING", validGuest)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if up.called("setup_booking") != 1 {
		t.Fatalf("identical request inside the session window must replay")
	}
	if !reflect.DeepEqual(out, again) {
		t.Fatalf("replayed outcome differs: %+v vs %+v", out, again)
	}

	entries, err := svc.Journal(ctx, "12345", 0)
	if err != nil || len(entries) != 1 || entries[0].Operation != domain.OpBook || entries[0].Provider != "sigtrip" {
		t.Fatalf("unexpected journal %v %+v", err, entries)
	}
}

func TestBook_UpstreamRefusalIsBookingFailed(t *testing.T) {
	up := newFakeUpstream()
	up.responses["setup_booking"] = map[string]any{"message": "sold out"}

	_, err := newService(t, up).Book(context.Background(), "sigtrip:The_Rally_Hotel:KING", validGuest)
	e := apiErr(t, err)
	if e.Code != domain.CodeBookingFailed || e.StatusCode != 422 || e.Details["offer_id"] != "sigtrip:The_Rally_Hotel:KING" {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestBook_TransportErrorIsInternal(t *testing.T) {
	up := newFakeUpstream()
	up.errs["setup_booking"] = errors.New("boom")

	_, err := newService(t, up).Book(context.Background(), "sigtrip:The_Rally_Hotel:KING", validGuest)
	if e := apiErr(t, err); e.Code != domain.CodeInternal || !e.Retryable {
		t.Fatalf("unexpected error %+v", e)
	}
}

/********** cancel / status **********/

func TestCancel_UnsupportedWithoutTool(t *testing.T) {
	up := newFakeUpstream()
	up.tools = toolList(tool("get_rooms", []string{"hotelName"}))
	obs := &countingObserver{}

	out, err := newService(t, up, app.WithObserver(obs)).Cancel(context.Background(), "R-1", "", "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != domain.CancellationUnsupported || out.Provider != "sigtrip" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(up.calls) != 0 {
		t.Fatalf("no tool may be called, got %v", up.calls)
	}
	if !reflect.DeepEqual(obs.got, []string{"cancel:unsupported"}) {
		t.Fatalf("unexpected observations %v", obs.got)
	}
}

func TestCancel_DiscoveryFailureIsUnsupported(t *testing.T) {
	up := newFakeUpstream()
	up.listErr = domain.ErrExhausted

	out, err := newService(t, up).Cancel(context.Background(), "R-1", "", "")
	if err != nil || out.Status != domain.CancellationUnsupported {
		t.Fatalf("want unsupported, got %+v (%v)", out, err)
	}
}

func TestCancel_MissingEmailIsReported(t *testing.T) {
	up := newFakeUpstream()
	up.tools = toolList(tool("cancel_reservation", []string{"reservationId", "email"}))

	_, err := newService(t, up).Cancel(context.Background(), "R-1", "", "")
	e := apiErr(t, err)
	if e.Code != domain.CodeMissingCancellationFields {
		t.Fatalf("unexpected code %s", e.Code)
	}
	if !reflect.DeepEqual(e.Details["required_fields"], []string{"email"}) {
		t.Fatalf("unexpected required fields %v", e.Details["required_fields"])
	}
	if e.Details["provider_booking_ref"] != "R-1" || e.Details["next_action"] == "" {
		t.Fatalf("unexpected details %v", e.Details)
	}
	if up.called("cancel_reservation") != 0 {
		t.Fatalf("cancel tool must not be called")
	}
}

func TestCancel_ConfirmedCancellationEvictsReplay(t *testing.T) {
	up := newFakeUpstream()
	up.tools = toolList(tool("cancel_booking", []string{"bookingId"}, "reason", "email"))
	up.responses["setup_booking"] = map[string]any{"guaranteeUrl": "https://pay/1", "bookingId": "B-9"}
	up.responses["cancel_booking"] = map[string]any{"status": "Cancelled", "message": "Your booking was cancelled"}
	cache := newMemCache()
	svc := newService(t, up, app.WithCache(cache, 0))
	ctx := context.Background()

	if _, err := svc.Book(ctx, "sigtrip:The_Rally_Hotel:KING", validGuest); err != nil {
		t.Fatalf("book: %v", err)
	}
	out, err := svc.Cancel(ctx, " B-9 ", "plans changed", "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != domain.CancellationCancelled || *out.Message != "Your booking was cancelled" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	want := map[string]any{"bookingId": "B-9", "reason": "plans changed"}
	if !reflect.DeepEqual(up.args["cancel_booking"], want) {
		t.Fatalf("unexpected cancel args %v", up.args["cancel_booking"])
	}
	if _, err := svc.Book(ctx, "sigtrip:The_Rally_Hotel:KING", validGuest); err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if up.called("setup_booking") != 2 {
		t.Fatalf("cancelled booking must not be replayed")
	}
}

// brokenDelCache stores entries but fails every delete.
type brokenDelCache struct{ *memCache }

func (brokenDelCache) Del(context.Context, string) error { return errors.New("redis: connection refused") }

func TestCancel_EvictionFailuresAreLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	up := newFakeUpstream()
	up.tools = toolList(tool("cancel_booking", []string{"bookingId"}))
	up.responses["setup_booking"] = map[string]any{"guaranteeUrl": "https://pay/1", "bookingId": "B-10"}
	up.responses["cancel_booking"] = map[string]any{"status": "cancelled"}
	svc := newService(t, up, app.WithCache(brokenDelCache{newMemCache()}, 0))
	ctx := context.Background()

	if _, err := svc.Book(ctx, "sigtrip:The_Rally_Hotel:KING", validGuest); err != nil {
		t.Fatalf("book: %v", err)
	}
	out, err := svc.Cancel(ctx, "B-10", "", "")
	if err != nil || out.Status != domain.CancellationCancelled {
		t.Fatalf("cache failures must not fail the cancel: %v %+v", err, out)
	}
	if n := strings.Count(buf.String(), `"message":"booking_cache_del_failed"`); n != 2 {
		t.Fatalf("want 2 del failures logged, got %d:\n%s", n, buf.String())
	}
	if !strings.Contains(buf.String(), `"provider_reference":"B-10"`) {
		t.Fatalf("log lines must carry the reference:\n%s", buf.String())
	}
}

func TestCancel_Classification(t *testing.T) {
	cases := []struct {
		name string
		resp map[string]any
		want domain.CancellationStatus
	}{
		{"success false", map[string]any{"success": false, "status": "cancelled"}, domain.CancellationFailed},
		{"error member", map[string]any{"error": "nope"}, domain.CancellationFailed},
		{"failure wins", map[string]any{"status": "cancellation failed"}, domain.CancellationFailed},
		{"negation is not failure", map[string]any{"success": true, "message": "Reservation cancelled. You will not be charged."}, domain.CancellationCancelled},
		{"success overrides failure words", map[string]any{"success": true, "message": "Cancelled; no error on refund"}, domain.CancellationCancelled},
		{"cannot alone is not failure", map[string]any{"message": "Cancelled. This cannot be undone."}, domain.CancellationCancelled},
		{"canceled spelling", map[string]any{"reservationStatus": "CANCELED"}, domain.CancellationCancelled},
		{"fallback text", map[string]any{domain.FallbackTextKey: "Request received"}, domain.CancellationPending},
		{"no signal", map[string]any{"ok": true}, domain.CancellationPending},
		{"nil result", nil, domain.CancellationFailed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			up := newFakeUpstream()
			up.tools = toolList(tool("cancel_booking", []string{"reservationId"}))
			up.responses["cancel_booking"] = c.resp
			out, err := newService(t, up).Cancel(context.Background(), "R-2", "", "")
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if out.Status != c.want {
				t.Fatalf("want %s, got %s", c.want, out.Status)
			}
		})
	}
}

func TestCancel_BlankReference(t *testing.T) {
	_, err := newService(t, newFakeUpstream()).Cancel(context.Background(), "   ", "", "")
	if e := apiErr(t, err); e.Code != domain.CodeInvalidBookingRef {
		t.Fatalf("unexpected code %s", e.Code)
	}
}

func TestStatus_Outcomes(t *testing.T) {
	cases := []struct {
		name  string
		tools map[string]any
		resp  map[string]any
		want  domain.ReservationState
	}{
		{"confirmed", toolList(tool("get_booking_status", []string{"reservationId"})), map[string]any{"message": "Reservation confirmed"}, domain.ReservationConfirmed},
		{"confirmed with negation", toolList(tool("get_booking_status", []string{"reservationId"})), map[string]any{"success": true, "message": "Booking confirmed. Card not charged until arrival."}, domain.ReservationConfirmed},
		{"pending", toolList(tool("booking_status", []string{"id"})), map[string]any{"bookingStatus": "processing"}, domain.ReservationPending},
		{"failed maps to unknown", toolList(tool("get_reservation_status", []string{"id"})), map[string]any{"status": "error"}, domain.ReservationUnknown},
		{"unsupported", toolList(), nil, domain.ReservationUnsupported},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			up := newFakeUpstream()
			up.tools = c.tools
			for _, name := range []string{"get_booking_status", "booking_status", "get_reservation_status"} {
				up.responses[name] = c.resp
			}
			out, err := newService(t, up).Status(context.Background(), "R-3")
			if err != nil {
				t.Fatalf("status: %v", err)
			}
			if out.Status != c.want {
				t.Fatalf("want %s, got %s", c.want, out.Status)
			}
		})
	}
}

func TestStatus_MissingFields(t *testing.T) {
	up := newFakeUpstream()
	up.tools = toolList(tool("get_booking_status", []string{"reservationId", "lastName"}))

	_, err := newService(t, up).Status(context.Background(), "R-4")
	e := apiErr(t, err)
	if e.Code != domain.CodeMissingStatusFields || !reflect.DeepEqual(e.Details["required_fields"], []string{"lastName"}) {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestJournal_Unavailable(t *testing.T) {
	_, err := newService(t, newFakeUpstream()).Journal(context.Background(), "R-1", 10)
	if e := apiErr(t, err); e.Code != domain.CodeJournalUnavailable || e.StatusCode != 503 {
		t.Fatalf("unexpected error %+v", e)
	}
}
