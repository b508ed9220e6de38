package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"sigtrip_wrapper/internal/adapters/sigtrip"
	"sigtrip_wrapper/internal/app"
	"sigtrip_wrapper/internal/negotiation"
)

const diagnosticsHotel = "The Rally Hotel"

// rawCaller issues JSON-RPC methods and returns the decoded envelope as is.
type rawCaller interface {
	Call(ctx context.Context, method string, params map[string]any) (map[string]any, error)
}

type scenario struct {
	Key       string         `json:"key"`
	Tool      string         `json:"tool"`
	Note      string         `json:"note"`
	Arguments map[string]any `json:"arguments"`
}

type snapshotOptions struct {
	OutDir      string
	Workers     int64
	CancelChain bool
	// CancelRef skips the setup step and cancels this reference instead.
	CancelRef string
	Email     string
	Phone     string
}

type snapshotResult struct {
	Dir       string
	Tools     []string
	Scenarios []scenarioRecord
}

type scenarioRecord struct {
	CapturedAt      string         `json:"captured_at"`
	UpstreamURL     string         `json:"upstream_url"`
	Scenario        string         `json:"scenario"`
	Note            string         `json:"note"`
	Request         map[string]any `json:"request"`
	Response        map[string]any `json:"response,omitempty"`
	Error           string         `json:"error,omitempty"`
	ToolListHasTool bool           `json:"tool_list_contains_tool"`
	ExtractedRef    string         `json:"extracted_booking_reference,omitempty"`
	SkippedReason   string         `json:"skipped_reason,omitempty"`
}

func snapshotCmd() *cobra.Command {
	var opts snapshotOptions
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture raw upstream responses for a fixed set of scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newUpstream(cmd)
			if err != nil {
				return err
			}
			res, err := runSnapshot(cmd.Context(), client, client.URL(), opts, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d scenarios to %s\n", len(res.Scenarios), res.Dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.OutDir, "out", "upstream_diagnostics", "output root directory")
	cmd.Flags().Int64Var(&opts.Workers, "workers", 4, "concurrent scenario calls")
	cmd.Flags().BoolVar(&opts.CancelChain, "cancel-chain", false, "run get_prices -> setup_booking -> negotiated cancel")
	cmd.Flags().StringVar(&opts.CancelRef, "cancel-ref", "", "cancel this booking reference instead of setting up a new booking")
	cmd.Flags().StringVar(&opts.Email, "email", "diagnostics@sigtrip.com", "guest email for the cancel chain")
	cmd.Flags().StringVar(&opts.Phone, "phone", "+15555555555", "guest phone for the cancel chain")
	return cmd
}

// SanitizeName turns an upstream URL into a directory name.
func SanitizeName(url string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	s = strings.NewReplacer("/", "-", ".", "_").Replace(s)
	s = strings.Trim(s, "-_")
	if s == "" {
		return "unknown_upstream"
	}
	return s
}

func defaultScenarios(today time.Time) []scenario {
	checkIn := today.Format("2006-01-02")
	checkOut := today.AddDate(0, 0, 1).Format("2006-01-02")
	booking := func(roomType, in, out string, guests int) map[string]any {
		return map[string]any{
			"hotelName": diagnosticsHotel, "roomType": roomType,
			"firstName": "Test", "lastName": "Diagnostics", "email": "diagnostics@example.com", "phoneNumber": "+10000000000",
			"checkIn": in, "checkOut": out, "guests": guests,
		}
	}
	return []scenario{
		{Key: "get_rooms.success", Tool: "get_rooms", Note: "room inventory for a known hotel",
			Arguments: roomsArgs(1)},
		{Key: "get_prices.success", Tool: "get_prices", Note: "prices for one night from today",
			Arguments: pricesArgs(checkIn, checkOut, 1)},
		{Key: "setup_booking.invalid_room_type.error", Tool: "setup_booking", Note: "room type the hotel does not sell",
			Arguments: booking("NOT_A_ROOM", checkIn, checkOut, 1)},
		{Key: "setup_booking.past_date.error", Tool: "setup_booking", Note: "stay in the past",
			Arguments: booking("KING", "2020-01-01", "2020-01-02", 1)},
		{Key: "setup_booking.too_many_guests.error", Tool: "setup_booking", Note: "guest count above any room capacity",
			Arguments: booking("KING", checkIn, checkOut, 99)},
		{Key: "cancel_booking.capability_check", Tool: "cancel_booking", Note: "whether cancellation is exposed",
			Arguments: map[string]any{"bookingId": "TEST_BOOKING_REF"}},
		{Key: "get_booking_status.capability_check", Tool: "get_booking_status", Note: "whether status lookup is exposed",
			Arguments: map[string]any{"bookingId": "TEST_BOOKING_REF"}},
	}
}

// Argument shapes match what the search path sends upstream.
func roomsArgs(adults int) map[string]any {
	return map[string]any{"hotelName": diagnosticsHotel, "adults": adults}
}

func pricesArgs(checkIn, checkOut string, adults int) map[string]any {
	return map[string]any{"hotelName": diagnosticsHotel, "arrivalDate": checkIn, "departureDate": checkOut, "adults": adults}
}

// runCancelChain books a room and cancels it through negotiation, writing
// chain.setup_booking and chain.cancel_booking records. The cancel call is
// skipped, with a reason, when no tool or no reference is available or the
// negotiated arguments are incomplete.
func runCancelChain(ctx context.Context, up rawCaller, tools map[string]negotiation.ToolDescriptor, base scenarioRecord, opts snapshotOptions, now time.Time) []scenarioRecord {
	var out []scenarioRecord
	ref := opts.CancelRef

	if ref == "" {
		checkIn := now.Format("2006-01-02")
		checkOut := now.AddDate(0, 0, 1).Format("2006-01-02")

		roomType := "KING"
		if env, err := up.Call(ctx, "tools/call", map[string]any{"name": "get_prices", "arguments": pricesArgs(checkIn, checkOut, 1)}); err == nil {
			if data, err := sigtrip.Result(env); err == nil {
				rawPrices, _ := data["prices"].([]any)
				if first, ok := firstMap(rawPrices); ok {
					if rt, ok := first["roomType"].(string); ok && rt != "" {
						roomType = rt
					}
				}
			}
		}

		setup := base
		setup.Scenario = "chain.setup_booking"
		setup.Note = "book a room so the cancel tool has a real reference"
		setup.Request = map[string]any{"name": "setup_booking", "arguments": map[string]any{
			"hotelName": diagnosticsHotel, "roomType": roomType,
			"firstName": "Diag", "lastName": "Runner", "email": opts.Email, "phoneNumber": opts.Phone,
			"checkIn": checkIn, "checkOut": checkOut, "guests": 1,
		}}
		_, setup.ToolListHasTool = tools["setup_booking"]
		env, err := up.Call(ctx, "tools/call", setup.Request)
		setup.Response = env
		if err != nil {
			setup.Error = err.Error()
		} else if data, err := sigtrip.Result(env); err == nil {
			setup.ExtractedRef, _ = app.BookingReference(data)
		}
		ref = setup.ExtractedRef
		out = append(out, setup)
	}

	cancel := base
	cancel.Scenario = "chain.cancel_booking"
	cancel.Note = "cancel the chained booking through the negotiated tool"
	name, ok := negotiation.FindSupported(tools, negotiation.CancelCandidates)
	cancel.ToolListHasTool = ok
	switch {
	case !ok:
		cancel.SkippedReason = "no cancel tool exposed by tools/list"
	case ref == "":
		cancel.SkippedReason = "no booking reference in setup_booking response"
	default:
		plan := negotiation.BuildArguments(tools[name], negotiation.Context{
			BookingReference: ref, Email: opts.Email, Reason: "Automated diagnostics cancellation check",
		})
		cancel.Request = map[string]any{"name": name, "arguments": plan.Arguments}
		if !plan.Ready() {
			cancel.SkippedReason = name + " needs " + strings.Join(plan.Missing, ", ")
			break
		}
		env, err := up.Call(ctx, "tools/call", cancel.Request)
		cancel.Response = env
		if err != nil {
			cancel.Error = err.Error()
		}
	}
	if cancel.SkippedReason != "" {
		log.Warn().Str("reason", cancel.SkippedReason).Msg("cancel_chain_skipped")
	}
	return append(out, cancel)
}

func firstMap(list []any) (map[string]any, bool) {
	if len(list) == 0 {
		return nil, false
	}
	m, ok := list[0].(map[string]any)
	return m, ok
}

func runSnapshot(ctx context.Context, up rawCaller, upstreamURL string, opts snapshotOptions, now time.Time) (snapshotResult, error) {
	dir := filepath.Join(opts.OutDir, SanitizeName(upstreamURL))
	if err := os.MkdirAll(filepath.Join(dir, "scenarios"), 0o755); err != nil {
		return snapshotResult{}, err
	}

	env, err := up.Call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return snapshotResult{}, fmt.Errorf("tools/list: %w", err)
	}
	result, _ := env["result"].(map[string]any)
	tools := negotiation.ParseTools(result)
	names := make([]string, 0, len(tools))
	for n := range tools {
		names = append(names, n)
	}
	sort.Strings(names)

	if err := writeJSON(filepath.Join(dir, "tools_list.raw.json"), env); err != nil {
		return snapshotResult{}, err
	}
	if err := writeJSON(filepath.Join(dir, "tools_list.names.json"), names); err != nil {
		return snapshotResult{}, err
	}

	scenarios := defaultScenarios(now)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(workers)
	var wg sync.WaitGroup
	records := make([]scenarioRecord, len(scenarios))

	for i, sc := range scenarios {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			break
		}
		wg.Add(1)
		go func(i int, sc scenario) {
			defer wg.Done()
			defer sem.Release(1)

			_, listed := tools[sc.Tool]
			rec := scenarioRecord{
				CapturedAt:      now.Format(time.RFC3339),
				UpstreamURL:     upstreamURL,
				Scenario:        sc.Key,
				Note:            sc.Note,
				Request:         map[string]any{"name": sc.Tool, "arguments": sc.Arguments},
				ToolListHasTool: listed,
			}
			resp, err := up.Call(ctx, "tools/call", rec.Request)
			if err != nil {
				rec.Error = err.Error()
				log.Warn().Err(err).Str("scenario", sc.Key).Msg("scenario_failed")
			}
			rec.Response = resp
			records[i] = rec
		}(i, sc)
	}
	wg.Wait()

	if opts.CancelChain || opts.CancelRef != "" {
		base := scenarioRecord{CapturedAt: now.Format(time.RFC3339), UpstreamURL: upstreamURL}
		records = append(records, runCancelChain(ctx, up, tools, base, opts, now)...)
	}

	for _, rec := range records {
		if rec.Scenario == "" {
			continue
		}
		if err := writeJSON(filepath.Join(dir, "scenarios", rec.Scenario+".json"), rec); err != nil {
			return snapshotResult{}, err
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "SUMMARY.md"), []byte(summary(upstreamURL, now, names, records)), 0o644); err != nil {
		return snapshotResult{}, err
	}
	log.Info().Str("dir", dir).Int("tools", len(names)).Int("scenarios", len(records)).Msg("snapshot_written")
	return snapshotResult{Dir: dir, Tools: names, Scenarios: records}, nil
}

func summary(url string, now time.Time, tools []string, records []scenarioRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Upstream diagnostics\n\n- upstream: `%s`\n- captured: %s\n\n", url, now.Format(time.RFC3339))
	b.WriteString("## Tools\n\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- `%s`\n", t)
	}
	b.WriteString("\n## Scenarios\n\n| scenario | listed | outcome |\n|---|---|---|\n")
	for _, r := range records {
		if r.Scenario == "" {
			continue
		}
		fmt.Fprintf(&b, "| %s | %t | %s |\n", r.Scenario, r.ToolListHasTool, outcome(r))
	}
	return b.String()
}

func outcome(r scenarioRecord) string {
	switch {
	case r.SkippedReason != "":
		return "skipped: " + r.SkippedReason
	case r.Error != "":
		return "transport error"
	case r.Response["error"] != nil:
		return "rpc error"
	}
	if res, ok := r.Response["result"].(map[string]any); ok && res["isError"] == true {
		return "tool error"
	}
	return "ok"
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
