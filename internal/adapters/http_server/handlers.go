package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"sigtrip_wrapper/internal/app"
	"sigtrip_wrapper/internal/domain"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	Svc *app.Service
	// Readiness returns the reasons the service cannot serve traffic.
	Readiness func(ctx context.Context) []string
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type bookingRequest struct {
	OfferID      string          `json:"offer_id"`
	RoomID       string          `json:"room_id"`
	GuestDetails json.RawMessage `json:"guest_details"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
	Email  string `json:"email"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/readyz", h.readyz)

	s.mux.Route("/v1", func(r chi.Router) {
		r.Use(Timeout(s.timeout))
		r.Post("/search", h.search)
		r.Post("/compare", h.compare)
		r.Post("/bookings", h.createBooking)
		r.Post("/bookings/{ref}/cancel", h.cancelBooking)
		r.Get("/bookings/{ref}", h.bookingStatus)
		r.Get("/bookings/{ref}/journal", h.bookingJournal)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeError sends the error envelope with the status its code maps to.
func writeError(w http.ResponseWriter, err error) {
	env := domain.Envelope(err)
	status := env.Error.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, env)
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeTagged(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write tagged body")
	}
}

// decodeBody reads an optional JSON body. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	return true
}

// guestDetailsText accepts guest_details as a JSON string or an inline object.
func guestDetailsText(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return trimmed
}

// offerIDOrRoomID prefers offer_id and falls back to the legacy room_id.
func offerIDOrRoomID(offerID, roomID string) string {
	if id := strings.TrimSpace(offerID); id != "" {
		return id
	}
	return strings.TrimSpace(roomID)
}

func (h *Handlers) readyz(w http.ResponseWriter, r *http.Request) {
	var issues []string
	if h.Readiness != nil {
		issues = h.Readiness(r.Context())
	}
	if len(issues) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "issues": issues})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	var in app.SearchInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := h.Svc.Search(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) compare(w http.ResponseWriter, r *http.Request) {
	var in app.CompareInput
	if !decodeBody(w, r, &in) {
		return
	}
	res, err := h.Svc.Compare(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var in bookingRequest
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := h.Svc.Book(r.Context(), offerIDOrRoomID(in.OfferID, in.RoomID), guestDetailsText(in.GuestDetails))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	var in cancelRequest
	if !decodeBody(w, r, &in) {
		return
	}
	out, err := h.Svc.Cancel(r.Context(), chi.URLParam(r, "ref"), in.Reason, in.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) bookingStatus(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.Status(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) bookingJournal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 100 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 100")
			return
		}
		limit = l
	}
	ref := chi.URLParam(r, "ref")
	entries, err := h.Svc.Journal(r.Context(), ref, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTagged(w, r, map[string]any{"provider_reference": ref, "entries": entries})
}
