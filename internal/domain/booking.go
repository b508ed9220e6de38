package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPaymentRequired BookingStatus = "payment_required"
	BookingFailed          BookingStatus = "failed"
)

type CancellationStatus string

const (
	CancellationCancelled   CancellationStatus = "cancelled"
	CancellationPending     CancellationStatus = "pending"
	CancellationFailed      CancellationStatus = "failed"
	CancellationUnsupported CancellationStatus = "unsupported"
)

type ReservationState string

const (
	ReservationConfirmed   ReservationState = "confirmed"
	ReservationCancelled   ReservationState = "cancelled"
	ReservationPending     ReservationState = "pending"
	ReservationUnknown     ReservationState = "unknown"
	ReservationUnsupported ReservationState = "unsupported"
)

// GuestDetails is the decoded guest_details payload of a booking request.
type GuestDetails struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Guests    *int   `json:"guests,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate reports every missing or out-of-range field. Guests defaults to 1.
func (g *GuestDetails) Validate() []FieldError {
	var errs []FieldError
	required := []struct {
		name string
		val  string
	}{
		{"first_name", g.FirstName},
		{"last_name", g.LastName},
		{"email", g.Email},
		{"phone", g.Phone},
		{"check_in", g.CheckIn},
		{"check_out", g.CheckOut},
	}
	for _, f := range required {
		if strings.TrimSpace(f.val) == "" {
			errs = append(errs, FieldError{Field: f.name, Message: "field required"})
		}
	}
	if g.Email != "" && !strings.Contains(g.Email, "@") {
		errs = append(errs, FieldError{Field: "email", Message: "must be an email address"})
	}
	if g.Guests == nil {
		one := 1
		g.Guests = &one
	} else if *g.Guests < 1 {
		errs = append(errs, FieldError{Field: "guests", Message: "must be >= 1"})
	}
	return errs
}

// GuestCount returns the validated guest count.
func (g GuestDetails) GuestCount() int {
	if g.Guests == nil {
		return 1
	}
	return *g.Guests
}

type BookingOutcome struct {
	Status            BookingStatus `json:"status"`
	PaymentURL        *string       `json:"payment_url"`
	SessionExpiration *string       `json:"session_expiration"`
	ProviderReference *string       `json:"provider_reference"`
	Error             *string       `json:"error,omitempty"`
	ContractVersion   string        `json:"contract_version,omitempty"`
}

type CancellationOutcome struct {
	Status            CancellationStatus `json:"status"`
	Provider          string             `json:"provider"`
	ProviderReference *string            `json:"provider_reference"`
	Message           *string            `json:"message"`
	RequiredFields    []string           `json:"required_fields"`
	NextAction        *string            `json:"next_action"`
	ContractVersion   string             `json:"contract_version,omitempty"`
}

type StatusOutcome struct {
	Status            ReservationState `json:"status"`
	Provider          string           `json:"provider"`
	ProviderReference *string          `json:"provider_reference"`
	Message           *string          `json:"message"`
	RequiredFields    []string         `json:"required_fields,omitempty"`
	NextAction        *string          `json:"next_action,omitempty"`
	ContractVersion   string           `json:"contract_version,omitempty"`
}

// Journal operations.
const (
	OpBook   = "book"
	OpCancel = "cancel"
	OpStatus = "status"
)

// JournalEntry is one recorded booking-lifecycle outcome.
type JournalEntry struct {
	ID                int64           `json:"id"`
	Operation         string          `json:"operation"`
	Provider          string          `json:"provider"`
	ProviderReference string          `json:"provider_reference"`
	OfferID           string          `json:"offer_id,omitempty"`
	Status            string          `json:"status"`
	ErrorCode         string          `json:"error_code,omitempty"`
	PayloadJSON       json.RawMessage `json:"payload,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}
