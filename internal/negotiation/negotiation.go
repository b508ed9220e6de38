// Package negotiation discovers optional upstream tools and builds
// arguments for them from what the caller can supply.
package negotiation

import (
	"fmt"
	"sort"
	"strings"
)

// Candidate tool names in priority order.
var (
	CancelCandidates = []string{"cancel_booking", "cancel_reservation", "cancel_booking_request"}
	StatusCandidates = []string{"get_booking_status", "booking_status", "get_reservation_status"}
)

// FieldSet is a set of schema field names.
type FieldSet map[string]struct{}

func NewFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s FieldSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ToolDescriptor is one discovered tool with its input schema reduced to
// required and declared field names.
type ToolDescriptor struct {
	Name     string
	Required FieldSet
	Known    FieldSet
}

// Slot is a value the caller may be able to supply.
type Slot int

const (
	SlotBookingReference Slot = iota
	SlotEmail
	SlotReason
)

func (s Slot) String() string {
	switch s {
	case SlotBookingReference:
		return "booking_reference"
	case SlotEmail:
		return "email"
	case SlotReason:
		return "reason"
	}
	return "unknown"
}

type fieldRule struct {
	field string
	slot  Slot
	// onDeclared fills the field when it is merely declared; otherwise only
	// a required field is filled.
	onDeclared bool
}

// Email is filled only when required, reference and reason fields whenever
// declared.
var rules = []fieldRule{
	{"reservationId", SlotBookingReference, true},
	{"bookingId", SlotBookingReference, true},
	{"id", SlotBookingReference, true},
	{"email", SlotEmail, false},
	{"reason", SlotReason, true},
	{"description", SlotReason, true},
}

// Context carries the caller-supplied slot values. Empty means absent.
type Context struct {
	BookingReference string
	Email            string
	Reason           string
}

func (c Context) value(s Slot) string {
	switch s {
	case SlotBookingReference:
		return strings.TrimSpace(c.BookingReference)
	case SlotEmail:
		return strings.TrimSpace(c.Email)
	case SlotReason:
		return strings.TrimSpace(c.Reason)
	}
	return ""
}

// Plan is either a ready argument set or the list of missing fields.
type Plan struct {
	Arguments  map[string]any
	Missing    []string
	NextAction string
}

func (p Plan) Ready() bool { return len(p.Missing) == 0 }

// FindSupported returns the first candidate present in tools.
func FindSupported(tools map[string]ToolDescriptor, candidates []string) (string, bool) {
	for _, name := range candidates {
		if _, ok := tools[name]; ok {
			return name, true
		}
	}
	return "", false
}

// BuildArguments fills the descriptor's fields from c. A required field with
// no value, including one no slot can fill, is reported missing. A ready
// plan with no arguments falls back to {reservationId, reason?}.
func BuildArguments(desc ToolDescriptor, c Context) Plan {
	args := map[string]any{}
	missing := FieldSet{}
	handled := FieldSet{}

	for _, r := range rules {
		required := desc.Required.Has(r.field)
		wanted := required || (r.onDeclared && desc.Known.Has(r.field))
		if !wanted {
			continue
		}
		handled[r.field] = struct{}{}
		if v := c.value(r.slot); v != "" {
			args[r.field] = v
		} else if required {
			missing[r.field] = struct{}{}
		}
	}
	for f := range desc.Required {
		if !handled.Has(f) {
			missing[f] = struct{}{}
		}
	}

	if len(missing) > 0 {
		fields := missing.Sorted()
		return Plan{
			Missing:    fields,
			NextAction: fmt.Sprintf("Provide %s and retry %s.", strings.Join(fields, ", "), desc.Name),
		}
	}
	if len(args) == 0 {
		args["reservationId"] = c.value(SlotBookingReference)
		if reason := c.value(SlotReason); reason != "" {
			args["reason"] = reason
		}
	}
	return Plan{Arguments: args}
}
