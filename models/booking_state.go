package models

import (
	"errors"
	"fmt"
	"strings"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCheckedIn BookingStatus = "checked-in"
	BookingCancelled BookingStatus = "cancelled"
	BookingFailed    BookingStatus = "failed"
)

// BookingPaymentStatus is the payment view stored on the booking row. It is
// distinct from the status of an individual Payment attempt.
type BookingPaymentStatus string

const (
	BookingPaymentPending             BookingPaymentStatus = "pending"
	BookingPaymentVerificationPending BookingPaymentStatus = "verification_pending"
	BookingPaymentPaid                BookingPaymentStatus = "paid"
	BookingPaymentFailed              BookingPaymentStatus = "failed"
)

var (
	ErrInvalidState      = errors.New("invalid booking state")
	ErrIllegalTransition = errors.New("illegal booking transition")
)

// BookingState enumerates the only (status, payment_status) pairs a booking
// may be in. Bookings never hold a pair outside this list.
type BookingState int

const (
	StateInvalid BookingState = iota
	StateReserved
	StateAwaitingVerification
	StatePaymentFailed
	StateConfirmed
	StateCheckedIn
	StateExpired
	StateCancelled
)

type statePair struct {
	name    string
	status  BookingStatus
	payment BookingPaymentStatus
	holds   bool
}

var statePairs = map[BookingState]statePair{
	StateReserved:             {"reserved", BookingPending, BookingPaymentPending, true},
	StateAwaitingVerification: {"awaiting_verification", BookingPending, BookingPaymentVerificationPending, true},
	StatePaymentFailed:        {"payment_failed", BookingPending, BookingPaymentFailed, false},
	StateConfirmed:            {"confirmed", BookingConfirmed, BookingPaymentPaid, true},
	StateCheckedIn:            {"checked_in", BookingCheckedIn, BookingPaymentPaid, true},
	StateExpired:              {"expired", BookingFailed, BookingPaymentFailed, false},
	StateCancelled:            {"cancelled", BookingCancelled, BookingPaymentFailed, false},
}

// allStates keeps iteration order stable for query building.
var allStates = []BookingState{
	StateReserved,
	StateAwaitingVerification,
	StatePaymentFailed,
	StateConfirmed,
	StateCheckedIn,
	StateExpired,
	StateCancelled,
}

func (s BookingState) String() string {
	if p, ok := statePairs[s]; ok {
		return p.name
	}
	return "invalid"
}

func (s BookingState) Status() BookingStatus { return statePairs[s].status }

func (s BookingState) PaymentStatus() BookingPaymentStatus { return statePairs[s].payment }

// HoldsRoom reports whether a booking in this state blocks its room for the
// booked dates.
func (s BookingState) HoldsRoom() bool { return statePairs[s].holds }

func StateOf(status BookingStatus, payment BookingPaymentStatus) (BookingState, error) {
	status = BookingStatus(strings.ToLower(string(status)))
	payment = BookingPaymentStatus(strings.ToLower(string(payment)))
	for _, s := range allStates {
		p := statePairs[s]
		if p.status == status && p.payment == payment {
			return s, nil
		}
	}
	return StateInvalid, fmt.Errorf("%w: status=%q payment_status=%q", ErrInvalidState, status, payment)
}

func ParseState(name string) (BookingState, error) {
	for _, s := range allStates {
		if statePairs[s].name == name {
			return s, nil
		}
	}
	return StateInvalid, fmt.Errorf("%w: %q", ErrInvalidState, name)
}

// HeldCondition returns a WHERE fragment matching bookings whose state holds
// the room, for use as db.Where(cond, args...).
func HeldCondition() (string, []interface{}) {
	var parts []string
	var args []interface{}
	for _, s := range allStates {
		p := statePairs[s]
		if !p.holds {
			continue
		}
		parts = append(parts, "(status = ? AND payment_status = ?)")
		args = append(args, string(p.status), string(p.payment))
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// HeldPredicateSQL renders HeldCondition with its constant values inlined,
// for DDL that cannot take bind parameters.
func HeldPredicateSQL() string {
	var parts []string
	for _, s := range allStates {
		p := statePairs[s]
		if !p.holds {
			continue
		}
		parts = append(parts, fmt.Sprintf("(status = '%s' AND payment_status = '%s')", p.status, p.payment))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

type Transition struct {
	Name string
	From []BookingState
	To   BookingState
}

var (
	SubmitProof    = Transition{Name: "submit_proof", From: []BookingState{StateReserved, StatePaymentFailed}, To: StateAwaitingVerification}
	ConfirmPayment = Transition{Name: "confirm_payment", From: []BookingState{StateReserved, StateAwaitingVerification, StatePaymentFailed, StateExpired}, To: StateConfirmed}
	FailPayment    = Transition{Name: "fail_payment", From: []BookingState{StateReserved, StateAwaitingVerification}, To: StatePaymentFailed}
	Expire         = Transition{Name: "expire", From: []BookingState{StateReserved}, To: StateExpired}
	Cancel         = Transition{Name: "cancel", From: []BookingState{StateReserved, StateAwaitingVerification, StatePaymentFailed}, To: StateCancelled}
	CheckIn        = Transition{Name: "check_in", From: []BookingState{StateConfirmed}, To: StateCheckedIn}
)

// Override is the administrative escape hatch. It accepts any valid source
// state and must always be accompanied by an audit record.
func Override(to BookingState) Transition {
	return Transition{Name: "override", From: allStates, To: to}
}

func (t Transition) Allows(from BookingState) bool {
	for _, s := range t.From {
		if s == from {
			return true
		}
	}
	return false
}
