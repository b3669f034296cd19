package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/notifications"
)

const (
	BookingCreated       = "booking.created"
	BookingAwaitingProof = "booking.awaiting_verification"
	BookingConfirmed     = "booking.confirmed"
	BookingPaymentFailed = "booking.payment_failed"
	BookingExpired       = "booking.expired"
	BookingCancelled     = "booking.cancelled"
	BookingCheckedIn     = "booking.checked_in"
	BookingOverridden    = "booking.overridden"
	BookingPaidConflict  = "booking.paid_conflict"
	PaymentInitiated     = "payment.initiated"
	PaymentUpdated       = "payment.updated"
)

// Event describes a committed change. Events are only emitted after the
// transaction that produced them has committed.
type Event struct {
	Type          string    `json:"type"`
	BookingID     uuid.UUID `json:"booking_id"`
	ReferenceCode string    `json:"reference_code,omitempty"`
	PaymentID     uuid.UUID `json:"payment_id,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	FromState     string    `json:"from_state,omitempty"`
	ToState       string    `json:"to_state,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	GuestName     string    `json:"guest_name,omitempty"`
	GuestEmail    string    `json:"-"`
	RoomNumber    string    `json:"room_number,omitempty"`
	CheckIn       string    `json:"check_in,omitempty"`
	CheckOut      string    `json:"check_out,omitempty"`
	Nights        int       `json:"nights,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

type brokerSink interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type feedSink interface {
	Publish(message interface{})
}

type mailer interface {
	SendBookingConfirmed(ctx context.Context, b notifications.BookingConfirmation) error
}

// Dispatcher delivers events to the message broker, the admin live feed and,
// for confirmations, the guest's inbox. Each sink is optional and failures
// are logged without affecting the caller.
type Dispatcher struct {
	broker brokerSink
	feed   feedSink
	mail   mailer
	wg     sync.WaitGroup
}

type Option func(*Dispatcher)

func WithBroker(b brokerSink) Option { return func(d *Dispatcher) { d.broker = b } }

func WithFeed(f feedSink) Option { return func(d *Dispatcher) { d.feed = f } }

func WithMailer(m mailer) Option { return func(d *Dispatcher) { d.mail = m } }

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if d.feed != nil {
		d.feed.Publish(e)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// Detached from the request so delivery outlives the response.
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()

		if d.broker != nil {
			if err := d.broker.PublishJSON(bg, e.Type, e); err != nil {
				logging.Log.WithField("event", e.Type).Errorf("🔥 Failed to publish event: %v", err)
			}
		}
		if d.mail != nil && e.Type == BookingConfirmed && e.GuestEmail != "" {
			err := d.mail.SendBookingConfirmed(bg, notifications.BookingConfirmation{
				GuestName:     e.GuestName,
				GuestEmail:    e.GuestEmail,
				ReferenceCode: e.ReferenceCode,
				RoomNumber:    e.RoomNumber,
				CheckIn:       e.CheckIn,
				CheckOut:      e.CheckOut,
				Nights:        e.Nights,
				AmountPaid:    e.Amount,
				Currency:      e.Currency,
			})
			if err != nil {
				logging.Log.WithFields(map[string]interface{}{
					"event":   e.Type,
					"booking": e.ReferenceCode,
				}).Errorf("🔥 Failed to send confirmation email: %v", err)
			}
		}
	}()
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Count(eventType string) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type == eventType {
			n++
		}
	}
	return n
}
