package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anjiri1684/hotel_booking/logging"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoService struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	Endpoint    string
	client      *http.Client
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

// NewEmailService returns nil when the sender is not configured; callers
// treat a nil service as "email disabled".
func NewEmailService(apiKey, senderEmail, senderName string) *BrevoService {
	if apiKey == "" || senderEmail == "" || senderName == "" {
		logging.Log.Warn("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		return nil
	}
	logging.Log.Info("✅ Email service initialized successfully.")
	return &BrevoService{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Endpoint:    brevoEndpoint,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *BrevoService) Send(ctx context.Context, toEmail, toName, subject, htmlContent string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		logging.Log.Errorf("Brevo API error: Status %d, Body: %s", resp.StatusCode, string(bodyBytes))
		return fmt.Errorf("failed to send email via Brevo: %s", string(bodyBytes))
	}
	return nil
}

type BookingConfirmation struct {
	GuestName     string
	GuestEmail    string
	ReferenceCode string
	RoomNumber    string
	CheckIn       string
	CheckOut      string
	Nights        int
	AmountPaid    float64
	Currency      string
}

func (s *BrevoService) SendBookingConfirmed(ctx context.Context, b BookingConfirmation) error {
	subject := fmt.Sprintf("Booking %s confirmed", b.ReferenceCode)
	html := fmt.Sprintf(`<h2>Your stay is confirmed</h2>
<p>Hi %s,</p>
<p>We have received your payment of %s %.2f for booking <strong>%s</strong>.</p>
<p>Room %s, %s to %s (%d nights).</p>
<p>Please keep this reference handy at check-in.</p>`,
		b.GuestName, b.Currency, b.AmountPaid, b.ReferenceCode, b.RoomNumber, b.CheckIn, b.CheckOut, b.Nights)

	if err := s.Send(ctx, b.GuestEmail, b.GuestName, subject, html); err != nil {
		logging.Log.Errorf("🔥 Failed to send confirmation to %s: %v", b.GuestEmail, err)
		return err
	}
	logging.Log.Infof("✅ Confirmation email sent to %s", b.GuestEmail)
	return nil
}

func (s *BrevoService) SendArrivalReminder(ctx context.Context, b BookingConfirmation) error {
	subject := fmt.Sprintf("See you tomorrow, booking %s", b.ReferenceCode)
	html := fmt.Sprintf(`<h2>Your stay starts tomorrow</h2>
<p>Hi %s,</p>
<p>This is a reminder that your booking <strong>%s</strong> for room %s begins on %s.</p>
<p>Check-out is on %s. Please bring a photo ID to the front desk.</p>`,
		b.GuestName, b.ReferenceCode, b.RoomNumber, b.CheckIn, b.CheckOut)

	if err := s.Send(ctx, b.GuestEmail, b.GuestName, subject, html); err != nil {
		logging.Log.Errorf("🔥 Failed to send arrival reminder to %s: %v", b.GuestEmail, err)
		return err
	}
	return nil
}
