package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/anjiri1684/hotel_booking/models"
)

// gatewayZone is the zone the gateway reports addedon timestamps in.
var gatewayZone = time.FixedZone("IST", 5*3600+30*60)

const addedOnLayout = "2006-01-02 15:04:05"

// Callback is the form payload the gateway posts back after checkout.
type Callback struct {
	Status      string
	TxnID       string
	Amount      string
	FirstName   string
	Email       string
	Phone       string
	ProductInfo string
	EasepayID   string
	Hash        string
	AddedOn     string
	ErrorMsg    string
	UDF         [udfCount]string
}

// CallbackFromForm builds a Callback from decoded form values. Missing fields
// become empty strings, which then simply fail hash verification.
func CallbackFromForm(form map[string]string) Callback {
	c := Callback{
		Status:      strings.TrimSpace(form["status"]),
		TxnID:       strings.TrimSpace(form["txnid"]),
		Amount:      strings.TrimSpace(form["amount"]),
		FirstName:   form["firstname"],
		Email:       form["email"],
		Phone:       form["phone"],
		ProductInfo: form["productinfo"],
		EasepayID:   form["easepayid"],
		Hash:        form["hash"],
		AddedOn:     form["addedon"],
		ErrorMsg:    form["error_Message"],
	}
	for i := 0; i < udfCount; i++ {
		c.UDF[i] = form[fmt.Sprintf("udf%d", i+1)]
	}
	return c
}

// EventTime returns when the gateway recorded the event, falling back to
// received when the payload carries no usable timestamp.
func (c Callback) EventTime(received time.Time) time.Time {
	if t, ok := parseAddedOn(c.AddedOn); ok {
		return t
	}
	return received
}

func parseAddedOn(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(addedOnLayout, s, gatewayZone)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// MapStatus converts a gateway transaction status into the internal payment
// status. Only an explicit success completes a payment; in-flight reports
// stay processing and everything else fails.
func MapStatus(gatewayStatus string) models.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case "success":
		return models.PaymentCompleted
	case "pending", "initiated":
		return models.PaymentProcessing
	default:
		return models.PaymentFailed
	}
}
