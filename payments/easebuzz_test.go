package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/models"
)

const (
	testKey  = "2PBP7IABZ2"
	testSalt = "DAH88E3UWQ"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *EasebuzzClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewEasebuzzClient(EasebuzzConfig{
		Key:          testKey,
		Salt:         testSalt,
		Timeout:      2 * time.Second,
		SuccessURL:   "http://localhost:8080/api/v1/payments/webhook",
		FailureURL:   "http://localhost:8080/api/v1/payments/webhook",
		BaseURL:      srv.URL,
		DashboardURL: srv.URL,
	})
}

func signedCallback(status string) Callback {
	cb := Callback{
		Status:      status,
		TxnID:       "TXN1",
		Amount:      "4500.00",
		FirstName:   "Asha",
		Email:       "asha@example.com",
		ProductInfo: "Booking BK7Q2M9XZA",
		EasepayID:   "E2501",
		AddedOn:     "2025-12-01 10:15:00",
	}
	cb.UDF[0] = "booking-id"
	cb.Hash = ResponseHash(testKey, testSalt, cb)
	return cb
}

func TestHashPreimages(t *testing.T) {
	t.Run("Given a request When hashed Then fields are joined in gateway order", func(t *testing.T) {
		r := InitiateRequest{TxnID: "T1", Amount: 100, ProductInfo: "P", FirstName: "F", Email: "e@x.io"}
		r.UDF[0] = "u1"
		want := testKey + "|T1|100.00|P|F|e@x.io|u1|||||||||" + "|" + testSalt
		if got := requestHashString(testKey, testSalt, r); got != want {
			t.Errorf("request pre-image\n got %q\nwant %q", got, want)
		}
		if len(RequestHash(testKey, testSalt, r)) != 128 {
			t.Error("expected a 128 char sha512 hex digest")
		}
	})

	t.Run("Given a callback When reverse hashed Then salt and status lead and udfs are reversed", func(t *testing.T) {
		cb := Callback{Status: "success", TxnID: "T1", Amount: "100.00", FirstName: "F", Email: "e@x.io", ProductInfo: "P"}
		cb.UDF[0] = "u1"
		cb.UDF[9] = "u10"
		want := testSalt + "|success|u10|||||||||u1|e@x.io|F|P|100.00|T1|" + testKey
		if got := responseHashString(testKey, testSalt, cb); got != want {
			t.Errorf("response pre-image\n got %q\nwant %q", got, want)
		}
	})
}

func TestVerifyCallback(t *testing.T) {
	c := NewEasebuzzClient(EasebuzzConfig{Key: testKey, Salt: testSalt})

	t.Run("Given a correctly signed callback When verified Then accepted", func(t *testing.T) {
		if !c.VerifyCallback(signedCallback("success")) {
			t.Fatal("expected signed callback to verify")
		}
	})

	t.Run("Given an uppercase digest When verified Then accepted", func(t *testing.T) {
		cb := signedCallback("success")
		cb.Hash = strings.ToUpper(cb.Hash)
		if !c.VerifyCallback(cb) {
			t.Fatal("hex comparison should ignore case")
		}
	})

	t.Run("Given a tampered status When verified Then rejected", func(t *testing.T) {
		cb := signedCallback("failure")
		cb.Status = "success"
		if c.VerifyCallback(cb) {
			t.Fatal("status flip must break the signature")
		}
	})

	t.Run("Given a tampered amount When verified Then rejected", func(t *testing.T) {
		cb := signedCallback("success")
		cb.Amount = "1.00"
		if c.VerifyCallback(cb) {
			t.Fatal("amount change must break the signature")
		}
	})

	t.Run("Given no hash When verified Then rejected", func(t *testing.T) {
		cb := signedCallback("success")
		cb.Hash = ""
		if c.VerifyCallback(cb) {
			t.Fatal("missing hash must not verify")
		}
	})
}

func TestCallbackFromForm(t *testing.T) {
	cb := CallbackFromForm(map[string]string{
		"status":  " success ",
		"txnid":   "TXN9",
		"udf1":    "b1",
		"udf10":   "b10",
		"addedon": "2025-12-01 10:15:00",
	})
	if cb.Status != "success" || cb.TxnID != "TXN9" {
		t.Errorf("unexpected callback %+v", cb)
	}
	if cb.UDF[0] != "b1" || cb.UDF[9] != "b10" {
		t.Errorf("udf fields not mapped: %v", cb.UDF)
	}

	got := cb.EventTime(time.Now())
	want := time.Date(2025, 12, 1, 4, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("EventTime() = %v, want %v", got, want)
	}

	received := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := (Callback{AddedOn: "garbage"}).EventTime(received); !got.Equal(received) {
		t.Errorf("unparseable addedon should fall back to receipt time, got %v", got)
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]models.PaymentStatus{
		"success":       models.PaymentCompleted,
		"SUCCESS":       models.PaymentCompleted,
		"pending":       models.PaymentProcessing,
		"initiated":     models.PaymentProcessing,
		"failure":       models.PaymentFailed,
		"userCancelled": models.PaymentFailed,
		"":              models.PaymentFailed,
	}
	for in, want := range cases {
		if got := MapStatus(in); got != want {
			t.Errorf("MapStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestInitiate(t *testing.T) {
	t.Run("Given the gateway accepts When initiating Then checkout url uses the access key", func(t *testing.T) {
		var gotHash, gotSurl string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/payment/initiateLink" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			_ = r.ParseForm()
			gotHash = r.PostForm.Get("hash")
			gotSurl = r.PostForm.Get("surl")
			fmt.Fprint(w, `{"status":1,"data":"ak_123"}`)
		})

		req := InitiateRequest{TxnID: "TXN1", Amount: 4500, ProductInfo: "Booking", FirstName: "Asha", Email: "asha@example.com"}
		res, err := c.Initiate(context.Background(), req)
		if err != nil {
			t.Fatalf("Initiate failed: %v", err)
		}
		if res.AccessKey != "ak_123" || !strings.HasSuffix(res.CheckoutURL, "/pay/ak_123") {
			t.Errorf("unexpected result %+v", res)
		}
		if gotHash != RequestHash(testKey, testSalt, req) {
			t.Error("request hash not sent")
		}
		if gotSurl == "" {
			t.Error("surl not sent")
		}
	})

	t.Run("Given the gateway rejects When initiating Then returns rejected error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":0,"error_desc":"Invalid hash","data":"Parameter validation failed"}`)
		})
		_, err := c.Initiate(context.Background(), InitiateRequest{TxnID: "TXN1", Amount: 1})
		if !errors.Is(err, apperr.ErrGatewayRejected) {
			t.Fatalf("expected ErrGatewayRejected, got %v", err)
		}
	})

	t.Run("Given a 5xx When initiating Then returns unreachable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := c.Initiate(context.Background(), InitiateRequest{TxnID: "TXN1", Amount: 1})
		if !errors.Is(err, apperr.ErrGatewayUnreachable) {
			t.Fatalf("expected ErrGatewayUnreachable, got %v", err)
		}
	})
}

func TestCheckStatus(t *testing.T) {
	t.Run("Given a success object When polled Then returns the transaction", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/transaction/v1/retrieve" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			_ = r.ParseForm()
			if r.PostForm.Get("hash") != StatusHash(testKey, "TXN1", testSalt) {
				t.Error("status hash mismatch")
			}
			fmt.Fprint(w, `{"status":true,"msg":{"txnid":"TXN1","status":"success","amount":"4500.00","easepayid":"E1","addedon":"2025-12-01 10:15:00"}}`)
		})
		res, err := c.CheckStatus(context.Background(), "TXN1")
		if err != nil {
			t.Fatalf("CheckStatus failed: %v", err)
		}
		if !res.Found || res.Status != "success" || res.GatewayTxnID != "E1" || res.EventAt == nil {
			t.Errorf("unexpected result %+v", res)
		}
		if !AmountMatches(res.Amount, 4500) {
			t.Errorf("amount %q should match 4500", res.Amount)
		}
	})

	t.Run("Given a numeric amount in a list When polled Then picks the matching txn", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":1,"msg":[{"txnid":"OTHER","status":"failure"},{"txnid":"TXN1","status":"pending","amount":12.5}]}`)
		})
		res, err := c.CheckStatus(context.Background(), "TXN1")
		if err != nil {
			t.Fatalf("CheckStatus failed: %v", err)
		}
		if res.Status != "pending" || res.Amount != "12.5" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("Given a not found message When polled Then returns not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":false,"msg":"Transaction not found"}`)
		})
		res, err := c.CheckStatus(context.Background(), "TXN1")
		if err != nil {
			t.Fatalf("CheckStatus failed: %v", err)
		}
		if res.Found {
			t.Error("expected Found=false")
		}
	})

	t.Run("Given an unknown shape When polled Then fails closed", func(t *testing.T) {
		for _, body := range []string{
			`{"status":"maybe","msg":{}}`,
			`{"status":true,"msg":{"txnid":"TXN1"}}`,
			`{"status":true,"msg":{"txnid":"TXN2","status":"success"}}`,
			`{"status":true}`,
			`<html>down</html>`,
		} {
			body := body
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})
			if _, err := c.CheckStatus(context.Background(), "TXN1"); !errors.Is(err, apperr.ErrGatewayUnreachable) {
				t.Errorf("body %s: expected ErrGatewayUnreachable, got %v", body, err)
			}
		}
	})

	t.Run("Given a slow gateway When polled Then times out as unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		t.Cleanup(srv.Close)
		c := NewEasebuzzClient(EasebuzzConfig{Key: testKey, Salt: testSalt, Timeout: 50 * time.Millisecond, DashboardURL: srv.URL})
		if _, err := c.CheckStatus(context.Background(), "TXN1"); !errors.Is(err, apperr.ErrGatewayUnreachable) {
			t.Fatalf("expected ErrGatewayUnreachable, got %v", err)
		}
	})
}

func TestTxnIDGenerator(t *testing.T) {
	g, err := NewTxnIDGenerator(1)
	if err != nil {
		t.Fatalf("NewTxnIDGenerator failed: %v", err)
	}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.Next()
		if !strings.HasPrefix(id, "TXN") {
			t.Fatalf("id %q missing prefix", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if _, err := NewTxnIDGenerator(5000); err == nil {
		t.Error("expected error for out-of-range node id")
	}
}
