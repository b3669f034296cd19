package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/logging"
)

const (
	easebuzzTestBase      = "https://testpay.easebuzz.in"
	easebuzzProdBase      = "https://pay.easebuzz.in"
	easebuzzTestDashboard = "https://testdashboard.easebuzz.in"
	easebuzzProdDashboard = "https://dashboard.easebuzz.in"

	maxGatewayBody = 1 << 20
)

type EasebuzzConfig struct {
	Key     string
	Salt    string
	Env     string
	Timeout time.Duration

	// SuccessURL and FailureURL are sent as surl/furl; both normally point
	// at the webhook endpoint.
	SuccessURL string
	FailureURL string

	// BaseURL and DashboardURL override the Env-derived endpoints.
	BaseURL      string
	DashboardURL string
}

type EasebuzzClient struct {
	key          string
	salt         string
	baseURL      string
	dashboardURL string
	successURL   string
	failureURL   string
	http         *http.Client
}

func NewEasebuzzClient(cfg EasebuzzConfig) *EasebuzzClient {
	base, dash := easebuzzTestBase, easebuzzTestDashboard
	if strings.EqualFold(cfg.Env, "prod") || strings.EqualFold(cfg.Env, "production") {
		base, dash = easebuzzProdBase, easebuzzProdDashboard
	}
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	if cfg.DashboardURL != "" {
		dash = cfg.DashboardURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &EasebuzzClient{
		key:          cfg.Key,
		salt:         cfg.Salt,
		baseURL:      strings.TrimRight(base, "/"),
		dashboardURL: strings.TrimRight(dash, "/"),
		successURL:   cfg.SuccessURL,
		failureURL:   cfg.FailureURL,
		http:         &http.Client{Timeout: timeout},
	}
}

type InitiateRequest struct {
	TxnID       string
	Amount      float64
	ProductInfo string
	FirstName   string
	Email       string
	Phone       string
	UDF         [udfCount]string
}

type InitiateResult struct {
	AccessKey   string
	CheckoutURL string
	Raw         json.RawMessage
}

type StatusResult struct {
	Found        bool
	TxnID        string
	Status       string
	Amount       string
	GatewayTxnID string
	EventAt      *time.Time
	Raw          json.RawMessage
}

// FormatAmount renders amounts the way the gateway hashes them.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// AmountMatches compares a gateway-reported amount with the expected one at
// paisa precision.
func AmountMatches(reported string, expected float64) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(reported), 64)
	if err != nil {
		return false
	}
	return FormatAmount(v) == FormatAmount(expected)
}

// VerifyCallback reports whether the callback was signed with our salt.
// Only a verified callback may drive state changes.
func (c *EasebuzzClient) VerifyCallback(cb Callback) bool {
	if cb.TxnID == "" || cb.Hash == "" {
		return false
	}
	return constantTimeHexEqual(ResponseHash(c.key, c.salt, cb), cb.Hash)
}

func (c *EasebuzzClient) Initiate(ctx context.Context, r InitiateRequest) (*InitiateResult, error) {
	form := url.Values{}
	form.Set("key", c.key)
	form.Set("txnid", r.TxnID)
	form.Set("amount", FormatAmount(r.Amount))
	form.Set("productinfo", r.ProductInfo)
	form.Set("firstname", r.FirstName)
	form.Set("email", r.Email)
	form.Set("phone", r.Phone)
	form.Set("surl", c.successURL)
	form.Set("furl", c.failureURL)
	for i := 0; i < udfCount; i++ {
		form.Set(fmt.Sprintf("udf%d", i+1), r.UDF[i])
	}
	form.Set("hash", RequestHash(c.key, c.salt, r))

	body, err := c.postForm(ctx, c.baseURL+"/payment/initiateLink", form)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status    int             `json:"status"`
		Data      json.RawMessage `json:"data"`
		ErrorDesc string          `json:"error_desc"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperr.With(apperr.ErrGatewayUnreachable, fmt.Errorf("decode initiate response: %w", err))
	}

	var data string
	_ = json.Unmarshal(resp.Data, &data)

	if resp.Status != 1 || data == "" {
		msg := resp.ErrorDesc
		if msg == "" {
			msg = data
		}
		if msg == "" {
			msg = "payment initiation rejected"
		}
		return nil, apperr.With(apperr.ErrGatewayRejected, fmt.Errorf("easebuzz: %s", msg))
	}

	return &InitiateResult{
		AccessKey:   data,
		CheckoutURL: c.baseURL + "/pay/" + data,
		Raw:         json.RawMessage(body),
	}, nil
}

// CheckStatus asks the gateway for the authoritative state of txnID. Any
// response it does not fully understand is reported as unreachable so that
// callers never act on a guess.
func (c *EasebuzzClient) CheckStatus(ctx context.Context, txnID string) (*StatusResult, error) {
	form := url.Values{}
	form.Set("txnid", txnID)
	form.Set("key", c.key)
	form.Set("hash", StatusHash(c.key, txnID, c.salt))

	body, err := c.postForm(ctx, c.dashboardURL+"/transaction/v1/retrieve", form)
	if err != nil {
		return nil, err
	}
	res, err := parseRetrieve(body, txnID)
	if err != nil {
		logging.Log.WithField("txnid", txnID).Warnf("⚠️ Unrecognised status response: %v", err)
		return nil, apperr.With(apperr.ErrGatewayUnreachable, err)
	}
	return res, nil
}

type retrieveTxn struct {
	TxnID     string          `json:"txnid"`
	Status    string          `json:"status"`
	Amount    json.RawMessage `json:"amount"`
	EasepayID string          `json:"easepayid"`
	AddedOn   string          `json:"addedon"`
}

func parseRetrieve(body []byte, txnID string) (*StatusResult, error) {
	var env struct {
		Status json.RawMessage `json:"status"`
		Msg    json.RawMessage `json:"msg"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode retrieve response: %w", err)
	}
	ok, err := parseFlag(env.Status)
	if err != nil {
		return nil, err
	}

	msg := bytes.TrimSpace(env.Msg)
	if len(msg) == 0 {
		return nil, fmt.Errorf("retrieve response has no msg")
	}

	switch msg[0] {
	case '"':
		var text string
		if err := json.Unmarshal(msg, &text); err != nil {
			return nil, fmt.Errorf("decode retrieve msg: %w", err)
		}
		if strings.Contains(strings.ToLower(text), "not found") {
			return &StatusResult{Found: false, TxnID: txnID, Raw: json.RawMessage(body)}, nil
		}
		return nil, fmt.Errorf("retrieve failed: %s", text)
	case '{':
		if !ok {
			return nil, fmt.Errorf("retrieve returned an object with status false")
		}
		var t retrieveTxn
		if err := json.Unmarshal(msg, &t); err != nil {
			return nil, fmt.Errorf("decode retrieve transaction: %w", err)
		}
		return toStatusResult(t, txnID, body)
	case '[':
		if !ok {
			return nil, fmt.Errorf("retrieve returned a list with status false")
		}
		var list []retrieveTxn
		if err := json.Unmarshal(msg, &list); err != nil {
			return nil, fmt.Errorf("decode retrieve transactions: %w", err)
		}
		for _, t := range list {
			if t.TxnID == txnID {
				return toStatusResult(t, txnID, body)
			}
		}
		if len(list) == 0 {
			return &StatusResult{Found: false, TxnID: txnID, Raw: json.RawMessage(body)}, nil
		}
		return nil, fmt.Errorf("retrieve list does not contain %s", txnID)
	default:
		return nil, fmt.Errorf("unexpected retrieve msg shape")
	}
}

func toStatusResult(t retrieveTxn, txnID string, raw []byte) (*StatusResult, error) {
	if t.TxnID != "" && t.TxnID != txnID {
		return nil, fmt.Errorf("retrieve answered for %s, asked for %s", t.TxnID, txnID)
	}
	if strings.TrimSpace(t.Status) == "" {
		return nil, fmt.Errorf("retrieve transaction has no status")
	}
	res := &StatusResult{
		Found:        true,
		TxnID:        txnID,
		Status:       strings.ToLower(strings.TrimSpace(t.Status)),
		Amount:       rawScalar(t.Amount),
		GatewayTxnID: t.EasepayID,
		Raw:          json.RawMessage(raw),
	}
	if at, ok := parseAddedOn(t.AddedOn); ok {
		res.EventAt = &at
	}
	return res, nil
}

// rawScalar renders a JSON string or number as plain text.
func rawScalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// parseFlag accepts the gateway's status flag as a bool or 0/1 number.
func parseFlag(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n == 1, nil
	}
	return false, fmt.Errorf("unexpected status flag %q", string(raw))
}

func (c *EasebuzzClient) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperr.With(apperr.ErrGatewayUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.With(apperr.ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBody))
	if err != nil {
		return nil, apperr.With(apperr.ErrGatewayUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.With(apperr.ErrGatewayUnreachable, fmt.Errorf("easebuzz %s: %s", resp.Status, string(body)))
	}
	return body, nil
}
