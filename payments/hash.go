package payments

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const udfCount = 10

func sha512Hex(parts ...string) string {
	sum := sha512.Sum512([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// requestHashString is the pre-image of the payment initiation hash:
// key|txnid|amount|productinfo|firstname|email|udf1..udf10|salt.
func requestHashString(key, salt string, r InitiateRequest) string {
	parts := []string{key, r.TxnID, FormatAmount(r.Amount), r.ProductInfo, r.FirstName, r.Email}
	for i := 0; i < udfCount; i++ {
		parts = append(parts, r.UDF[i])
	}
	parts = append(parts, salt)
	return strings.Join(parts, "|")
}

// responseHashString is the reverse-hash pre-image used by the gateway to sign
// callbacks: salt|status|udf10..udf1|email|firstname|productinfo|amount|txnid|key.
func responseHashString(key, salt string, c Callback) string {
	parts := []string{salt, c.Status}
	for i := udfCount - 1; i >= 0; i-- {
		parts = append(parts, c.UDF[i])
	}
	parts = append(parts, c.Email, c.FirstName, c.ProductInfo, c.Amount, c.TxnID, key)
	return strings.Join(parts, "|")
}

func RequestHash(key, salt string, r InitiateRequest) string {
	sum := sha512.Sum512([]byte(requestHashString(key, salt, r)))
	return hex.EncodeToString(sum[:])
}

func ResponseHash(key, salt string, c Callback) string {
	sum := sha512.Sum512([]byte(responseHashString(key, salt, c)))
	return hex.EncodeToString(sum[:])
}

func StatusHash(key, txnID, salt string) string {
	return sha512Hex(key, txnID, salt)
}

// constantTimeHexEqual compares two hex digests without leaking timing and
// without caring about letter case.
func constantTimeHexEqual(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
