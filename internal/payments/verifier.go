package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks payment gateway callback signatures. The gateway signs
// "orderID|paymentID" with the shared secret; we recompute and compare.
// Constructed once at startup and passed to the handlers that need it.
type Verifier struct {
	keyID  string
	secret []byte
}

func NewVerifier(keyID, secret string) *Verifier {
	return &Verifier{
		keyID:  keyID,
		secret: []byte(secret),
	}
}

func (v *Verifier) KeyID() string {
	return v.keyID
}

// VerifySignature recomputes the HMAC-SHA256 hex signature over
// orderID|paymentID and compares it in constant time.
func (v *Verifier) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
