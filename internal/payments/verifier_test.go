package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	v := NewVerifier("key_test", "s3cret")

	good := sign("s3cret", "order_1", "pay_1")
	assert.True(t, v.VerifySignature("order_1", "pay_1", good))

	assert.False(t, v.VerifySignature("order_1", "pay_2", good), "signature bound to the payment id")
	assert.False(t, v.VerifySignature("order_2", "pay_1", good), "signature bound to the order id")
	assert.False(t, v.VerifySignature("order_1", "pay_1", sign("wrong", "order_1", "pay_1")))
	assert.False(t, v.VerifySignature("order_1", "pay_1", ""))
	assert.False(t, v.VerifySignature("order_1", "pay_1", "not-hex-at-all"))
}

func TestKeyID(t *testing.T) {
	assert.Equal(t, "key_test", NewVerifier("key_test", "s3cret").KeyID())
}
