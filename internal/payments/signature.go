package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CheckoutSignature computes the hex HMAC-SHA256 the provider attaches to a
// successful checkout: the message is providerOrderID + "|" + providerPaymentID.
func CheckoutSignature(secret, providerOrderID, providerPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(providerOrderID + "|" + providerPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCheckoutSignature checks a client-supplied checkout signature in
// constant time. Any mismatch, including a malformed signature, fails closed.
func VerifyCheckoutSignature(secret, providerOrderID, providerPaymentID, signature string) bool {
	expected := CheckoutSignature(secret, providerOrderID, providerPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the signature header against the hex
// HMAC-SHA256 of the raw request body.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
