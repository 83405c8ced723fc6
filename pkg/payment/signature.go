package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and checks HMAC-SHA256 signatures with a shared secret
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for secret
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// PaymentSignature returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID))
func (s *Signer) PaymentSignature(orderID, paymentID string) string {
	return s.Sign([]byte(orderID + "|" + paymentID))
}

// Sign returns the hex HMAC-SHA256 of payload
func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with the expected signature of payload in constant time
func (s *Signer) Verify(payload []byte, signature string) bool {
	if len(s.secret) == 0 || signature == "" {
		return false
	}
	expected := s.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyPayment checks a client callback signature
func (s *Signer) VerifyPayment(orderID, paymentID, signature string) bool {
	return s.Verify([]byte(orderID+"|"+paymentID), signature)
}
