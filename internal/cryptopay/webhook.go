package cryptopay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const (
	SignatureHeader = "crypto-pay-api-signature"

	UpdateInvoicePaid = "invoice_paid"
	InvoiceStatusPaid = "paid"
)

type Update struct {
	UpdateID    int64   `json:"update_id"`
	UpdateType  string  `json:"update_type"`
	RequestDate string  `json:"request_date"`
	Payload     Invoice `json:"payload"`
}

func (u Update) IsPaid() bool {
	return u.UpdateType == UpdateInvoicePaid && u.Payload.Status == InvoiceStatusPaid
}

// Sign computes hex(HMAC-SHA256(SHA256(token), body)).
func Sign(token string, body []byte) string {
	secret := sha256.Sum256([]byte(token))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks the signature over the exact bytes received.
func (c *Client) VerifyWebhookSignature(signature string, rawBody []byte) bool {
	return VerifySignature(c.token, signature, rawBody)
}

func VerifySignature(token, signature string, rawBody []byte) bool {
	if signature == "" || token == "" {
		return false
	}
	want := Sign(token, rawBody)
	return hmac.Equal([]byte(want), []byte(signature))
}

func ParseWebhook(rawBody []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(rawBody, &u); err != nil {
		return Update{}, fmt.Errorf("decode webhook: %w", err)
	}
	return u, nil
}
