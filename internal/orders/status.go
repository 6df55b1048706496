package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending        Status = "PENDING"
	StatusWaitingPayment Status = "WAITING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusCompleted      Status = "COMPLETED"
	StatusFailed         Status = "FAILED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:        {StatusCompleted: true},
	StatusWaitingPayment: {StatusPaid: true, StatusCompleted: true, StatusFailed: true},
	StatusPaid:           {StatusCompleted: true},
	StatusCompleted:      {},
	StatusFailed:         {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

type PaymentMethod string

const (
	MethodManual PaymentMethod = "MANUAL"
	MethodCrypto PaymentMethod = "CRYPTO"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodManual || m == MethodCrypto
}

// ParsePaymentMethod accepts the storefront spellings as well as the canonical ones.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "card", "sbp":
		return MethodManual, nil
	case "crypto", "cryptobot":
		return MethodCrypto, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, s)
}

// Variant selects the operator message template.
type Variant string

const (
	VariantManualPending Variant = "manual_pending"
	VariantCryptoPaid    Variant = "crypto_paid"
	VariantGeneric       Variant = "generic"
)
