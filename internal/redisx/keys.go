package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> orders.StatusView JSON
	KeyOrderStatus = "order_status:%s"

	// Gateway rate list: cryptopay:rates:{id}
	KeyExchangeRates = "cryptopay:rates:%s"

	// Resolved public profile: profile:{handle}
	KeyProfile = "profile:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache   = 5 * time.Minute
	TTLStatusPending = 5 * time.Second // non-terminal views may race a commit
	TTLRates         = time.Minute
	TTLProfile       = 10 * time.Minute
	TTLDedup         = 48 * time.Hour
)
