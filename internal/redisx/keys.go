package redisx

import "time"

const (
	// Idempotency for POST /order: idem:order:create:{customer}:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Cached order view: order_view:{order_id} -> order JSON; dropped on every change
	KeyOrderView = "order_view:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Role lookup cache: role:{email} -> customer|seller|admin
	KeyUserRole = "role:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderView   = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLUserRole    = time.Minute
)
