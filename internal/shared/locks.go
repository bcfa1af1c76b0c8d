package shared

import "time"

// OrderNumberLockKey builds the redis key guarding order-number allocation for one calendar day.
func OrderNumberLockKey(day time.Time) string {
	return "orders:number:" + day.Format("20060102") + ":lock"
}
