package entitlement

import "time"

// Record is a subscriber's durable entitlement state. One record per phone
// number, created implicitly on first write.
type Record struct {
	Phone     string    `json:"phone"`
	Premium   bool      `json:"premium"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
