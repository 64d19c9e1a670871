package chat

import "time"

// Session is an advisor conversation bound to a registered farmer.
type Session struct {
	ID        string    `json:"id"`
	FarmerID  string    `json:"farmerId"`
	CreatedAt time.Time `json:"createdAt"`
}
