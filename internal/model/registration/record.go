package registration

import "time"

// FarmerRecord is a completed, persisted registration.
type FarmerRecord struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	PhoneNumber     string    `json:"phone_number"`
	FarmLocation    string    `json:"farm_location"`
	PrimaryCrops    string    `json:"primary_crops"`
	Language        string    `json:"language,omitempty"`
	SessionID       string    `json:"session_id,omitempty"`
	SessionInstance string    `json:"session_instance,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewFarmerRecord builds a record from the session's filled profile.
func NewFarmerRecord(id string, sess *Session, now time.Time) FarmerRecord {
	p := sess.Profile
	return FarmerRecord{
		ID:              id,
		FirstName:       p.Get(FirstName),
		LastName:        p.Get(LastName),
		PhoneNumber:     NormalizePhone(p.Get(PhoneNumber)),
		FarmLocation:    p.Get(FarmLocation),
		PrimaryCrops:    p.Get(PrimaryCrops),
		Language:        sess.Language,
		SessionID:       sess.ID,
		SessionInstance: sess.Instance,
		CreatedAt:       now,
	}
}

// Profile returns the record's fields as a profile map.
func (r FarmerRecord) Profile() Profile {
	return Profile{
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		PhoneNumber:  r.PhoneNumber,
		FarmLocation: r.FarmLocation,
		PrimaryCrops: r.PrimaryCrops,
	}
}
