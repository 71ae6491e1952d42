package model

// DefaultFieldImage is assigned to fields registered without a picture.
const DefaultFieldImage = "https://images.unsplash.com/photo-1529900748604-07564a03e7a6?q=80&w=1470&auto=format&fit=crop"

// PixConfig is the PIX payment destination shown to a booker.  It is
// stored flat (fields.pix_key, fields.pix_name) and nested on the wire.
type PixConfig struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Field is a bookable arena owned by a FIELD_OWNER.
//
// Fields:
//  HourlyRate             – default slot price in BRL.
//  CancellationFeePercent – share of the price charged when a confirmed
//                           booking is cancelled.
//  ContactPhone           – number used for the WhatsApp handoff.
type Field struct {
	ID                     string    `json:"id"`
	OwnerID                string    `json:"ownerId"`
	Name                   string    `json:"name"`
	Location               string    `json:"location"`
	HourlyRate             float64   `json:"hourlyRate"`
	CancellationFeePercent float64   `json:"cancellationFeePercent"`
	PixConfig              PixConfig `json:"pixConfig"`
	ImageURL               string    `json:"imageUrl"`
	ContactPhone           string    `json:"contactPhone"`
	Latitude               float64   `json:"latitude"`
	Longitude              float64   `json:"longitude"`
}
