package model

import "time"

// Slot statuses.  A slot moves available -> pending_verification when a
// captain requests it and pending_verification -> confirmed when the owner
// accepts the payment.  Rejecting or cancelling puts it back to available.
const (
	SlotAvailable           = "available"
	SlotPendingVerification = "pending_verification"
	SlotConfirmed           = "confirmed"
)

// Match types offered by a slot.  ALUGUEL is a plain rental where the booker
// brings both teams, so it requires opponent details.
const (
	MatchFriendly = "AMISTOSO"
	MatchFestival = "FESTIVAL"
	MatchRental   = "ALUGUEL"
)

// CategoryOpen marks a slot that accepts any category.
const CategoryOpen = "Livre"

// CommonCategories lists the categories offered by the clients.
var CommonCategories = []string{"Sub-09", "Sub-11", "Sub-13", "Sub-15", "Sub-17", "Sub-20", "Principal", "Veteranos", "Feminino"}

// MatchSlot is a bookable date/time on a field.
type MatchSlot struct {
	ID       string `json:"id"`
	FieldID  string `json:"fieldId"`
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HH:MM
	IsBooked bool   `json:"isBooked"`

	MatchType         string   `json:"matchType"`
	HasLocalTeam      bool     `json:"hasLocalTeam"`
	LocalTeamName     string   `json:"localTeamName,omitempty"`
	AllowedCategories []string `json:"allowedCategories"`

	BookedByTeamName  string `json:"bookedByTeamName,omitempty"`
	BookedByUserID    string `json:"bookedByUserId,omitempty"`
	BookedByPhone     string `json:"bookedByPhone,omitempty"`
	BookedByCategory  string `json:"bookedByCategory,omitempty"`
	OpponentTeamName  string `json:"opponentTeamName,omitempty"`
	OpponentTeamPhone string `json:"opponentTeamPhone,omitempty"`

	Status  string              `json:"status"`
	Price   float64             `json:"price"`
	Receipt *VerificationResult `json:"receipt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StartsAt parses Date and Time in the given location.
func (s MatchSlot) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", s.Date+" "+s.Time, loc)
}

// AllowsCategory reports whether a team of the given category may book the slot.
func (s MatchSlot) AllowsCategory(category string) bool {
	for _, c := range s.AllowedCategories {
		if c == CategoryOpen || c == category {
			return true
		}
	}
	return false
}

// Booking carries the booker data written when a captain requests a slot.
type Booking struct {
	UserID            string
	Phone             string
	TeamName          string
	Category          string
	OpponentTeamName  string
	OpponentTeamPhone string
}
