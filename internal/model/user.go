package model

import "time"

// Role values stored in users.role and carried in the JWT "role" claim.
const (
	RoleAdmin       = "ADMIN"
	RoleFieldOwner  = "FIELD_OWNER"
	RoleTeamCaptain = "TEAM_CAPTAIN"
)

// Subscription plan identifiers stored in users.subscription.
const (
	PlanNone    = "NONE"
	PlanFree    = "FREE"
	PlanWeekly  = "WEEKLY"
	PlanMonthly = "MONTHLY"
	PlanAnnual  = "ANNUAL"
)

// Default coordinates (São Paulo centre) used when a registration carries no location.
const (
	DefaultLatitude  = -23.55
	DefaultLongitude = -46.63
)

// User represents a row of the `users` table together with its sub-teams.
// PasswordHash is never serialized.
//
// Fields:
//  ID                 – primary key (UUID string).
//  Name               – display name.
//  Email              – unique, lower-cased e-mail address.
//  PasswordHash       – bcrypt hash of the password.
//  PhoneNumber        – contact phone used for the WhatsApp handoff.
//  Role               – ADMIN, FIELD_OWNER or TEAM_CAPTAIN.
//  Subscription       – current plan identifier.
//  SubscriptionExpiry – end of the paid period (nil for NONE/FREE).
//  SubTeams           – rosters owned by the user.
//  Latitude/Longitude – home location used by distance filters.
type User struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	PhoneNumber        string     `json:"phoneNumber"`
	Role               string     `json:"role"`
	Subscription       string     `json:"subscription"`
	SubscriptionExpiry *time.Time `json:"subscriptionExpiry"`
	SubTeams           []SubTeam  `json:"subTeams"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// SubTeam is a category-specific roster under a user account (e.g. "Sub-20").
type SubTeam struct {
	ID       string `json:"id"`
	UserID   string `json:"-"`
	Name     string `json:"name"`
	Category string `json:"category"`
	LogoURL  string `json:"logoUrl,omitempty"`
}

// FindSubTeam returns the sub-team with the given id.
func (u *User) FindSubTeam(id string) (SubTeam, bool) {
	for _, t := range u.SubTeams {
		if t.ID == id {
			return t, true
		}
	}
	return SubTeam{}, false
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
