// Package booking holds the marketplace rules that do not touch storage:
// recurring slot expansion, search filtering, team eligibility, cancellation
// fees and the WhatsApp handoff messages.
package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/jogofacil/field-booking/internal/model"
)

// RecurringWeeks is how many extra weekly copies a recurring slot produces.
const RecurringWeeks = 3

// ExpandRecurring returns base followed, when recurring is set, by
// RecurringWeeks copies at +7 day intervals.  IDs are left empty.
func ExpandRecurring(base model.MatchSlot, recurring bool) ([]model.MatchSlot, error) {
	start, err := time.Parse("2006-01-02", base.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", base.Date)
	}
	out := []model.MatchSlot{base}
	if !recurring {
		return out, nil
	}
	for i := 1; i <= RecurringWeeks; i++ {
		s := base
		s.ID = ""
		s.Date = start.AddDate(0, 0, 7*i).Format("2006-01-02")
		s.AllowedCategories = append([]string(nil), base.AllowedCategories...)
		out = append(out, s)
	}
	return out, nil
}

// NormalizeTime parses an owner-typed time ("9:00", "09:00") and returns it
// zero-padded.  Stored times are compared as strings.
func NormalizeTime(hhmm string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return "", fmt.Errorf("time must be HH:MM")
	}
	return t.Format("15:04"), nil
}

// ValidateSlot checks the owner-supplied fields of a new or edited slot.
// Date and time must already be in their canonical zero-padded form.
func ValidateSlot(s model.MatchSlot) error {
	if d, err := time.Parse("2006-01-02", s.Date); err != nil || d.Format("2006-01-02") != s.Date {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	if t, err := NormalizeTime(s.Time); err != nil || t != s.Time {
		return fmt.Errorf("time must be HH:MM")
	}
	switch s.MatchType {
	case model.MatchFriendly, model.MatchFestival, model.MatchRental:
	default:
		return fmt.Errorf("unknown match type %q", s.MatchType)
	}
	if s.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	if s.HasLocalTeam && s.LocalTeamName == "" {
		return fmt.Errorf("localTeamName is required when hasLocalTeam is set")
	}
	return nil
}
