package booking

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jogofacil/field-booking/internal/model"
	"github.com/jogofacil/field-booking/internal/utils"
)

// Time-of-day buckets accepted by SearchQuery.Period.
const (
	PeriodAll       = "ALL"
	PeriodMorning   = "MORNING"
	PeriodAfternoon = "AFTERNOON"
	PeriodNight     = "NIGHT"
)

// DefaultRadiusKm applies when a location is given without a radius.
const DefaultRadiusKm = 50

// SearchQuery describes a captain's slot search.  Lat/Lng are only used when
// HasLocation is set.
type SearchQuery struct {
	Term        string
	HasLocation bool
	Lat, Lng    float64
	RadiusKm    float64
	Category    string
	Period      string
}

// ValidPeriod reports whether p is an accepted period value.
func ValidPeriod(p string) bool {
	switch strings.ToUpper(p) {
	case "", PeriodAll, PeriodMorning, PeriodAfternoon, PeriodNight:
		return true
	}
	return false
}

// FilterSlots returns the available slots matching q, ordered by date and
// time.  Slots whose field is unknown are dropped.
func FilterSlots(slots []model.MatchSlot, fields map[string]model.Field, q SearchQuery) []model.MatchSlot {
	term := strings.ToLower(strings.TrimSpace(q.Term))
	radius := q.RadiusKm
	if radius <= 0 {
		radius = DefaultRadiusKm
	}
	period := strings.ToUpper(q.Period)

	out := make([]model.MatchSlot, 0, len(slots))
	for _, s := range slots {
		f, ok := fields[s.FieldID]
		if !ok || s.Status != model.SlotAvailable {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(f.Name), term) {
			continue
		}
		if q.HasLocation && utils.DistanceKm(q.Lat, q.Lng, f.Latitude, f.Longitude) > radius {
			continue
		}
		if q.Category != "" && !s.AllowsCategory(q.Category) {
			continue
		}
		if !inPeriod(s.Time, period) {
			continue
		}
		out = append(out, s)
	}
	SortByStart(out)
	return out
}

func inPeriod(hhmm, period string) bool {
	if period == "" || period == PeriodAll {
		return true
	}
	h, err := strconv.Atoi(strings.SplitN(hhmm, ":", 2)[0])
	if err != nil {
		return false
	}
	switch period {
	case PeriodMorning:
		return h < 12
	case PeriodAfternoon:
		return h >= 12 && h < 18
	case PeriodNight:
		return h >= 18
	}
	return true
}

// SortByStart orders slots by date then time.  Both are zero-padded, so
// string order is chronological.
func SortByStart(slots []model.MatchSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Date != slots[j].Date {
			return slots[i].Date < slots[j].Date
		}
		return slots[i].Time < slots[j].Time
	})
}

// EligibleTeams returns the sub-teams that may book slot.
func EligibleTeams(slot model.MatchSlot, teams []model.SubTeam) []model.SubTeam {
	out := make([]model.SubTeam, 0, len(teams))
	for _, t := range teams {
		if slot.AllowsCategory(t.Category) {
			out = append(out, t)
		}
	}
	return out
}

// CancellationFee is the amount owed when the booker cancels slot.  Only a
// confirmed booking carries a fee.
func CancellationFee(slot model.MatchSlot, field model.Field) float64 {
	if slot.Status != model.SlotConfirmed || field.CancellationFeePercent <= 0 {
		return 0
	}
	return slot.Price * field.CancellationFeePercent / 100
}
