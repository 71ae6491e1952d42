package plans

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jogofacil/field-booking/internal/model"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string]int{model.PlanWeekly: 7, model.PlanMonthly: 30, model.PlanAnnual: 365}
	for id, days := range want {
		p, ok := c.Get(id)
		if !ok {
			t.Fatalf("plan %s missing", id)
		}
		if p.DurationDays != days {
			t.Errorf("%s duration = %d, want %d", id, p.DurationDays, days)
		}
	}
}

func TestParseRejectsBadCatalog(t *testing.T) {
	bad := []string{
		"plans:\n  - name: x\n    duration_days: 3\n",
		"plans:\n  - id: A\n    duration_days: 0\n",
		"plans:\n  - id: A\n    duration_days: 1\n  - id: A\n    duration_days: 2\n",
	}
	for _, doc := range bad {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("expected error for %q", doc)
		}
	}
}

func TestExpiry(t *testing.T) {
	c, _ := Load("")
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	exp, ok := c.Expiry(model.PlanWeekly, clock.Now())
	if !ok || exp == nil || !exp.Equal(time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("weekly expiry = %v, %v", exp, ok)
	}
	if exp, ok := c.Expiry(model.PlanFree, clock.Now()); !ok || exp != nil {
		t.Fatalf("free expiry = %v, %v", exp, ok)
	}
	if _, ok := c.Expiry("GOLD", clock.Now()); ok {
		t.Fatal("unknown plan accepted")
	}
}

func TestActive(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	future := clock.Now().Add(time.Hour)
	past := clock.Now().Add(-time.Hour)

	cases := []struct {
		name string
		user model.User
		want bool
	}{
		{"admin without plan", model.User{Role: model.RoleAdmin, Subscription: model.PlanNone}, true},
		{"free owner", model.User{Role: model.RoleFieldOwner, Subscription: model.PlanFree}, true},
		{"captain without plan", model.User{Role: model.RoleTeamCaptain, Subscription: model.PlanNone}, false},
		{"monthly in period", model.User{Role: model.RoleTeamCaptain, Subscription: model.PlanMonthly, SubscriptionExpiry: &future}, true},
		{"monthly expired", model.User{Role: model.RoleTeamCaptain, Subscription: model.PlanMonthly, SubscriptionExpiry: &past}, false},
		{"paid without expiry", model.User{Role: model.RoleTeamCaptain, Subscription: model.PlanWeekly}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Active(tc.user, clock.Now()); got != tc.want {
				t.Fatalf("Active = %v, want %v", got, tc.want)
			}
		})
	}
}
