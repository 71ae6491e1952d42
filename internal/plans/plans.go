// Package plans loads the subscription catalog and answers whether a user's
// subscription is active.
package plans

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jogofacil/field-booking/internal/model"
)

//go:embed plans.yaml
var defaultCatalog []byte

// Plan is one paid subscription offer.
type Plan struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	PriceCents   int      `yaml:"price_cents" json:"priceCents"`
	DurationDays int      `yaml:"duration_days" json:"durationDays"`
	Popular      bool     `yaml:"popular" json:"popular"`
	Features     []string `yaml:"features" json:"features"`
}

// Catalog is the ordered list of paid plans.
type Catalog struct {
	Plans []Plan `yaml:"plans" json:"plans"`
}

// Load parses the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read plans file: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse plans: %w", err)
	}
	seen := map[string]bool{}
	for _, p := range c.Plans {
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("plan without id")
		case seen[p.ID]:
			return nil, fmt.Errorf("duplicate plan %s", p.ID)
		case p.DurationDays <= 0:
			return nil, fmt.Errorf("plan %s: duration_days must be positive", p.ID)
		}
		seen[p.ID] = true
	}
	return &c, nil
}

// Get returns the paid plan with the given id.
func (c *Catalog) Get(id string) (Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// Expiry computes the end of the period for a plan starting at now.  NONE
// and FREE have no expiry.  Unknown plans return false.
func (c *Catalog) Expiry(id string, now time.Time) (*time.Time, bool) {
	switch id {
	case model.PlanNone, model.PlanFree:
		return nil, true
	}
	p, ok := c.Get(id)
	if !ok {
		return nil, false
	}
	exp := now.UTC().AddDate(0, 0, p.DurationDays)
	return &exp, true
}

// Active reports whether u may use subscriber-only features at now.
// Admins and FREE accounts are always active, NONE never is.
func Active(u model.User, now time.Time) bool {
	if u.Role == model.RoleAdmin {
		return true
	}
	switch u.Subscription {
	case model.PlanFree:
		return true
	case model.PlanNone, "":
		return false
	}
	return u.SubscriptionExpiry != nil && now.Before(*u.SubscriptionExpiry)
}
