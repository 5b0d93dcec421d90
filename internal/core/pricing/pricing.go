package pricing

import (
	_ "embed"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var plansYAML []byte

// Tier is a backend extraction strategy billed per page.
type Tier struct {
	ID           string  `yaml:"id" json:"id"`
	Name         string  `yaml:"name" json:"name"`
	Description  string  `yaml:"description" json:"description"`
	PricePerPage float64 `yaml:"price_per_page" json:"price_per_page"`
}

type Plan struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	MonthlyPrice  float64  `yaml:"monthly_price" json:"monthly_price"`
	IncludedPages int      `yaml:"included_pages" json:"included_pages"`
	Tiers         []string `yaml:"tiers" json:"tiers"`
	Features      []string `yaml:"features" json:"features"`
}

type Catalog struct {
	Currency string `yaml:"currency" json:"currency"`
	Tiers    []Tier `yaml:"tiers" json:"tiers"`
	Plans    []Plan `yaml:"plans" json:"plans"`
}

func Load() (*Catalog, error) {
	return Parse(plansYAML)
}

func Parse(raw []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parse pricing catalog: %w", err)
	}
	tiers := make(map[string]struct{}, len(catalog.Tiers))
	for _, tier := range catalog.Tiers {
		tiers[tier.ID] = struct{}{}
	}
	for _, plan := range catalog.Plans {
		for _, id := range plan.Tiers {
			if _, ok := tiers[id]; !ok {
				return nil, fmt.Errorf("plan %s references unknown tier %s", plan.ID, id)
			}
		}
	}
	return &catalog, nil
}

func (c *Catalog) Plan(id string) (Plan, bool) {
	for _, plan := range c.Plans {
		if plan.ID == id {
			return plan, true
		}
	}
	return Plan{}, false
}

func (c *Catalog) Tier(id string) (Tier, bool) {
	for _, tier := range c.Tiers {
		if tier.ID == id {
			return tier, true
		}
	}
	return Tier{}, false
}

// Estimate prices pages processed with a tier under a plan: pages beyond the
// plan allowance are billed at the tier rate on top of the monthly price.
func (c *Catalog) Estimate(planID, tierID string, pages int) (float64, error) {
	plan, ok := c.Plan(planID)
	if !ok {
		return 0, fmt.Errorf("unknown plan %q", planID)
	}
	tier, ok := c.Tier(tierID)
	if !ok {
		return 0, fmt.Errorf("unknown tier %q", tierID)
	}
	allowed := false
	for _, id := range plan.Tiers {
		if id == tierID {
			allowed = true
			break
		}
	}
	if !allowed {
		return 0, fmt.Errorf("tier %s is not part of plan %s", tierID, planID)
	}

	overage := pages - plan.IncludedPages
	if overage < 0 {
		overage = 0
	}
	total := plan.MonthlyPrice + float64(overage)*tier.PricePerPage
	return math.Round(total*100) / 100, nil
}
