package models

import "sort"

// Plan is one entry in the static catalog. Quota is the number of requests the
// issued key may make; QuotaLabel is shown to buyers and is never enforced.
type Plan struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Quota      int64   `json:"quota"`
	QuotaLabel string  `json:"quotaLabel"`
	ExpiryDays int     `json:"expiryDays"`
}

// Plans is the plan catalog keyed by plan id
var Plans = map[string]Plan{
	"daily": {
		ID:         "daily",
		Title:      "Daily",
		Price:      49,
		Quota:      100,
		QuotaLabel: "100/day",
		ExpiryDays: 1,
	},
	"starter": {
		ID:         "starter",
		Title:      "Starter",
		Price:      400,
		Quota:      850,
		QuotaLabel: "850 per week",
		ExpiryDays: 30,
	},
	"pro": {
		ID:         "pro",
		Title:      "Pro",
		Price:      1499,
		Quota:      5000,
		QuotaLabel: "5000 per month",
		ExpiryDays: 30,
	},
}

// LookupPlan resolves a plan id against the catalog
func LookupPlan(id string) (Plan, bool) {
	p, ok := Plans[id]
	return p, ok
}

// PlanList returns the catalog ordered by price
func PlanList() []Plan {
	list := make([]Plan, 0, len(Plans))
	for _, p := range Plans {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Price < list[j].Price })
	return list
}
