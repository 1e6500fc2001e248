package riskconfig

import (
	"sort"

	"github.com/richxcame/order-risk/internal/risk"
)

const (
	ProfileStandard = "standard"
	ProfileHoliday  = "holiday"
)

// Profile returns the patch for a named seasonal profile.
//
// The holiday profile tolerates more orders per day and larger baskets and
// cares less about odd hours, all of which are normal in high-demand periods.
// The standard profile restores the defaults for those knobs.
func Profile(name string) (risk.ConfigPatch, bool) {
	switch name {
	case ProfileStandard:
		d := risk.DefaultConfig()
		return risk.ConfigPatch{
			MultipleOrdersThreshold: &d.MultipleOrdersThreshold,
			HighValuePercentage:     &d.HighValuePercentage,
			UnusualTimeWeight:       &d.UnusualTimeWeight,
		}, true
	case ProfileHoliday:
		threshold := 5
		pct := 300.0
		timeWeight := 5.0
		return risk.ConfigPatch{
			MultipleOrdersThreshold: &threshold,
			HighValuePercentage:     &pct,
			UnusualTimeWeight:       &timeWeight,
		}, true
	default:
		return risk.ConfigPatch{}, false
	}
}

// ProfileNames lists the known profiles.
func ProfileNames() []string {
	names := []string{ProfileStandard, ProfileHoliday}
	sort.Strings(names)
	return names
}
