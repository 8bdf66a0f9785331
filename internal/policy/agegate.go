package policy

import "time"

// MinimumAgeYears is the youngest age allowed to register an account.
const MinimumAgeYears = 15

// Accepted birth date layouts, checked in order.
var birthDateLayouts = []string{"2006-01-02", "02/01/2006"}

// IsUnderMinimumAge reports whether the registrant must be refused. An
// unparseable birth date is treated as underage (fail closed). The check runs
// before any account row is written.
func IsUnderMinimumAge(birthDate string, now time.Time) bool {
	var parsed time.Time
	var ok bool
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, birthDate); err == nil {
			parsed = t
			ok = true
			break
		}
	}
	if !ok {
		return true
	}

	threshold := now.AddDate(-MinimumAgeYears, 0, 0)
	return parsed.After(threshold)
}
