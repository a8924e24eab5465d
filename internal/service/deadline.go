package service

import "time"

type Urgency string

const (
	UrgencyNormal   Urgency = "normal"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
	UrgencyExpired  Urgency = "expired"
)

// Severity orders urgencies for sorting and highlighting:
// expired > critical > warning > normal.
func (u Urgency) Severity() int {
	switch u {
	case UrgencyExpired:
		return 3
	case UrgencyCritical:
		return 2
	case UrgencyWarning:
		return 1
	default:
		return 0
	}
}

// Classify buckets the remaining time to a project deadline. Completed
// projects and projects without a deadline are always normal.
func Classify(deadline *time.Time, isCompleted bool, now time.Time) Urgency {
	if isCompleted || deadline == nil {
		return UrgencyNormal
	}
	diff := deadline.Sub(now)
	switch {
	case diff < 0:
		return UrgencyExpired
	case diff < 3*24*time.Hour:
		return UrgencyCritical
	case diff < 7*24*time.Hour:
		return UrgencyWarning
	default:
		return UrgencyNormal
	}
}
