package services

import "time"

// InactivityWindow is the trailing span with no submissions after which a
// student counts as inactive.
const InactivityWindow = 7 * 24 * time.Hour

// CountRecentSubmissions returns how many submissions fall within
// [now-window, now]. Pure; operates on the freshly fetched submission list so
// the signal never trails storage by a cycle.
func CountRecentSubmissions(submissions []CFSubmission, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	recent := 0
	for _, sub := range submissions {
		at := time.Unix(sub.CreationTimeSeconds, 0)
		if !at.Before(cutoff) && !at.After(now) {
			recent++
		}
	}
	return recent
}

// IsInactive reports whether a student has gone a full window without
// submitting.
func IsInactive(submissions []CFSubmission, now time.Time, window time.Duration) bool {
	return CountRecentSubmissions(submissions, now, window) == 0
}
