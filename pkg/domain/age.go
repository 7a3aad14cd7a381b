package domain

import "time"

// AgeOn returns the completed years between birthDate and now. A birthday that
// has not yet occurred in now's year does not count, and a Feb 29 birthday is
// reached on Mar 1 in non-leap years.
func AgeOn(birthDate, now time.Time) int {
	b := birthDate.UTC()
	n := now.UTC()
	years := n.Year() - b.Year()
	if n.Before(b.AddDate(years, 0, 0)) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// IsOver18 returns true if the person with the given birth date is 18 years old or older
// at the specified reference time.
func IsOver18(birthDate, now time.Time) bool {
	adultAt := birthDate.UTC().AddDate(18, 0, 0)
	return !now.UTC().Before(adultAt)
}
