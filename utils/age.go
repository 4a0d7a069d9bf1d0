package utils

import (
	"time"

	"amora_server/models"
)

// Age returns the age in whole years at now of someone born on birthdate
// (YYYY-MM-DD). ok is false when birthdate does not parse.
func Age(birthdate string, now time.Time) (age int, ok bool) {
	born, err := time.Parse(models.BirthdateLayout, birthdate)
	if err != nil {
		return 0, false
	}
	age = now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}
