package models

import (
	"fmt"
	"regexp"
	"time"
)

var dateRe = regexp.MustCompile(`^\d{2}/\d{2}$`)

// ValidDate reports whether date is a well-formed dd/mm day that exists in
// the given calendar year (leap years included).
func ValidDate(date string, year int) bool {
	if !dateRe.MatchString(date) {
		return false
	}
	_, err := time.Parse("02/01/2006", fmt.Sprintf("%s/%04d", date, year))
	return err == nil
}

// DateKey converts a dd/mm date into its sortable yyyymmdd form.
// The caller must validate the date first.
func DateKey(date string, year int) string {
	return fmt.Sprintf("%04d%s%s", year, date[3:5], date[0:2])
}
