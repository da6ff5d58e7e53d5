package api

import (
	"errors"
	"regexp"
	"time"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var errBadDate = errors.New("invalid date format, want YYYY-MM-DD")

// ParseDate accepts only strict YYYY-MM-DD strings that name a real calendar
// date and returns the date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if !dateRe.MatchString(s) {
		return time.Time{}, errBadDate
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, errBadDate
	}
	return t, nil
}
