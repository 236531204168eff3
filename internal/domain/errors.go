package domain

import "errors"

var (
	// ErrInvalidSchedule is returned when the competition calendar cannot
	// produce scoring windows (missing weeks, bad hours).
	ErrInvalidSchedule = errors.New("competition schedule is invalid")
	// ErrUnknownPeriod indicates a period the result model has no columns for.
	ErrUnknownPeriod = errors.New("unknown scoring period")
)
