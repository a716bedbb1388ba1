package services

import "time"

// Clock supplies the current time to the lifecycle engine
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock, truncated to the precision Postgres stores
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
