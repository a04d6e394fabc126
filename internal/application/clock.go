package application

import "time"

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock implementasi default, pakai time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Seconds returns the time elapsed since start on c, in seconds.
func Seconds(c Clock, start time.Time) float64 {
	return c.Now().Sub(start).Seconds()
}
