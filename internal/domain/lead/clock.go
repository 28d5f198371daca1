package lead

import "time"

// Clock supplies time to domain logic. Scoring, routing, and revenue
// tracking all take one so tests can freeze and advance time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a hand-advanced clock for tests.
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time {
	return m.CurrentTime
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.CurrentTime = m.CurrentTime.Add(d)
}

// clock stamps ConversationContext timestamps, which have no injection
// point of their own.
var clock Clock = RealClock{}

// SetClock swaps the package clock for tests; pair with ResetClock.
func SetClock(c Clock) {
	clock = c
}

// ResetClock restores the system clock.
func ResetClock() {
	clock = RealClock{}
}
