package delivery

import (
	"math/rand/v2"
	"time"
)

// DefaultCooldown is the minimum idle time before a courier is eligible for
// a new assignment.
const DefaultCooldown = 30 * time.Minute

// Pick is the outcome of a courier selection. Overrode is true when every
// courier was inside its cooldown and the least-recently-assigned one was
// chosen anyway; such picks must not be second-guessed by availability
// rechecks.
type Pick struct {
	Courier  *Courier
	Overrode bool
}

// Assigner selects a courier for a destination postal code. Selection order:
//
//  1. available couriers whose zones contain the zip, uniformly at random;
//  2. any available courier, uniformly at random;
//  3. the courier with the oldest (nil first) LastAssignedAt, overriding
//     the cooldown rather than leaving the order unassigned.
//
// An empty courier list yields an empty Pick; the order then proceeds
// without a courier.
type Assigner struct {
	cooldown time.Duration
	now      func() time.Time
	intn     func(n int) int
}

// Option customizes an Assigner.
type Option func(*Assigner)

// WithClock overrides the clock used for availability checks.
func WithClock(now func() time.Time) Option {
	return func(a *Assigner) { a.now = now }
}

// WithRand overrides the random source used to break ties between equally
// eligible couriers.
func WithRand(intn func(n int) int) Option {
	return func(a *Assigner) { a.intn = intn }
}

// NewAssigner builds an Assigner. A non-positive cooldown falls back to
// DefaultCooldown.
func NewAssigner(cooldown time.Duration, opts ...Option) *Assigner {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	a := &Assigner{
		cooldown: cooldown,
		now:      time.Now,
		intn:     rand.IntN,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Cooldown returns the configured cooldown.
func (a *Assigner) Cooldown() time.Duration {
	return a.cooldown
}

// Available reports whether the courier is outside its cooldown right now.
func (a *Assigner) Available(c Courier) bool {
	return c.AvailableAt(a.now(), a.cooldown)
}

// Select picks a courier for the zip from the given candidates.
func (a *Assigner) Select(couriers []Courier, zip int) Pick {
	if len(couriers) == 0 {
		return Pick{}
	}

	now := a.now()

	var inZone, available []Courier
	for _, c := range couriers {
		if !c.AvailableAt(now, a.cooldown) {
			continue
		}
		available = append(available, c)
		if c.Serves(zip) {
			inZone = append(inZone, c)
		}
	}

	if len(inZone) > 0 {
		return Pick{Courier: &inZone[a.intn(len(inZone))]}
	}
	if len(available) > 0 {
		return Pick{Courier: &available[a.intn(len(available))]}
	}

	return Pick{Courier: leastRecentlyAssigned(couriers), Overrode: true}
}

// leastRecentlyAssigned returns the courier with the oldest LastAssignedAt,
// nil timestamps first.
func leastRecentlyAssigned(couriers []Courier) *Courier {
	best := &couriers[0]
	for i := 1; i < len(couriers); i++ {
		c := &couriers[i]
		switch {
		case best.LastAssignedAt == nil:
			// nil sorts first; keep it.
		case c.LastAssignedAt == nil:
			best = c
		case c.LastAssignedAt.Before(*best.LastAssignedAt):
			best = c
		}
	}
	return best
}
