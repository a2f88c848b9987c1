// Package delivery holds couriers, their postal zones, and the assignment
// rules that pick a courier for a destination postal code.
package delivery

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a courier does not exist.
var ErrNotFound = errors.New("courier not found")

// PostalRange is an inclusive zip range served by a courier.
type PostalRange struct {
	ID       string
	StartZip int
	EndZip   int
}

// Contains reports whether zip falls inside the range.
func (r PostalRange) Contains(zip int) bool {
	return zip >= r.StartZip && zip <= r.EndZip
}

// Courier is a delivery person. LastAssignedAt is nil until the first
// assignment; it drives the cooldown rule.
type Courier struct {
	ID             string
	Name           string
	LastAssignedAt *time.Time
	Ranges         []PostalRange
}

// Serves reports whether any of the courier's postal ranges contains zip.
func (c Courier) Serves(zip int) bool {
	for _, r := range c.Ranges {
		if r.Contains(zip) {
			return true
		}
	}
	return false
}

// AvailableAt reports whether the courier has been idle for at least the
// cooldown at the given instant. A courier never assigned is available.
func (c Courier) AvailableAt(now time.Time, cooldown time.Duration) bool {
	if c.LastAssignedAt == nil {
		return true
	}
	return !c.LastAssignedAt.After(now.Add(-cooldown))
}

// Repository defines read operations for couriers outside a checkout
// transaction.
type Repository interface {
	List(ctx context.Context) ([]Courier, error)
}
