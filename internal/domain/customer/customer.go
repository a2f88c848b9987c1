// Package customer holds customer identity and the loyalty pizza counter.
package customer

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalidPostalCode is returned when a postal code is not an integer.
	ErrInvalidPostalCode = errors.New("invalid postal code")
)

// Customer is a registered customer. LoyaltyPizzas is a running count of
// pizzas purchased, consumed in blocks by the loyalty reward; it never goes
// negative.
type Customer struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	Telephone     string
	Address       string
	PostalCode    string
	DateOfBirth   time.Time
	LoyaltyPizzas int
}

// PostalCodeInt parses the stored postal code. Postal codes are kept as text
// but must be integer-valued for courier zone matching.
func (c Customer) PostalCodeInt() (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(c.PostalCode))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidPostalCode, "postal code %q", c.PostalCode)
	}
	return code, nil
}

// BirthdayOn reports whether the given local date matches the customer's
// date of birth by month and day.
func (c Customer) BirthdayOn(now time.Time) bool {
	return c.DateOfBirth.Month() == now.Month() && c.DateOfBirth.Day() == now.Day()
}

// Repository defines persistence operations for customers.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}
