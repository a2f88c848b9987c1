package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ovenworks/pizzeria/internal/domain/customer"
)

const (
	getCustomerByIDSQL = `SELECT id, first_name, last_name, email, telephone, address,
		postal_code, date_of_birth, loyalty_pizzas
		FROM customers WHERE id = $1`

	getCustomerForUpdateSQL = getCustomerByIDSQL + ` FOR UPDATE`

	setLoyaltyPizzasSQL = `UPDATE customers SET loyalty_pizzas = $2 WHERE id = $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByID returns a single customer by its identifier.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	return getCustomer(ctx, r.pool, getCustomerByIDSQL, id)
}

func getCustomer(ctx context.Context, q querier, sql, id string) (*customer.Customer, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Telephone, &c.Address,
		&c.PostalCode, &c.DateOfBirth, &c.LoyaltyPizzas,
	)
	return c, err
}
