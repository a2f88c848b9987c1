package order

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/pizzeria/internal/domain/cart"
	"github.com/ovenworks/pizzeria/internal/domain/customer"
	"github.com/ovenworks/pizzeria/internal/domain/delivery"
	"github.com/ovenworks/pizzeria/internal/domain/discount"
)

// CheckoutRequest holds the input for a checkout.
type CheckoutRequest struct {
	CustomerID   string
	SessionID    string
	DiscountCode string
}

// CheckoutResult is the outcome of a successful checkout. DiscountMessage is
// always set when a code was submitted, whether or not it was applied.
type CheckoutResult struct {
	Order           *Order
	DiscountApplied bool
	DiscountAmount  decimal.Decimal
	DiscountMessage string
}

// Service orchestrates checkout and order status reads. Every checkout runs
// as one transaction: order row, order items, loyalty counter, and courier
// stamp commit together or not at all.
type Service struct {
	store     Store
	orders    Repository
	carts     cart.Store
	evaluator *discount.Evaluator
	assigner  *delivery.Assigner

	now func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	store Store,
	orders Repository,
	carts cart.Store,
	evaluator *discount.Evaluator,
	assigner *delivery.Assigner,
) *Service {
	return &Service{
		store:     store,
		orders:    orders,
		carts:     carts,
		evaluator: evaluator,
		assigner:  assigner,
		now:       time.Now,
	}
}

// Checkout prices the cart, evaluates the optional discount code, assigns a
// courier, and persists everything atomically. The cart is cleared only
// after the transaction commits, so a failed checkout can be retried as-is.
//
// An unknown or ineligible discount code is not fatal: the order proceeds at
// full price with the evaluator's message attached, and loyalty pizzas are
// credited either way.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	crt, err := s.carts.Get(ctx, req.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if crt.Empty() {
		return nil, cart.ErrEmptyCart
	}

	var result *CheckoutResult
	err = s.store.ExecCheckout(ctx, func(tx Tx) error {
		res, err := s.checkoutTx(ctx, tx, req, crt)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, classifyCheckoutError(err)
	}

	// The order is committed; a stale cart cannot double-charge, so a
	// failed clear is not worth failing the checkout over.
	_ = s.carts.Clear(ctx, req.SessionID)

	return result, nil
}

func (s *Service) checkoutTx(ctx context.Context, tx Tx, req CheckoutRequest, crt cart.Cart) (*CheckoutResult, error) {
	cust, err := tx.CustomerForUpdate(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	zip, err := cust.PostalCodeInt()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	totalWithVAT := crt.Total()

	courier, err := s.assignCourier(ctx, tx, zip)
	if err != nil {
		return nil, err
	}

	eval := discount.Result{Amount: decimal.Zero}
	if strings.TrimSpace(req.DiscountCode) != "" {
		eval, err = s.evaluator.Evaluate(ctx, cust, req.DiscountCode, crt, tx)
		if err != nil {
			return nil, err
		}
	}

	// Loyalty pizzas accrue on every checkout, eligible discount or not.
	// The one exception is a consumed loyalty reward, which applies the
	// accrue-then-consume reset instead.
	quantity := crt.TotalQuantity()
	newCount := cust.LoyaltyPizzas + quantity
	if eval.Eligible && eval.ConsumesLoyalty {
		newCount = discount.LoyaltyAfterRedemption(cust.LoyaltyPizzas, quantity, s.evaluator.LoyaltyThreshold())
	}
	if err := tx.SetLoyaltyPizzas(ctx, cust.ID, newCount); err != nil {
		return nil, errors.Wrap(err, "update loyalty counter")
	}

	total := totalWithVAT
	var codeID *string
	if eval.Eligible {
		total = total.Sub(eval.Amount)
		if total.IsNegative() {
			total = decimal.Zero
		}
		codeID = &eval.Code.ID
	}

	o := &Order{
		ID:             uuid.New().String(),
		CustomerID:     cust.ID,
		DiscountCodeID: codeID,
		TotalPrice:     total.Round(2),
		Status:         StatusPending,
		CreatedAt:      now,
		Items:          itemsFromCart(crt),
	}
	if courier != nil {
		o.CourierID = &courier.ID
	}

	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	if courier != nil {
		if err := tx.StampCourier(ctx, courier.ID, now); err != nil {
			return nil, errors.Wrap(err, "stamp courier")
		}
	}

	return &CheckoutResult{
		Order:           o,
		DiscountApplied: eval.Eligible,
		DiscountAmount:  eval.Amount,
		DiscountMessage: eval.Message,
	}, nil
}

// assignCourier runs the selection against the transaction's courier view,
// then verifies the pick under a row lock. A courier stamped by a concurrent
// checkout between listing and locking is no longer available; one re-pick
// covers that window, after which the last pick is taken as-is (the override
// stage accepts busy couriers by definition).
func (s *Service) assignCourier(ctx context.Context, tx Tx, zip int) (*delivery.Courier, error) {
	const attempts = 2

	for i := 0; i < attempts; i++ {
		couriers, err := tx.ListCouriers(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list couriers")
		}
		if len(couriers) == 0 {
			return nil, nil
		}

		pick := s.assigner.Select(couriers, zip)
		locked, err := tx.LockCourier(ctx, pick.Courier.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "lock courier %s", pick.Courier.ID)
		}

		if pick.Overrode || s.assigner.Available(*locked) || i == attempts-1 {
			return locked, nil
		}
	}
	return nil, nil
}

// itemsFromCart freezes the cart lines into order items in stable pizza-ID
// order.
func itemsFromCart(crt cart.Cart) []Item {
	ids := make([]string, 0, len(crt.Lines))
	for id := range crt.Lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		line := crt.Lines[id]
		items = append(items, Item{
			ID:        uuid.New().String(),
			PizzaID:   line.PizzaID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return items
}

// classifyCheckoutError keeps caller-meaningful failures as-is and wraps
// infrastructure failures into a ProcessingError.
func classifyCheckoutError(err error) error {
	switch {
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, customer.ErrInvalidPostalCode),
		errors.Is(err, cart.ErrEmptyCart):
		return err
	default:
		return &ProcessingError{cause: err}
	}
}
