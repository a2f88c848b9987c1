// Package handler exposes the ordering platform over HTTP. Handlers are
// thin: they decode requests, delegate to domain services, and map domain
// errors to the HTTP taxonomy in respondError.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovenworks/pizzeria/internal/domain/auth"
	"github.com/ovenworks/pizzeria/internal/domain/cart"
	"github.com/ovenworks/pizzeria/internal/domain/catalog"
	"github.com/ovenworks/pizzeria/internal/domain/customer"
	"github.com/ovenworks/pizzeria/internal/domain/discount"
	"github.com/ovenworks/pizzeria/internal/domain/order"
)

// DiscountAdmin covers the admin-side discount writes.
type DiscountAdmin interface {
	FindTypeByName(ctx context.Context, name string) (*discount.Type, error)
	CreateCode(ctx context.Context, c *discount.Code) error
}

// CatalogAdmin covers the admin-side catalog writes used by repricing.
type CatalogAdmin interface {
	List(ctx context.Context) ([]catalog.Pizza, error)
	UpdatePrice(ctx context.Context, id string, price decimal.Decimal) error
}

// Handler wires the HTTP surface to the domain layer.
type Handler struct {
	pizzas    catalog.Repository
	pricer    *catalog.Pricer
	carts     cart.Store
	customers customer.Repository
	evaluator *discount.Evaluator
	usage     discount.UsageChecker
	orders    *order.Service

	discountAdmin DiscountAdmin
	catalogAdmin  CatalogAdmin
	auth          *auth.Authenticator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	pizzas catalog.Repository,
	pricer *catalog.Pricer,
	carts cart.Store,
	customers customer.Repository,
	evaluator *discount.Evaluator,
	usage discount.UsageChecker,
	orders *order.Service,
	discountAdmin DiscountAdmin,
	catalogAdmin CatalogAdmin,
	authenticator *auth.Authenticator,
) *Handler {
	return &Handler{
		pizzas:        pizzas,
		pricer:        pricer,
		carts:         carts,
		customers:     customers,
		evaluator:     evaluator,
		usage:         usage,
		orders:        orders,
		discountAdmin: discountAdmin,
		catalogAdmin:  catalogAdmin,
		auth:          authenticator,
	}
}

// Routes mounts all API routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", h.Menu)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddCartItem)
			r.Delete("/items/{pizzaID}", h.RemoveCartItem)
		})

		r.Post("/discount/preview", h.PreviewDiscount)
		r.Post("/checkout", h.Checkout)
		r.Get("/orders/{orderID}", h.GetOrder)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireAPIKey(auth.ScopeAdmin))
		r.Post("/discount-codes", h.CreateDiscountCode)
		r.Post("/reprice", h.Reprice)
	})
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps domain errors to HTTP statuses. Unrecognized errors are
// logged and returned as an opaque 500 so internals never leak to clients.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var status int
	message := err.Error()

	var pErr *order.ProcessingError
	switch {
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, order.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, customer.ErrInvalidPostalCode):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.As(err, &pErr):
		status = http.StatusInternalServerError
		message = "order processing failed"
		zctx.From(ctx).Error("checkout failed", zap.Error(err))
	default:
		status = http.StatusInternalServerError
		message = "internal error"
		zctx.From(ctx).Error("request failed", zap.Error(err))
	}

	respondJSON(w, status, errorResponse{Code: status, Message: message})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

func badRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: message,
	})
}
