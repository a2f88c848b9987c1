package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ovenworks/pizzeria/internal/domain/order"
)

// CheckoutRequest places an order from the session's cart.
type CheckoutRequest struct {
	CustomerID   string `json:"customer_id"`
	SessionID    string `json:"session_id"`
	DiscountCode string `json:"discount_code,omitempty"`
}

// OrderItemResponse is a single order line with its frozen unit price.
type OrderItemResponse struct {
	PizzaID   string `json:"pizza_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// OrderResponse is a placed order. DeliveredAt is set only once the order
// has reached its terminal status.
type OrderResponse struct {
	ID          string              `json:"id"`
	CustomerID  string              `json:"customer_id"`
	CourierID   *string             `json:"courier_id,omitempty"`
	TotalPrice  string              `json:"total_price"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	DeliveredAt *time.Time          `json:"delivered_at,omitempty"`
	Items       []OrderItemResponse `json:"items"`
}

// CheckoutResponse wraps the created order with the discount verdict.
type CheckoutResponse struct {
	Order           OrderResponse `json:"order"`
	DiscountApplied bool          `json:"discount_applied"`
	DiscountAmount  string        `json:"discount_amount"`
	DiscountMessage string        `json:"discount_message,omitempty"`
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.CustomerID == "" || req.SessionID == "" {
		badRequest(w, "customer_id and session_id are required")
		return
	}

	res, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		CustomerID:   req.CustomerID,
		SessionID:    req.SessionID,
		DiscountCode: req.DiscountCode,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponse{
		Order:           orderResponse(res.Order),
		DiscountApplied: res.DiscountApplied,
		DiscountAmount:  res.DiscountAmount.StringFixed(2),
		DiscountMessage: res.DiscountMessage,
	})
}

// GetOrder handles GET /api/orders/{orderID}. The returned status is
// derived from elapsed time at the moment of the read.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse(o))
}

func orderResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			PizzaID:   item.PizzaID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
	}
	return OrderResponse{
		ID:          o.ID,
		CustomerID:  o.CustomerID,
		CourierID:   o.CourierID,
		TotalPrice:  o.TotalPrice.StringFixed(2),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		DeliveredAt: o.DeliveredAt,
		Items:       items,
	}
}
