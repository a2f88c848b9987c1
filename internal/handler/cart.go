package handler

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ovenworks/pizzeria/internal/domain/cart"
)

// AddCartItemRequest adds a pizza to a session's cart. An empty SessionID
// starts a new session; the assigned id is echoed back in the response.
type AddCartItemRequest struct {
	SessionID string `json:"session_id"`
	PizzaID   string `json:"pizza_id"`
	Quantity  int    `json:"quantity"`
}

// CartResponse is the cart's current state.
type CartResponse struct {
	SessionID string      `json:"session_id"`
	Lines     []cart.Line `json:"lines"`
	Total     string      `json:"total"`
	Quantity  int         `json:"quantity"`
}

// AddCartItem handles POST /api/cart/items. The unit price is quoted from
// the current ingredient costs exactly once, here; later repricing never
// touches lines already in a cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.PizzaID == "" {
		badRequest(w, "pizza_id is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	ctx := r.Context()
	pizza, err := h.pizzas.GetByID(ctx, req.PizzaID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	crt, err := h.carts.Get(ctx, req.SessionID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	line := cart.Line{
		PizzaID:    pizza.ID,
		Name:       pizza.Name,
		UnitPrice:  h.pricer.Quote(*pizza),
		Quantity:   req.Quantity,
		Vegetarian: pizza.Vegetarian(),
	}
	if err := crt.Add(line); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.carts.Set(ctx, req.SessionID, crt); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(req.SessionID, crt))
}

// RemoveCartItem handles DELETE /api/cart/items/{pizzaID}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		badRequest(w, "session_id is required")
		return
	}

	ctx := r.Context()
	crt, err := h.carts.Get(ctx, sessionID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	crt.Remove(chi.URLParam(r, "pizzaID"))

	if err := h.carts.Set(ctx, sessionID, crt); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(sessionID, crt))
}

// GetCart handles GET /api/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		badRequest(w, "session_id is required")
		return
	}

	crt, err := h.carts.Get(r.Context(), sessionID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, cartResponse(sessionID, crt))
}

func cartResponse(sessionID string, crt cart.Cart) CartResponse {
	lines := make([]cart.Line, 0, len(crt.Lines))
	for _, line := range crt.Lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].PizzaID < lines[j].PizzaID })
	return CartResponse{
		SessionID: sessionID,
		Lines:     lines,
		Total:     crt.Total().StringFixed(2),
		Quantity:  crt.TotalQuantity(),
	}
}
