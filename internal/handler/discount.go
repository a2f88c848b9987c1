package handler

import (
	"net/http"
)

// PreviewDiscountRequest asks whether a code would apply to the session's
// current cart. Nothing is consumed; checkout re-evaluates inside its
// transaction.
type PreviewDiscountRequest struct {
	CustomerID string `json:"customer_id"`
	SessionID  string `json:"session_id"`
	Code       string `json:"code"`
}

// PreviewDiscountResponse mirrors the evaluator's verdict.
type PreviewDiscountResponse struct {
	Eligible bool   `json:"eligible"`
	Message  string `json:"message"`
	Amount   string `json:"amount"`
}

// PreviewDiscount handles POST /api/discount/preview.
func (h *Handler) PreviewDiscount(w http.ResponseWriter, r *http.Request) {
	var req PreviewDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.CustomerID == "" || req.Code == "" {
		badRequest(w, "customer_id and code are required")
		return
	}

	ctx := r.Context()
	cust, err := h.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	crt, err := h.carts.Get(ctx, req.SessionID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	res, err := h.evaluator.Evaluate(ctx, cust, req.Code, crt, h.usage)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, PreviewDiscountResponse{
		Eligible: res.Eligible,
		Message:  res.Message,
		Amount:   res.Amount.StringFixed(2),
	})
}
