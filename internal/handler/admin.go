package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ovenworks/pizzeria/internal/domain/discount"
)

// CreateDiscountCodeRequest mints a new code for an existing discount type.
// TypeName must be one of the three configured type names.
type CreateDiscountCodeRequest struct {
	Code     string `json:"code"`
	TypeName string `json:"type_name"`
}

// CreateDiscountCodeResponse echoes the stored code.
type CreateDiscountCodeResponse struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	TypeName string `json:"type_name"`
}

// CreateDiscountCode handles POST /admin/discount-codes.
func (h *Handler) CreateDiscountCode(w http.ResponseWriter, r *http.Request) {
	var req CreateDiscountCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Code == "" || req.TypeName == "" {
		badRequest(w, "code and type_name are required")
		return
	}

	ctx := r.Context()
	typ, err := h.discountAdmin.FindTypeByName(ctx, req.TypeName)
	if err != nil {
		badRequest(w, "unknown discount type")
		return
	}

	code := &discount.Code{
		ID:   uuid.New().String(),
		Code: req.Code,
		Type: *typ,
	}
	if err := h.discountAdmin.CreateCode(ctx, code); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateDiscountCodeResponse{
		ID:       code.ID,
		Code:     code.Code,
		TypeName: typ.Name,
	})
}

// RepriceResponse reports how many menu prices were rewritten.
type RepriceResponse struct {
	Updated int `json:"updated"`
}

// Reprice handles POST /admin/reprice: recompute every menu price from the
// current ingredient costs. Existing carts and orders keep their frozen
// prices.
func (h *Handler) Reprice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pizzas, err := h.catalogAdmin.List(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	updated := 0
	for _, p := range pizzas {
		price := h.pricer.CatalogPrice(p)
		if price.Equal(p.Price) {
			continue
		}
		if err := h.catalogAdmin.UpdatePrice(ctx, p.ID, price); err != nil {
			respondError(ctx, w, err)
			return
		}
		updated++
	}

	respondJSON(w, http.StatusOK, RepriceResponse{Updated: updated})
}
