package handler

import (
	"net/http"
)

// MenuItem is a published catalog entry. Price is the display price derived
// from the current ingredient costs, rounded up to the next 10-cent
// boundary.
type MenuItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price"`
	Vegetarian  bool     `json:"is_vegetarian"`
	Ingredients []string `json:"ingredients"`
}

// Menu handles GET /api/menu.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	pizzas, err := h.pizzas.List(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	items := make([]MenuItem, len(pizzas))
	for i, p := range pizzas {
		names := make([]string, len(p.Ingredients))
		for j, ing := range p.Ingredients {
			names[j] = ing.Name
		}
		items[i] = MenuItem{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       h.pricer.CatalogPrice(p).StringFixed(2),
			Vegetarian:  p.Vegetarian(),
			Ingredients: names,
		}
	}

	respondJSON(w, http.StatusOK, items)
}
