package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shopsphere/storefront/internal/model"
)

type AddToCartRequest struct {
	ProductID string `json:"product_id"`
	Count     int    `json:"count"` // Optional, defaults to 1 if 0
}

type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Items []model.CartItem `json:"items"`
	Count int              `json:"count"`
	Total float64          `json:"total"`
}

func (h *Handler) writeCart(w http.ResponseWriter) {
	items := h.cart.Items()
	writeJSON(w, http.StatusOK, cartResponse{Items: items, Count: h.cart.Count(), Total: h.cart.Total()})
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w)
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if !decode(w, r, &req) {
		return
	}

	product, ok := h.catalog.ByID(req.ProductID)
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	// Default count to 1 if not provided
	quantity := req.Count
	if quantity <= 0 {
		quantity = 1
	}

	if err := h.cart.Add(r.Context(), product, quantity); err != nil {
		handleError(w, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.cart.SetQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	h.writeCart(w)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.Clear(r.Context()); err != nil {
		handleError(w, err)
		return
	}
	h.writeCart(w)
}
