package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shopsphere/storefront/internal/model"
	"shopsphere/storefront/internal/service"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products := h.catalog.Filter(service.Query{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		SellerID: q.Get("seller"),
		Sort:     q.Get("sort"),
	})
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.catalog.ByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in model.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.catalog.AddProduct(r.Context(), in)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in model.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	reviews := h.catalog.ReviewsFor(chi.URLParam(r, "id"))
	if reviews == nil {
		reviews = []model.Review{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

func (h *Handler) GetReviewStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Stats(chi.URLParam(r, "id")))
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var in model.ReviewInput
	if !decode(w, r, &in) {
		return
	}
	review, err := h.catalog.AddReview(r.Context(), in)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *Handler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(r.Context()); err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"products": len(h.catalog.Products()),
		"reviews":  len(h.catalog.Reviews()),
	})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": h.catalog.Categories()})
}
