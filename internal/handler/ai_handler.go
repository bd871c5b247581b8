package handler

import (
	"net/http"
	"strings"

	"shopsphere/storefront/internal/service"
)

type DescriptionRequest struct {
	Name     string `json:"name"`
	Keywords string `json:"keywords"`
	Category string `json:"category"`
	// Format is "text" (default) or "json".
	Format string `json:"format"`
}

// GenerateDescription always answers 200 with usable text; the failure field
// says when the text is a fallback.
func (h *Handler) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	var req DescriptionRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	in := service.DescriptionRequest{Name: req.Name, Keywords: req.Keywords, Category: req.Category}

	var out service.Description
	switch req.Format {
	case "", "text":
		out = h.descriptions.Generate(r.Context(), in)
	case "json":
		out = h.descriptions.GenerateJSON(r.Context(), in)
	default:
		writeError(w, http.StatusBadRequest, "format must be text or json")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
