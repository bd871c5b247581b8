package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"shopsphere/storefront/internal/service"
)

// Deps are the services the gateway exposes.
type Deps struct {
	Sessions     *service.SessionService
	Cart         *service.CartService
	Catalog      *service.CatalogService
	Chat         *service.ChatService
	Descriptions *service.DescriptionService
}

type Handler struct {
	router *chi.Mux

	sessions     *service.SessionService
	cart         *service.CartService
	catalog      *service.CatalogService
	chat         *service.ChatService
	descriptions *service.DescriptionService

	upgrader websocket.Upgrader
}

func NewHandler(deps Deps) *Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	h := &Handler{
		router:       router,
		sessions:     deps.Sessions,
		cart:         deps.Cart,
		catalog:      deps.Catalog,
		chat:         deps.Chat,
		descriptions: deps.Descriptions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/login", h.Login)
			r.Delete("/", h.Logout)
		})

		r.Get("/categories", h.ListCategories)
		r.Post("/catalog/refresh", h.RefreshCatalog)
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Get("/{id}/reviews", h.ListProductReviews)
			r.Get("/{id}/reviews/stats", h.GetReviewStats)
		})
		r.Post("/reviews", h.CreateReview)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{id}", h.SetCartQuantity)
			r.Delete("/items/{id}", h.RemoveCartItem)
		})

		r.Route("/chat/{productID}", func(r chi.Router) {
			r.Post("/", h.OpenChat)
			r.Get("/", h.GetChat)
			r.Delete("/", h.CloseChat)
			r.Put("/draft", h.SetChatDraft)
			r.Post("/messages", h.SendChatMessage)
			r.Get("/ws", h.ChatStream)
		})

		r.Post("/ai/description", h.GenerateDescription)
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
