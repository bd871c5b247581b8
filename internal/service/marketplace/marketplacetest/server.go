// Package marketplacetest runs an in-memory marketplace API for tests.
package marketplacetest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"shopsphere/storefront/internal/model"
	"shopsphere/storefront/internal/service/marketplace"
)

const Password = "secret"

var (
	Seller   = model.User{ID: "seller-1", Username: "alice", Role: model.RoleSeller}
	Seller2  = model.User{ID: "seller-2", Username: "carol", Role: model.RoleSeller}
	Customer = model.User{ID: "customer-1", Username: "bob", Role: model.RoleCustomer}
)

// TokenFor returns the bearer token the server issues to u.
func TokenFor(u model.User) string {
	return "token-" + u.ID
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    []model.User
	products []model.Product
	reviews  []model.Review
	rooms    []model.ChatRoom
	members  map[string][]model.User
	messages map[string][]model.ChatMessage
	failures map[string]int
	hits     map[string]int
	seq      int
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		users:    []model.User{Seller, Seller2, Customer},
		members:  make(map[string][]model.User),
		messages: make(map[string][]model.ChatMessage),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.track)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Get("/public/products", s.listProducts)
		r.Get("/public/reviews", s.listReviews)

		r.Group(func(r chi.Router) {
			r.Use(s.auth)
			r.Get("/products/{id}", s.getProduct)
			r.Post("/products", s.createProduct)
			r.Put("/products/{id}", s.updateProduct)
			r.Delete("/products/{id}", s.deleteProduct)
			r.Post("/reviews", s.createReview)
			r.Get("/chat/rooms", s.listRooms)
			r.Post("/chat/rooms", s.createRoom)
			r.Get("/chat/room/{id}", s.getRoom)
			r.Get("/chat/room/{id}/messages", s.listMessages)
			r.Post("/chat/messages", s.sendMessage)
		})
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to configure a marketplace.Client with.
func (s *Server) BaseURL() string {
	return s.URL + "/api/v1"
}

func (s *Server) Client() *marketplace.Client {
	return marketplace.NewClient(marketplace.Config{BaseURL: s.BaseURL(), Timeout: 5 * time.Second})
}

// Fail makes every request matching "METHOD /api/v1/path" answer with status
// until Recover is called.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Hits counts requests received for "METHOD /api/v1/path".
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) AddProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = s.nextID("product")
	}
	s.products = append(s.products, p)
	return p
}

func (s *Server) AddReview(r model.Review) model.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.nextID("review")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.reviews = append(s.reviews, r)
	return r
}

func (s *Server) AddRoom(name string, creator model.User, participants ...model.User) model.ChatRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRoom(name, creator, participants)
}

// Post stores a message as if from sender, bypassing the API.
func (s *Server) Post(roomID string, sender model.User, text string) model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.post(roomID, sender, text, "text")
}

func (s *Server) Rooms() []model.ChatRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatRoom(nil), s.rooms...)
}

func (s *Server) Messages(roomID string) []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatMessage(nil), s.messages[roomID]...)
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Server) addRoom(name string, creator model.User, participants []model.User) model.ChatRoom {
	room := model.ChatRoom{
		ID:        s.nextID("room"),
		Name:      name,
		Kind:      "direct",
		CreatedBy: creator.ID,
		CreatedAt: time.Now().UTC(),
	}
	s.rooms = append(s.rooms, room)
	s.members[room.ID] = append([]model.User{creator}, participants...)
	return room
}

func (s *Server) post(roomID string, sender model.User, text, kind string) model.ChatMessage {
	msg := model.ChatMessage{
		ID:         s.nextID("msg"),
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.Username,
		Text:       text,
		Type:       kind,
		CreatedAt:  time.Now().UTC(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.hits[route]++
		status, failing := s.failures[route]
		s.mu.Unlock()

		if failing {
			writeError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userKey struct{}

func contextWithUser(r *http.Request, u model.User) context.Context {
	return context.WithValue(r.Context(), userKey{}, u)
}

func userFrom(r *http.Request) model.User {
	u, _ := r.Context().Value(userKey{}).(model.User)
	return u
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		for _, u := range s.users {
			if token == TokenFor(u) {
				next.ServeHTTP(w, r.WithContext(contextWithUser(r, u)))
				return
			}
		}
		writeError(w, http.StatusUnauthorized, "Authorization header required")
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req marketplace.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, u := range s.users {
		if u.Username == req.Username && req.Password == Password {
			writeJSON(w, http.StatusOK, marketplace.LoginResponse{User: u, Token: TokenFor(u)})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Invalid credentials")
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"products":   append([]model.Product{}, s.products...),
		"pagination": map[string]int{"page": 1, "total": len(s.products)},
	})
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"reviews": append([]model.Review{}, s.reviews...)})
}

func (s *Server) findProduct(id string) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findProduct(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, s.products[i])
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	if u.Role != model.RoleSeller {
		writeError(w, http.StatusForbidden, "Only sellers can create products")
		return
	}
	var in model.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p := model.Product{
		ID:          s.nextID("product"),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageURL,
		SellerID:    u.ID,
		SellerName:  u.Username,
		Category:    in.Category,
	}
	s.products = append(s.products, p)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var in model.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findProduct(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if s.products[i].SellerID != userFrom(r).ID {
		writeError(w, http.StatusForbidden, "Not the owner of this product")
		return
	}
	p := &s.products[i]
	p.Name, p.Description, p.Price, p.ImageURL, p.Category = in.Name, in.Description, in.Price, in.ImageURL, in.Category
	writeJSON(w, http.StatusOK, *p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	i := s.findProduct(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	if s.products[i].SellerID != userFrom(r).ID {
		writeError(w, http.StatusForbidden, "Not the owner of this product")
		return
	}
	s.products = append(s.products[:i], s.products[i+1:]...)

	kept := s.reviews[:0]
	for _, rv := range s.reviews {
		if rv.ProductID != id {
			kept = append(kept, rv)
		}
	}
	s.reviews = kept
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	var in marketplace.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findProduct(in.ProductID) < 0 {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	rv := model.Review{
		ID:        s.nextID("review"),
		ProductID: in.ProductID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: time.Now().UTC(),
	}
	s.reviews = append(s.reviews, rv)
	writeJSON(w, http.StatusCreated, rv)
}

func (s *Server) isMember(roomID, userID string) bool {
	for _, m := range s.members[roomID] {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := []model.ChatRoom{}
	for _, room := range s.rooms {
		if s.isMember(room.ID, u.ID) {
			rooms = append(rooms, room)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat_rooms": rooms})
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var in marketplace.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var participants []model.User
	for _, id := range in.Participants {
		for _, u := range s.users {
			if u.ID == id {
				participants = append(participants, u)
			}
		}
	}
	writeJSON(w, http.StatusCreated, s.addRoom(in.Name, userFrom(r), participants))
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.ID == id {
			writeJSON(w, http.StatusOK, map[string]any{"chat_room": room, "participants": s.members[id]})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Chat room not found")
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isMember(id, userFrom(r).ID) {
		writeError(w, http.StatusForbidden, "Not a participant of this room")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": append([]model.ChatMessage{}, s.messages[id]...)})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var in marketplace.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.MessageType == "" {
		in.MessageType = "text"
	}

	u := userFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isMember(in.RoomID, u.ID) {
		writeError(w, http.StatusForbidden, "Not a participant of this room")
		return
	}
	writeJSON(w, http.StatusCreated, s.post(in.RoomID, u, in.Message, in.MessageType))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, marketplace.ErrorResponse{Error: msg})
}
