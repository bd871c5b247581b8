package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"shopsphere/storefront/internal/model"
	"shopsphere/storefront/internal/storage"
)

const cartKey = "shopsphere-cart"

// CartService is the client-local shopping cart. Every mutation persists the
// full snapshot before returning.
type CartService struct {
	store storage.Store

	mu    sync.Mutex
	items []model.CartItem
}

func NewCartService(store storage.Store) *CartService {
	return &CartService{store: store}
}

// Load restores the persisted cart, discarding it if malformed.
func (s *CartService) Load(ctx context.Context) error {
	raw, err := s.store.Get(ctx, cartKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}

	items, err := DecodeCart(raw)
	if err != nil {
		log.Printf("cart: discarding stored cart: %v", err)
		if err := s.store.Remove(ctx, cartKey); err != nil {
			log.Printf("cart: failed to clear stored cart: %v", err)
		}
		return nil
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

type persistedCartItem struct {
	ID          *string  `json:"id"`
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	Quantity    *float64 `json:"quantity"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
	SellerID    string   `json:"sellerId"`
	SellerName  string   `json:"sellerName"`
	Category    string   `json:"category"`
}

// DecodeCart validates a persisted cart: a JSON list whose items all carry an
// id, a name, a numeric price and a positive whole quantity.
func DecodeCart(raw []byte) ([]model.CartItem, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil, fmt.Errorf("%w: not a list", ErrInvalidCart)
	}

	var stored []persistedCartItem
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCart, err)
	}

	items := make([]model.CartItem, 0, len(stored))
	for i, it := range stored {
		switch {
		case it.ID == nil || *it.ID == "":
			return nil, fmt.Errorf("%w: item %d has no id", ErrInvalidCart, i)
		case it.Name == nil || *it.Name == "":
			return nil, fmt.Errorf("%w: item %d has no name", ErrInvalidCart, i)
		case it.Price == nil:
			return nil, fmt.Errorf("%w: item %d has no price", ErrInvalidCart, i)
		case it.Quantity == nil || *it.Quantity < 1 || *it.Quantity != math.Trunc(*it.Quantity):
			return nil, fmt.Errorf("%w: item %d has an invalid quantity", ErrInvalidCart, i)
		}
		items = append(items, model.CartItem{
			Product: model.Product{
				ID:          *it.ID,
				Name:        *it.Name,
				Description: it.Description,
				Price:       *it.Price,
				ImageURL:    it.ImageURL,
				SellerID:    it.SellerID,
				SellerName:  it.SellerName,
				Category:    it.Category,
			},
			Quantity: int(*it.Quantity),
		})
	}
	return items, nil
}

// Add puts quantity units of product in the cart, merging with an existing
// line. A non-positive quantity counts as one.
func (s *CartService) Add(ctx context.Context, product model.Product, quantity int) error {
	if product.ID == "" {
		return fmt.Errorf("%w: product has no id", ErrInvalidInput)
	}
	if quantity <= 0 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.CartItem, 0, len(s.items)+1)
	merged := false
	for _, item := range s.items {
		if item.ID == product.ID {
			item.Quantity += quantity
			merged = true
		}
		next = append(next, item)
	}
	if !merged {
		next = append(next, model.CartItem{Product: product, Quantity: quantity})
	}
	return s.commit(ctx, next)
}

func (s *CartService) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, without(s.items, productID))
}

// SetQuantity replaces the quantity of a line; zero or less removes it.
func (s *CartService) SetQuantity(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.commit(ctx, without(s.items, productID))
	}

	next := make([]model.CartItem, len(s.items))
	copy(next, s.items)
	for i := range next {
		if next[i].ID == productID {
			next[i].Quantity = quantity
		}
	}
	return s.commit(ctx, next)
}

func (s *CartService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(ctx, cartKey); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	s.items = nil
	return nil
}

func (s *CartService) Items() []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *CartService) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, item := range s.items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

func (s *CartService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

func (s *CartService) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == productID {
			return true
		}
	}
	return false
}

// commit persists the new snapshot and swaps it in. The cart is left
// unchanged when persisting fails. Must hold s.mu.
func (s *CartService) commit(ctx context.Context, next []model.CartItem) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.store.Set(ctx, cartKey, raw); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	s.items = next
	return nil
}

func without(items []model.CartItem, productID string) []model.CartItem {
	next := make([]model.CartItem, 0, len(items))
	for _, item := range items {
		if item.ID != productID {
			next = append(next, item)
		}
	}
	return next
}
