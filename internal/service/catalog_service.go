package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"

	"shopsphere/storefront/internal/model"
	"shopsphere/storefront/internal/service/marketplace"
)

var categories = []string{
	"Electronics", "Furniture", "Groceries", "Books", "Clothing", "Toys", "Sports", "Laptops",
	"Accessories", "Smartphones", "Tablets", "Chargers", "Wearables", "E-readers", "Storage",
	"Graphics Cards", "Monitors", "Printers", "3D Printers", "Keyboards", "Audio", "Cameras",
	"Drones", "Gaming Consoles", "Gaming Handhelds", "Cooling", "Networking",
}

type CatalogAPI interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListReviews(ctx context.Context) ([]model.Review, error)
	CreateProduct(ctx context.Context, in model.ProductInput) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, in model.ProductInput) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	CreateReview(ctx context.Context, in marketplace.ReviewRequest) (*model.Review, error)
}

// CatalogService mirrors the server's product and review lists. It is never
// the source of truth: every successful write is followed by a re-fetch.
type CatalogService struct {
	api      CatalogAPI
	identity Identity

	mu       sync.RWMutex
	products []model.Product
	reviews  []model.Review
}

func NewCatalogService(api CatalogAPI, identity Identity) *CatalogService {
	return &CatalogService{api: api, identity: identity}
}

// Refresh re-fetches products and reviews concurrently. A failed side is
// emptied and its error returned; the other side is still applied.
func (s *CatalogService) Refresh(ctx context.Context) error {
	var g errgroup.Group
	var productsErr, reviewsErr error

	g.Go(func() error {
		productsErr = s.RefreshProducts(ctx)
		return nil
	})
	g.Go(func() error {
		reviewsErr = s.RefreshReviews(ctx)
		return nil
	})
	_ = g.Wait()

	return errors.Join(productsErr, reviewsErr)
}

func (s *CatalogService) RefreshProducts(ctx context.Context) error {
	products, err := s.api.ListProducts(s.withAuth(ctx))
	if err != nil {
		log.Printf("catalog: error fetching products: %v", err)
		products = nil
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to fetch products: %w", err)
	}
	return nil
}

func (s *CatalogService) RefreshReviews(ctx context.Context) error {
	// Reviews are public and fetched without credentials.
	reviews, err := s.api.ListReviews(ctx)
	if err != nil {
		log.Printf("catalog: error fetching reviews: %v", err)
		reviews = nil
	}

	s.mu.Lock()
	s.reviews = reviews
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to fetch reviews: %w", err)
	}
	return nil
}

func (s *CatalogService) withAuth(ctx context.Context) context.Context {
	if sess, ok := s.identity.Current(); ok {
		return marketplace.WithToken(ctx, sess.Token)
	}
	return ctx
}

func (s *CatalogService) Products() []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *CatalogService) ByID(id string) (model.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

func (s *CatalogService) Reviews() []model.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Review, len(s.reviews))
	copy(out, s.reviews)
	return out
}

// ReviewsFor returns the reviews of one product, newest first.
func (s *CatalogService) ReviewsFor(productID string) []model.Review {
	s.mu.RLock()
	var out []model.Review
	for _, r := range s.reviews {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Stats summarizes the reviews of one product. Ratings outside 1..5 are
// ignored.
func (s *CatalogService) Stats(productID string) model.ReviewStats {
	stats := model.ReviewStats{RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	total := 0
	for _, r := range s.ReviewsFor(productID) {
		if r.Rating < 1 || r.Rating > 5 {
			continue
		}
		stats.TotalReviews++
		stats.RatingDistribution[r.Rating]++
		total += r.Rating
	}
	if stats.TotalReviews > 0 {
		stats.AverageRating = float64(total) / float64(stats.TotalReviews)
	}
	return stats
}

func (s *CatalogService) Categories() []string {
	out := make([]string, len(categories))
	copy(out, categories)
	return out
}

const (
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
)

type Query struct {
	Search   string
	Category string
	SellerID string
	Sort     string
}

// Filter narrows and orders the product list. Search matches name,
// description, seller and category case-insensitively; categories compare by slug.
func (s *CatalogService) Filter(q Query) []model.Product {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	category := ""
	if q.Category != "" {
		category = slug.Make(q.Category)
	}

	var out []model.Product
	for _, p := range s.Products() {
		if search != "" && !matches(p, search) {
			continue
		}
		if category != "" && slug.Make(p.Category) != category {
			continue
		}
		if q.SellerID != "" && p.SellerID != q.SellerID {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	case SortNameAsc:
		sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	case SortNameDesc:
		sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) > strings.ToLower(out[j].Name) })
	}
	return out
}

func matches(p model.Product, search string) bool {
	for _, field := range []string{p.Name, p.Description, p.SellerName, p.Category} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// seller returns the session if it belongs to a seller.
func (s *CatalogService) seller() (model.Session, error) {
	sess, ok := s.identity.Current()
	if !ok || sess.Token == "" {
		return model.Session{}, ErrUnauthenticated
	}
	if sess.User.Role != model.RoleSeller {
		return model.Session{}, fmt.Errorf("%w: only sellers can manage products", ErrForbidden)
	}
	return sess, nil
}

// owns rejects writes to products the catalog knows belong to another seller.
func (s *CatalogService) owns(sess model.Session, productID string) error {
	if p, ok := s.ByID(productID); ok && p.SellerID != sess.User.ID {
		return fmt.Errorf("%w: product belongs to another seller", ErrForbidden)
	}
	return nil
}

func validateProduct(in model.ProductInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case in.Price <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	case strings.TrimSpace(in.Category) == "":
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	return nil
}

func (s *CatalogService) AddProduct(ctx context.Context, in model.ProductInput) (*model.Product, error) {
	sess, err := s.seller()
	if err != nil {
		log.Printf("catalog: add product rejected: %v", err)
		return nil, err
	}
	if err := validateProduct(in); err != nil {
		return nil, err
	}

	product, err := s.api.CreateProduct(marketplace.WithToken(ctx, sess.Token), in)
	if err != nil {
		log.Printf("catalog: error adding product: %v", err)
		return nil, fmt.Errorf("failed to add product: %w", err)
	}

	if err := s.RefreshProducts(ctx); err != nil {
		log.Printf("catalog: refresh after add failed: %v", err)
	}
	return product, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in model.ProductInput) (*model.Product, error) {
	sess, err := s.seller()
	if err != nil {
		log.Printf("catalog: update product rejected: %v", err)
		return nil, err
	}
	if err := s.owns(sess, id); err != nil {
		return nil, err
	}
	if err := validateProduct(in); err != nil {
		return nil, err
	}

	product, err := s.api.UpdateProduct(marketplace.WithToken(ctx, sess.Token), id, in)
	if err != nil {
		log.Printf("catalog: error updating product %s: %v", id, err)
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if err := s.RefreshProducts(ctx); err != nil {
		log.Printf("catalog: refresh after update failed: %v", err)
	}
	return product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	sess, err := s.seller()
	if err != nil {
		log.Printf("catalog: delete product rejected: %v", err)
		return err
	}
	if err := s.owns(sess, id); err != nil {
		return err
	}

	if err := s.api.DeleteProduct(marketplace.WithToken(ctx, sess.Token), id); err != nil {
		log.Printf("catalog: error deleting product %s: %v", id, err)
		return fmt.Errorf("failed to delete product: %w", err)
	}

	// The server drops the product's reviews along with it.
	if err := s.Refresh(ctx); err != nil {
		log.Printf("catalog: refresh after delete failed: %v", err)
	}
	return nil
}

func (s *CatalogService) AddReview(ctx context.Context, in model.ReviewInput) (*model.Review, error) {
	sess, ok := s.identity.Current()
	if !ok || sess.Token == "" {
		log.Printf("catalog: add review rejected: %v", ErrUnauthenticated)
		return nil, ErrUnauthenticated
	}
	if in.ProductID == "" {
		return nil, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	review, err := s.api.CreateReview(marketplace.WithToken(ctx, sess.Token), marketplace.ReviewRequest{
		ProductID: in.ProductID,
		UserID:    sess.User.ID,
		UserName:  sess.User.Username,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	})
	if err != nil {
		log.Printf("catalog: error adding review: %v", err)
		return nil, fmt.Errorf("failed to add review: %w", err)
	}

	if err := s.RefreshReviews(ctx); err != nil {
		log.Printf("catalog: refresh after review failed: %v", err)
	}
	return review, nil
}
