package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"shopsphere/storefront/internal/model"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the remote marketplace API. It holds no session state:
// the bearer token travels in the request context (see WithToken).
type Client struct {
	client *http.Client
	config Config
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		client: &http.Client{
			Transport: &AuthTransport{Base: http.DefaultTransport},
			Timeout:   cfg.Timeout,
		},
		config: cfg,
	}
}

type tokenKey struct{}

// WithToken returns a context whose requests carry a bearer token.
// An empty token leaves the context unchanged.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx, if any.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// AuthTransport adds the bearer token, content negotiation and a request id
type AuthTransport struct {
	Base http.RoundTripper
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	req = req.Clone(ctx)

	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := middleware.GetReqID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br")
	return t.Base.RoundTrip(req)
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var out productsResponse
	if err := c.do(ctx, http.MethodGet, "/public/products", nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) ListReviews(ctx context.Context) ([]model.Review, error) {
	var out reviewsResponse
	if err := c.do(ctx, http.MethodGet, "/public/reviews", nil, &out); err != nil {
		return nil, err
	}
	return out.Reviews, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var out model.Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, in model.ProductInput) (*model.Product, error) {
	var out model.Product
	if err := c.do(ctx, http.MethodPost, "/products", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in model.ProductInput) (*model.Product, error) {
	var out model.Product
	if err := c.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil)
}

func (c *Client) CreateReview(ctx context.Context, in ReviewRequest) (*model.Review, error) {
	var out model.Review
	if err := c.do(ctx, http.MethodPost, "/reviews", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListChatRooms(ctx context.Context) ([]model.ChatRoom, error) {
	var out roomsResponse
	if err := c.do(ctx, http.MethodGet, "/chat/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.ChatRooms, nil
}

func (c *Client) CreateChatRoom(ctx context.Context, in CreateRoomRequest) (*model.ChatRoom, error) {
	var out model.ChatRoom
	if err := c.do(ctx, http.MethodPost, "/chat/rooms", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChatRoom returns the room with its participants filled in.
func (c *Client) GetChatRoom(ctx context.Context, id string) (*model.ChatRoom, error) {
	var out roomResponse
	if err := c.do(ctx, http.MethodGet, "/chat/room/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	room := out.ChatRoom
	room.Participants = out.Participants
	return &room, nil
}

func (c *Client) ListMessages(ctx context.Context, roomID string) ([]model.ChatMessage, error) {
	var out messagesResponse
	if err := c.do(ctx, http.MethodGet, "/chat/room/"+url.PathEscape(roomID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, in SendMessageRequest) (*model.ChatMessage, error) {
	var out model.ChatMessage
	if err := c.do(ctx, http.MethodPost, "/chat/messages", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}

	if resp.Header.Get("Content-Encoding") == "br" {
		resp.Body = &readCloserWrapper{Reader: brotli.NewReader(resp.Body), Closer: resp.Body}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody ErrorResponse
		if err := json.Unmarshal(raw, &errBody); err == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

type readCloserWrapper struct {
	io.Reader
	io.Closer
}

func (r *readCloserWrapper) Read(p []byte) (n int, err error) {
	return r.Reader.Read(p)
}

func (r *readCloserWrapper) Close() error {
	return r.Closer.Close()
}
