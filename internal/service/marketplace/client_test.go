package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopsphere/storefront/internal/model"
)

func TestLogin_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.Username)
		assert.Equal(t, "secret", req.Password)

		json.NewEncoder(w).Encode(LoginResponse{
			User:  model.User{ID: "u1", Username: "alice", Role: model.RoleSeller},
			Token: "tok-1",
		})
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL + "/api/v1/"})

	resp, err := client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, model.RoleSeller, resp.User.Role)
	assert.Equal(t, "tok-1", resp.Token)
}

func TestLogin_Unauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid credentials"}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	_, err := client.Login(context.Background(), "alice", "wrong")
	var apiErr *APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "Invalid credentials", apiErr.Message)
	}
}

func TestBearerToken_FromContext(t *testing.T) {
	var gotAuth []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{"products": []model.Product{}})
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	_, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	_, err = client.ListProducts(WithToken(context.Background(), "tok-9"))
	require.NoError(t, err)
	_, err = client.ListProducts(WithToken(context.Background(), ""))
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Bearer tok-9", ""}, gotAuth)
}

func TestListProducts_Brotli(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "br", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		json.NewEncoder(bw).Encode(map[string]any{
			"products": []model.Product{
				{ID: "p1", Name: "Laptop", Price: 999.5, SellerID: "s1", Category: "Laptops"},
			},
			"pagination": map[string]int{"page": 1},
		})
		bw.Close()
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	products, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	if assert.Len(t, products, 1) {
		assert.Equal(t, "Laptop", products[0].Name)
		assert.Equal(t, 999.5, products[0].Price)
	}
}

func TestGetChatRoom_MergesParticipants(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/room/r1", r.URL.Path)
		w.Write([]byte(`{
			"chat_room": {"id":"r1","name":"Chat about Lamp","type":"direct","created_by":"u1"},
			"participants": [{"id":"u1","username":"alice","role":"customer"},{"id":"s1","username":"bob","role":"seller"}]
		}`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	room, err := client.GetChatRoom(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "direct", room.Kind)
	assert.Len(t, room.Participants, 2)
}

func TestSendMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "r1", req.RoomID)
		assert.Equal(t, "text", req.MessageType)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.ChatMessage{ID: "m1", RoomID: req.RoomID, Text: req.Message, Type: req.MessageType})
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	msg, err := client.SendMessage(context.Background(), SendMessageRequest{RoomID: "r1", Message: "hi", MessageType: "text"})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hi", msg.Text)
}

func TestDeleteProduct_PlainTextError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	err := client.DeleteProduct(context.Background(), "p1")
	var apiErr *APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "gateway down", apiErr.Message)
	}
}

func TestListReviews_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`invalid-json`))
	}))
	defer ts.Close()

	client := NewClient(Config{BaseURL: ts.URL})

	_, err := client.ListReviews(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid character")
}
