package marketplace

import (
	"fmt"

	"shopsphere/storefront/internal/model"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

type ReviewRequest struct {
	ProductID string `json:"productId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type CreateRoomRequest struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
}

type SendMessageRequest struct {
	RoomID      string `json:"room_id"`
	Message     string `json:"message"`
	MessageType string `json:"message_type,omitempty"`
}

type productsResponse struct {
	Products []model.Product `json:"products"`
}

type reviewsResponse struct {
	Reviews []model.Review `json:"reviews"`
}

type roomsResponse struct {
	ChatRooms []model.ChatRoom `json:"chat_rooms"`
}

type roomResponse struct {
	ChatRoom     model.ChatRoom `json:"chat_room"`
	Participants []model.User   `json:"participants"`
}

type messagesResponse struct {
	Messages []model.ChatMessage `json:"messages"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// APIError is returned for any non-2xx response from the marketplace API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("marketplace api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("marketplace api error: status %d: %s", e.StatusCode, e.Message)
}
