package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"shopsphere/storefront/internal/model"
	"shopsphere/storefront/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

type SendMessageRequest struct {
	// Message replaces the draft when set.
	Message string `json:"message"`
}

type DraftRequest struct {
	Text string `json:"text"`
}

type conversationResponse struct {
	ProductID string              `json:"product_id"`
	State     string              `json:"state"`
	Room      *model.ChatRoom     `json:"room,omitempty"`
	Messages  []model.ChatMessage `json:"messages"`
	Draft     string              `json:"draft"`
	Error     string              `json:"error,omitempty"`
}

func conversationView(c *service.Conversation) conversationResponse {
	resp := conversationResponse{
		ProductID: c.ProductID(),
		State:     c.State().String(),
		Messages:  c.Messages(),
		Draft:     c.Draft(),
		Error:     c.Err(),
	}
	if room, ok := c.Room(); ok {
		resp.Room = &room
	}
	return resp
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) (*service.Conversation, bool) {
	conv, ok := h.chat.Get(chi.URLParam(r, "productID"))
	if !ok {
		writeError(w, http.StatusNotFound, "chat is not open for this product")
		return nil, false
	}
	return conv, true
}

func (h *Handler) OpenChat(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chat.Open(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		if conv == nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, conversationView(conv))
		return
	}
	writeJSON(w, http.StatusOK, conversationView(conv))
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, conversationView(conv))
}

func (h *Handler) CloseChat(w http.ResponseWriter, r *http.Request) {
	h.chat.Close(chi.URLParam(r, "productID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetChatDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if !decode(w, r, &req) {
		return
	}
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	conv.SetDraft(req.Text)
	writeJSON(w, http.StatusOK, conversationView(conv))
}

func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	if req.Message != "" {
		conv.SetDraft(req.Message)
	}
	msg, err := conv.Send(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) || errors.Is(err, service.ErrChatNotReady) || errors.Is(err, service.ErrSendInProgress) {
			handleError(w, err)
			return
		}
		// The draft is kept so the user can retry.
		writeJSON(w, http.StatusBadGateway, conversationView(conv))
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type streamEvent struct {
	Type     string              `json:"type"`
	Messages []model.ChatMessage `json:"messages,omitempty"`
	Message  *model.ChatMessage  `json:"message,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// ChatStream pushes the message list of an open conversation over a
// websocket whenever it changes. Text frames from the client are sent as
// chat messages.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("chat: websocket upgrade failed: %v", err)
		return
	}

	updates, unsubscribe := conv.Subscribe()
	defer unsubscribe()

	events := make(chan streamEvent, 8)
	done := make(chan struct{})
	go h.readStream(r.Context(), conn, conv, events, done)

	events <- streamEvent{Type: "messages", Messages: conv.Messages()}

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case messages, ok := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "chat closed"))
				return
			}
			if err := conn.WriteJSON(streamEvent{Type: "messages", Messages: messages}); err != nil {
				return
			}
		case evt := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) readStream(ctx context.Context, conn *websocket.Conn, conv *service.Conversation, events chan<- streamEvent, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var req SendMessageRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("chat: websocket read error: %v", err)
			}
			return
		}

		msg, err := conv.SendText(ctx, req.Message)
		evt := streamEvent{Type: "sent", Message: msg}
		if err != nil {
			evt = streamEvent{Type: "error", Error: conv.Err()}
			if evt.Error == "" {
				evt.Error = err.Error()
			}
		}
		select {
		case events <- evt:
		default:
		}
	}
}
