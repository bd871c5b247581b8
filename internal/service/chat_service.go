package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"shopsphere/storefront/internal/model"
	"shopsphere/storefront/internal/service/marketplace"
)

const (
	roomLoadFailedMessage = "Failed to load chat room. Please make sure the product exists."
	sendFailedMessage     = "Failed to send message. Please try again."
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrChatNotReady   = errors.New("chat room is not ready")
	ErrSendInProgress = errors.New("a message is already being sent")
)

type ChatAPI interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListChatRooms(ctx context.Context) ([]model.ChatRoom, error)
	CreateChatRoom(ctx context.Context, in marketplace.CreateRoomRequest) (*model.ChatRoom, error)
	GetChatRoom(ctx context.Context, id string) (*model.ChatRoom, error)
	ListMessages(ctx context.Context, roomID string) ([]model.ChatMessage, error)
	SendMessage(ctx context.Context, in marketplace.SendMessageRequest) (*model.ChatMessage, error)
}

type ConversationState int

const (
	StateUninitialized ConversationState = iota
	StateLoading
	StateReady
	StateError
)

func (s ConversationState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "uninitialized"
	}
}

// ChatService owns one Conversation per product being discussed.
type ChatService struct {
	api      ChatAPI
	identity Identity
	interval time.Duration

	mu            sync.Mutex
	conversations map[string]*Conversation
}

func NewChatService(api ChatAPI, identity Identity, pollInterval time.Duration) *ChatService {
	return &ChatService{
		api:           api,
		identity:      identity,
		interval:      pollInterval,
		conversations: make(map[string]*Conversation),
	}
}

// Open resolves the room for productID and starts polling it. An already
// ready conversation is returned as is, and a conversation of the same user
// that is still loading is waited on instead of being replaced.
func (s *ChatService) Open(ctx context.Context, productID string) (*Conversation, error) {
	sess, ok := s.identity.Current()
	if !ok {
		return nil, ErrUnauthenticated
	}

	s.mu.Lock()
	conv, exists := s.conversations[productID]
	if exists && conv.userID == sess.User.ID {
		select {
		case <-conv.ready:
			if conv.State() == StateReady {
				s.mu.Unlock()
				return conv, nil
			}
		default:
			s.mu.Unlock()
			return conv, conv.wait(ctx)
		}
	}
	if exists {
		conv.Close()
	}
	conv = newConversation(s.api, sess, productID, s.interval)
	s.conversations[productID] = conv
	s.mu.Unlock()

	if err := conv.open(ctx); err != nil {
		return conv, err
	}
	return conv, nil
}

func (s *ChatService) Get(productID string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[productID]
	return conv, ok
}

// Close stops the poller of one conversation and forgets it.
func (s *ChatService) Close(productID string) {
	s.mu.Lock()
	conv, ok := s.conversations[productID]
	delete(s.conversations, productID)
	s.mu.Unlock()

	if ok {
		conv.Close()
	}
}

func (s *ChatService) CloseAll() {
	s.mu.Lock()
	convs := s.conversations
	s.conversations = make(map[string]*Conversation)
	s.mu.Unlock()

	for _, conv := range convs {
		conv.Close()
	}
}

// Conversation is the client view of one chat room: it loads the history
// once and then polls for new messages until closed.
type Conversation struct {
	api       ChatAPI
	productID string
	userID    string
	interval  time.Duration

	// ctx carries the bearer token and is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	state       ConversationState
	room        *model.ChatRoom
	messages    []model.ChatMessage
	draft       string
	sending     bool
	errMsg      string
	loadErr     error
	scheduler   *gocron.Scheduler
	subscribers map[int]chan []model.ChatMessage
	nextSub     int
	closed      bool

	// ready is closed once open has finished, successfully or not.
	ready chan struct{}
}

func newConversation(api ChatAPI, sess model.Session, productID string, interval time.Duration) *Conversation {
	ctx, cancel := context.WithCancel(marketplace.WithToken(context.Background(), sess.Token))
	return &Conversation{
		api:         api,
		productID:   productID,
		userID:      sess.User.ID,
		interval:    interval,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[int]chan []model.ChatMessage),
		ready:       make(chan struct{}),
	}
}

func (c *Conversation) open(ctx context.Context) (err error) {
	c.setState(StateLoading, "")
	defer func() {
		c.mu.Lock()
		c.loadErr = err
		c.mu.Unlock()
		close(c.ready)
	}()

	// Requests made while opening honour both the caller and Close.
	reqCtx, stop := context.WithCancel(marketplace.WithToken(ctx, marketplace.TokenFrom(c.ctx)))
	defer stop()
	defer context.AfterFunc(c.ctx, stop)()

	room, messages, err := c.resolve(reqCtx)
	if err != nil {
		log.Printf("chat: failed to initialize room for product %s: %v", c.productID, err)
		c.setState(StateError, roomLoadFailedMessage)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.state = StateError
		c.errMsg = roomLoadFailedMessage
		c.mu.Unlock()
		return context.Canceled
	}
	c.room = room
	c.messages = messages
	c.state = StateReady
	c.errMsg = ""
	c.mu.Unlock()

	return c.startPolling()
}

// wait blocks until a load started by another caller has finished and
// returns its outcome.
func (c *Conversation) wait(ctx context.Context) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == StateReady {
		return nil
	}
	if c.loadErr != nil {
		return c.loadErr
	}
	return ErrChatNotReady
}

func (c *Conversation) resolve(ctx context.Context) (*model.ChatRoom, []model.ChatMessage, error) {
	product, err := c.api.GetProduct(ctx, c.productID)
	if err != nil {
		return nil, nil, fmt.Errorf("product not found: %w", err)
	}

	name := product.Name
	if name == "" {
		name = "Product"
	}
	roomName := "Chat about " + name

	roomID := ""
	rooms, err := c.api.ListChatRooms(ctx)
	if err != nil {
		log.Printf("chat: listing rooms failed, creating a new one: %v", err)
	}
	for _, r := range rooms {
		if r.Name == roomName || strings.Contains(r.Name, c.productID) {
			roomID = r.ID
			break
		}
	}

	if roomID == "" {
		created, err := c.api.CreateChatRoom(ctx, marketplace.CreateRoomRequest{
			Name:         roomName,
			Type:         "direct",
			Participants: []string{product.SellerID},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create chat room: %w", err)
		}
		roomID = created.ID
	}

	room, err := c.api.GetChatRoom(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load chat room: %w", err)
	}

	messages, err := c.api.ListMessages(ctx, roomID)
	if err != nil {
		log.Printf("chat: failed to load history of room %s: %v", roomID, err)
		messages = nil
	}
	return room, messages, nil
}

func (c *Conversation) startPolling() error {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	if _, err := scheduler.Every(c.interval).WaitForSchedule().Do(c.poll); err != nil {
		return fmt.Errorf("failed to schedule chat polling: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.state = StateError
		c.errMsg = roomLoadFailedMessage
		return context.Canceled
	}
	c.scheduler = scheduler
	scheduler.StartAsync()
	return nil
}

// poll replaces the message list when the server holds a different count.
func (c *Conversation) poll() {
	c.mu.RLock()
	room := c.room
	c.mu.RUnlock()
	if room == nil || c.ctx.Err() != nil {
		return
	}

	messages, err := c.api.ListMessages(c.ctx, room.ID)
	if err != nil {
		if c.ctx.Err() == nil {
			log.Printf("chat: error refreshing messages of room %s: %v", room.ID, err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(messages) == len(c.messages) {
		return
	}
	c.messages = messages
	c.notify()
}

func (c *Conversation) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Send posts the current draft. The draft is cleared while the request is in
// flight and restored if it fails; a sent message is appended right away.
func (c *Conversation) Send(ctx context.Context) (*model.ChatMessage, error) {
	c.mu.Lock()
	text := strings.TrimSpace(c.draft)
	switch {
	case text == "":
		c.mu.Unlock()
		return nil, ErrEmptyMessage
	case c.state != StateReady || c.room == nil:
		c.mu.Unlock()
		return nil, ErrChatNotReady
	case c.sending:
		c.mu.Unlock()
		return nil, ErrSendInProgress
	}
	roomID := c.room.ID
	c.draft = ""
	c.sending = true
	c.mu.Unlock()

	msg, err := c.api.SendMessage(marketplace.WithToken(ctx, marketplace.TokenFrom(c.ctx)), marketplace.SendMessageRequest{
		RoomID:      roomID,
		Message:     text,
		MessageType: "text",
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false
	if err != nil {
		log.Printf("chat: error sending message to room %s: %v", roomID, err)
		c.draft = text
		c.errMsg = sendFailedMessage
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	c.errMsg = ""
	next := make([]model.ChatMessage, len(c.messages), len(c.messages)+1)
	copy(next, c.messages)
	c.messages = append(next, *msg)
	c.notify()
	return msg, nil
}

// SendText is SetDraft followed by Send.
func (c *Conversation) SendText(ctx context.Context, text string) (*model.ChatMessage, error) {
	c.SetDraft(text)
	return c.Send(ctx)
}

// Subscribe returns a channel receiving the message list after every change
// and a function that ends the subscription. Slow readers only see the
// latest list.
func (c *Conversation) Subscribe() (<-chan []model.ChatMessage, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan []model.ChatMessage, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
}

// notify must be called with c.mu held.
func (c *Conversation) notify() {
	for _, ch := range c.subscribers {
		snapshot := make([]model.ChatMessage, len(c.messages))
		copy(snapshot, c.messages)
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

// Close stops polling and ends all subscriptions.
func (c *Conversation) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	scheduler := c.scheduler
	c.scheduler = nil
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
	c.mu.Unlock()

	c.cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
}

func (c *Conversation) setState(state ConversationState, errMsg string) {
	c.mu.Lock()
	c.state = state
	c.errMsg = errMsg
	c.mu.Unlock()
}

func (c *Conversation) ProductID() string { return c.productID }

func (c *Conversation) State() ConversationState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Conversation) Room() (model.ChatRoom, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.room == nil {
		return model.ChatRoom{}, false
	}
	return *c.room, true
}

func (c *Conversation) Messages() []model.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Draft() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draft
}

// Err returns the message shown to the user for the last failure, if any.
func (c *Conversation) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.errMsg
}
