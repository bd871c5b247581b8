package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shopsphere/storefront/internal/model"
	"shopsphere/storefront/internal/service/marketplace"
	"shopsphere/storefront/internal/storage"
)

const (
	sessionUserKey  = "shopsphere-user"
	sessionTokenKey = "shopsphere-token"
)

type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*marketplace.LoginResponse, error)
}

// Identity exposes the active session to other services.
type Identity interface {
	Current() (model.Session, bool)
}

type SessionService struct {
	api   AuthAPI
	store storage.Store
	now   func() time.Time

	mu      sync.RWMutex
	current *model.Session
}

func NewSessionService(api AuthAPI, store storage.Store) *SessionService {
	return &SessionService{api: api, store: store, now: time.Now}
}

// Load restores a persisted session. Invalid data is removed from storage
// and logged; only storage failures are returned.
func (s *SessionService) Load(ctx context.Context) error {
	rawUser, userErr := s.store.Get(ctx, sessionUserKey)
	rawToken, tokenErr := s.store.Get(ctx, sessionTokenKey)

	if errors.Is(userErr, storage.ErrNotFound) && errors.Is(tokenErr, storage.ErrNotFound) {
		return nil
	}
	for _, err := range []error{userErr, tokenErr} {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to load session: %w", err)
		}
	}

	sess, err := DecodeSession(rawUser, rawToken, s.now())
	if err != nil {
		log.Printf("session: discarding stored session: %v", err)
		if err := s.store.Remove(ctx, sessionUserKey, sessionTokenKey); err != nil {
			log.Printf("session: failed to clear stored session: %v", err)
		}
		return nil
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return nil
}

// DecodeSession validates a persisted user record and token.
func DecodeSession(rawUser, rawToken []byte, now time.Time) (model.Session, error) {
	if len(rawUser) == 0 || len(rawToken) == 0 {
		return model.Session{}, fmt.Errorf("%w: incomplete record", ErrInvalidSession)
	}

	var user model.User
	if err := json.Unmarshal(rawUser, &user); err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if err := validateUser(user); err != nil {
		return model.Session{}, err
	}

	token := strings.TrimSpace(string(rawToken))
	if token == "" {
		return model.Session{}, fmt.Errorf("%w: empty token", ErrInvalidSession)
	}
	if tokenExpired(token, now) {
		return model.Session{}, fmt.Errorf("%w: token expired", ErrInvalidSession)
	}

	return model.Session{User: user, Token: token}, nil
}

func validateUser(u model.User) error {
	switch {
	case u.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidSession)
	case u.Username == "":
		return fmt.Errorf("%w: missing username", ErrInvalidSession)
	case !u.Role.Valid():
		return fmt.Errorf("%w: invalid role %q", ErrInvalidSession, u.Role)
	}
	return nil
}

// tokenExpired reports whether a JWT token carries an exp claim in the past.
// Tokens that are not JWTs are opaque to the client and never expire here.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

// Login authenticates against the marketplace and persists the session.
// Failures are logged and reported as false.
func (s *SessionService) Login(ctx context.Context, username, password string) bool {
	resp, err := s.api.Login(ctx, strings.TrimSpace(username), password)
	if err != nil {
		log.Printf("session: login failed: %v", err)
		return false
	}
	if resp.Token == "" || validateUser(resp.User) != nil {
		log.Printf("session: login response missing user or token")
		return false
	}

	sess := model.Session{
		User:  model.User{ID: resp.User.ID, Username: resp.User.Username, Role: resp.User.Role},
		Token: resp.Token,
	}

	rawUser, err := json.Marshal(sess.User)
	if err != nil {
		log.Printf("session: failed to encode user: %v", err)
		return false
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	err = s.store.SetMany(ctx, map[string][]byte{
		sessionUserKey:  rawUser,
		sessionTokenKey: []byte(sess.Token),
	})
	if err != nil {
		log.Printf("session: failed to persist session: %v", err)
	}
	return true
}

// Logout clears the session from memory and storage.
func (s *SessionService) Logout(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.store.Remove(ctx, sessionUserKey, sessionTokenKey); err != nil {
		log.Printf("session: failed to clear stored session: %v", err)
	}
}

func (s *SessionService) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Session{}, false
	}
	return *s.current, true
}

func (s *SessionService) Token() string {
	sess, _ := s.Current()
	return sess.Token
}

func (s *SessionService) IsSeller() bool {
	sess, ok := s.Current()
	return ok && sess.User.Role == model.RoleSeller
}
