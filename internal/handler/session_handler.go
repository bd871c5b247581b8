package handler

import (
	"net/http"

	"shopsphere/storefront/internal/model"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
}

func (h *Handler) currentSession() sessionResponse {
	sess, ok := h.sessions.Current()
	if !ok {
		return sessionResponse{}
	}
	return sessionResponse{Authenticated: true, User: &sess.User}
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.currentSession())
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if !h.sessions.Login(r.Context(), req.Username, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	// Conversations belong to the previous user.
	h.chat.CloseAll()

	writeJSON(w, http.StatusOK, h.currentSession())
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.chat.CloseAll()
	h.sessions.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
