package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for account management
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new auth handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers public auth routes.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	r.Post("/password-reset/request", h.HandleRequestPasswordReset)
	r.Post("/password-reset/confirm", h.HandleConfirmPasswordReset)
}

// RegisterProtectedRoutes registers routes that need an authenticated user.
func (h *Handlers) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/profile", h.HandleProfile)
	r.Delete("/account", h.HandleDeleteAccount)
}

// HandleRegister creates a new account
// POST /api/auth/register
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Register(req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.service.GenerateToken(user)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to generate token after registration")
		h.writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// HandleLogin authenticates a user and returns an access token
// POST /api/auth/login
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, token, err := h.service.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		h.log.Error().Err(err).Msg("Login failed")
		h.writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// HandleProfile returns the authenticated user's profile
// GET /api/auth/profile
func (h *Handlers) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	h.writeJSON(w, http.StatusOK, user)
}

// HandleDeleteAccount removes the authenticated user and all their data
// DELETE /api/auth/account
func (h *Handlers) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.service.users.Delete(user.ID); err != nil {
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to delete account")
		h.writeError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

// HandleRequestPasswordReset issues a reset token for an email address.
// The token goes to the operator channel, never into the response: an
// unauthenticated caller who could read it here would own the account.
// The response also never reveals whether the email is registered.
// POST /api/auth/password-reset/request
func (h *Handlers) HandleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RequestPasswordReset(req.Email); err != nil {
		h.log.Error().Err(err).Msg("Failed to issue reset token")
		h.writeError(w, http.StatusInternalServerError, "Failed to issue reset token")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": "If the email is registered, a reset token has been issued",
	})
}

// HandleConfirmPasswordReset sets a new password using a reset token
// POST /api/auth/password-reset/confirm
func (h *Handlers) HandleConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.ResetPassword(req.Token, req.NewPassword); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			h.writeError(w, http.StatusUnauthorized, "Invalid or expired reset token")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
