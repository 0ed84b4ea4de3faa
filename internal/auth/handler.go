package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ticketdesk/internal/logger"
	"ticketdesk/internal/models"
	"ticketdesk/internal/tickets/db"
	"ticketdesk/internal/utils"
)

// UserStore is the slice of the persistence layer the login flow needs.
type UserStore interface {
	GetUserByUsername(username string) (*models.User, error)
	CreateUser(user models.User) error
	CountUsers() (int, error)
}

type AuthHandler struct {
	store  UserStore
	issuer *TokenIssuer
	log    *logger.Logger
}

func NewAuthHandler(store UserStore, issuer *TokenIssuer, log *logger.Logger) *AuthHandler {
	return &AuthHandler{store: store, issuer: issuer, log: log}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			h.log.Warn("AUTH", "Login failed for unknown user: "+req.Username)
			utils.WriteError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
			return
		}
		h.log.Error("AUTH", "User lookup failed: "+err.Error())
		utils.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if user.Password != req.Password {
		h.log.Warn("AUTH", "Login failed for user: "+req.Username)
		utils.WriteError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}

	token, err := h.issuer.Issue(user.Username)
	if err != nil {
		h.log.Error("AUTH", "Token signing failed: "+err.Error())
		utils.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.log.Info("AUTH", "User logged in: "+user.Username)
	utils.WriteSuccess(w, http.StatusOK, "Login successful", loginResponse{
		Token:    token,
		Username: user.Username,
	})
}

// EnsureDefaultUser seeds the admin account on an empty users table so a
// fresh install can log in.
func EnsureDefaultUser(store UserStore, log *logger.Logger) error {
	count, err := store.CountUsers()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if err := store.CreateUser(models.User{Username: "admin", Password: "admin"}); err != nil {
		return err
	}
	log.Warn("AUTH", "Seeded default admin user, change the password")
	return nil
}
