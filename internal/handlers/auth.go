package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/auth"
	"github.com/cnsr/cta-inspection/internal/db"
	"github.com/cnsr/cta-inspection/internal/middleware"
	"github.com/cnsr/cta-inspection/internal/models"
)

// maxBodyBytes bounds request bodies. Submissions carry a base64 photo.
const maxBodyBytes = 20 << 20

var writeJSON = middleware.WriteJSON
var writeError = middleware.WriteError

// readJSON decodes the request body into v.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// readOptionalJSON is readJSON that accepts an empty body.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// VerifyResponse is returned by GET /api/auth/verify.
type VerifyResponse struct {
	Valid bool        `json:"valid"`
	User  models.User `json:"user"`
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
	}
}

// Login authenticates a user by email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := readJSON(w, r, &loginReq); err != nil {
		writeError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	email := auth.NormalizeEmail(loginReq.Email)
	if email == "" || loginReq.Password == "" {
		writeError(w, http.StatusBadRequest, "Email et mot de passe requis")
		return
	}

	user, err := h.userCollection.FindUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).Error("Failed to look up user")
		}
		writeError(w, http.StatusUnauthorized, "Identifiants invalides")
		return
	}

	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "Compte désactivé")
		return
	}

	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Identifiants invalides")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Impossible de générer le token")
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Impossible de générer le token")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to update last login")
	}

	log.WithFields(log.Fields{
		"user_id": user.ID.Hex(),
		"role":    user.Role,
	}).Info("User logged in")

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	})
}

// Verify reports whether the bearer token is still valid and returns the
// user it belongs to.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Utilisateur non authentifié")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		writeError(w, http.StatusUnauthorized, "Token invalide")
		return
	}

	writeJSON(w, http.StatusOK, VerifyResponse{Valid: true, User: *user})
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Utilisateur non authentifié")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Utilisateur introuvable")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Utilisateur non authentifié")
		return
	}

	var passwordReq struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := readJSON(w, r, &passwordReq); err != nil {
		writeError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if passwordReq.CurrentPassword == "" || passwordReq.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Mot de passe actuel et nouveau mot de passe requis")
		return
	}
	if err := h.authService.ValidatePassword(passwordReq.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Utilisateur introuvable")
		return
	}

	if !h.authService.CheckPassword(passwordReq.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Mot de passe actuel incorrect")
		return
	}

	newPasswordHash, err := h.authService.HashPassword(passwordReq.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Impossible de modifier le mot de passe")
		return
	}

	user.PasswordHash = newPasswordHash
	if err := h.userCollection.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		writeError(w, http.StatusInternalServerError, "Impossible de modifier le mot de passe")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Mot de passe modifié"})
}
