package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/cnsr/cta-inspection/internal/auth"
	"github.com/cnsr/cta-inspection/internal/db"
	"github.com/cnsr/cta-inspection/internal/middleware"
	"github.com/cnsr/cta-inspection/internal/models"
)

// UserHandler lets administrators manage accounts.
type UserHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	centers        []string
}

func NewUserHandler(authService *auth.Service, userCollection db.UserCollection, centers []string) *UserHandler {
	return &UserHandler{authService: authService, userCollection: userCollection, centers: centers}
}

// List returns all users, or those with the role given in ?role=.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))
	if role != "" && !models.IsValidRole(role) {
		writeError(w, http.StatusBadRequest, "Rôle inconnu")
		return
	}
	users, err := h.userCollection.FindUsers(r.Context(), role)
	if err != nil {
		log.WithError(err).Error("Failed to list users")
		writeError(w, http.StatusInternalServerError, "Erreur lors de la récupération des utilisateurs")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Create registers a new account.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	req.Email = auth.NormalizeEmail(req.Email)
	if err := h.authService.ValidateEmail(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.authService.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !models.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "Rôle inconnu")
		return
	}
	if req.Center != "" && !models.IsKnownCenter(req.Center, h.centers) {
		writeError(w, http.StatusBadRequest, "Centre inconnu")
		return
	}

	if _, err := h.userCollection.FindUserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "Cet email est déjà utilisé")
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Impossible de créer l'utilisateur")
		return
	}

	user, err := h.userCollection.InsertUser(r.Context(), models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Center:       req.Center,
	})
	if errors.Is(err, db.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, "Cet email est déjà utilisé")
		return
	}
	if err != nil {
		log.WithError(err).Error("Failed to create user")
		writeError(w, http.StatusInternalServerError, "Impossible de créer l'utilisateur")
		return
	}

	log.WithFields(log.Fields{"user_id": user.ID.Hex(), "role": user.Role}).Info("User created")
	writeJSON(w, http.StatusCreated, user)
}

// Delete removes an account. Administrators cannot delete their own.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Utilisateur non authentifié")
		return
	}
	id := mux.Vars(r)["id"]
	if id == claims.UserID {
		writeError(w, http.StatusConflict, "Impossible de supprimer votre propre compte")
		return
	}

	err := h.userCollection.DeleteUser(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Utilisateur introuvable")
		return
	}
	if err != nil {
		log.WithError(err).WithField("user_id", id).Error("Failed to delete user")
		writeError(w, http.StatusInternalServerError, "Impossible de supprimer l'utilisateur")
		return
	}

	log.WithFields(log.Fields{"user_id": id, "by": claims.Email}).Info("User deleted")
	w.WriteHeader(http.StatusNoContent)
}
