package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/HarshPratapSingh1/ChatVerse/internal/server/middleware"
	"github.com/HarshPratapSingh1/ChatVerse/internal/store"
	"github.com/HarshPratapSingh1/ChatVerse/pkg/identity"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account, signs a credential, and sets the cookie.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "username and password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "Error Found")
		return
	}
	user, err := h.store.CreateUser(r.Context(), req.Username, string(hash))
	if errors.Is(err, store.ErrUserExists) {
		h.Error(w, http.StatusBadRequest, "User already exist")
		return
	} else if err != nil {
		h.logger.Error("Failed to create user", "username", req.Username, "error", err)
		h.Error(w, http.StatusInternalServerError, "Error Found")
		return
	}

	h.issueCredential(w, r, identity.Identity{UserID: user.ID, Username: user.Username})
}

// Login verifies a password and sets the credential cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, store.ErrUserNotFound) {
		h.Error(w, http.StatusBadRequest, "User not exist")
		return
	} else if err != nil {
		h.logger.Error("Failed to load user", "username", req.Username, "error", err)
		h.Error(w, http.StatusInternalServerError, "Error Found")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.Error(w, http.StatusBadRequest, "Wrong Password !!!")
		return
	}

	h.issueCredential(w, r, identity.Identity{UserID: user.ID, Username: user.Username})
}

// Logout clears the credential cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CredentialCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	})
	h.JSON(w, http.StatusCreated, "ok")
}

// Profile returns the caller's verified identity, or 401.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.CredentialCookie)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "No token")
		return
	}
	id, err := h.verifier.Verify(cookie.Value)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "Token invalid")
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{
		"userId":   id.UserID,
		"username": id.Username,
	})
}

func (h *Handler) issueCredential(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	token, err := h.verifier.Issue(id)
	if err != nil {
		h.logger.Error("Failed to sign credential", "userID", id.UserID, "error", err)
		h.Error(w, http.StatusInternalServerError, "Error Found")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CredentialCookie,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	})
	h.JSON(w, http.StatusCreated, map[string]string{"_id": id.UserID})
}
