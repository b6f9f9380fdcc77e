package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/esurat/apiserver/internal/services"
)

// AuthHandler provides login, logout and identity endpoints.
type AuthHandler struct {
	auth *services.AuthService
	errs Errors
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth *services.AuthService, errs Errors) *AuthHandler {
	return &AuthHandler{auth: auth, errs: errs}
}

// AuthRouter registers auth routes. loginLimit guards POST /login and may be
// nil.
func AuthRouter(r chi.Router, h *AuthHandler, requireAuth, loginLimit func(http.Handler) http.Handler) {
	if loginLimit != nil {
		r.With(loginLimit).Post("/login", h.Login)
	} else {
		r.Post("/login", h.Login)
	}
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", h.Logout)
		r.Get("/user", h.User)
		r.Get("/profile", h.Profile)
	})
}

// RequireAuth resolves the bearer token and injects the user into context.
func RequireAuth(auth *services.AuthService, errs Errors) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated.")
				return
			}

			user, tokenID, err := auth.Authenticate(r.Context(), tokenString)
			if err != nil {
				errs.write(w, r, err, "Unauthenticated.", msgServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, tokenID)))
		})
	}
}

// Login verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.IP = clientIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.errs.write(w, r, err, "Invalid credentials", "Login failed")
		return
	}
	writeData(w, http.StatusOK, "Login successful", res)
}

// Logout revokes the token used for this request only.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), actorFrom(r), currentTokenID(r.Context())); err != nil {
		h.errs.write(w, r, err, "Unauthenticated.", "Logout failed")
		return
	}
	writeData(w, http.StatusOK, "Logout successful", nil)
}

// User returns the basic identity of the caller.
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	writeData(w, http.StatusOK, "", user.Summary())
}

// Profile returns the full stored profile of the caller.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	profile, err := h.auth.Profile(r.Context(), user.ID)
	if err != nil {
		h.errs.write(w, r, err, "Unauthenticated.", "Failed to load profile")
		return
	}
	writeData(w, http.StatusOK, "", profile)
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
