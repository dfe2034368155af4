package httpapi

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"esawitku.app/internal/auth"
	"esawitku.app/internal/ids"
	"esawitku.app/internal/obs"
)

const (
	sessionCookieName = "esawitku_session"
	sessionTTL        = 24 * time.Hour
)

type registerRequest struct {
	Nama     string `json:"nama"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	details := map[string]string{}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		details["email"] = "email is required"
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		details["email"] = "email is invalid"
	}
	if strings.TrimSpace(req.Nama) == "" {
		details["nama"] = "nama is required"
	}
	if len(req.Password) < 8 {
		details["password"] = "password must be at least 8 characters"
	}
	if len(details) > 0 {
		writeErrorDetails(w, r, http.StatusBadRequest, "validation failed", details)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	user := &auth.User{
		ID:           ids.New(),
		Email:        req.Email,
		Nama:         strings.TrimSpace(req.Nama),
		PasswordHash: hash,
		Role:         auth.RoleUser,
		Status:       auth.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// Self-registered accounts authenticate through our own tokens, so
	// the token subject is the local id.
	user.Subject = user.ID

	if err := a.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrConflict) {
			writeError(w, r, http.StatusConflict, "email already registered")
			return
		}
		handleDomainError(w, r, err)
		return
	}

	if a.billing != nil {
		if err := a.billing.EnsureDefault(r.Context(), user.ID); err != nil {
			obs.Event("warn", "default subscription assignment failed", map[string]any{
				"user":  user.ID,
				"error": err.Error(),
			})
		}
	}

	a.issueSession(w, r, user, http.StatusCreated, "registrasi berhasil")
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		// Same body for unknown email and bad password.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if user.Status != auth.UserStatusActive {
		writeError(w, r, http.StatusUnauthorized, "account disabled")
		return
	}

	a.issueSession(w, r, user, http.StatusOK, "login berhasil")
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeSuccess(w, http.StatusOK, nil, "logout berhasil")
}

func (a *API) issueSession(w http.ResponseWriter, r *http.Request, user *auth.User, code int, message string) {
	token, err := auth.GenerateToken(user.Subject, user.Email, sessionTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeSuccess(w, code, authResponse{Token: token, User: user}, message)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	user, err := a.users.FindByID(r.Context(), identity.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, user, "")
}

type createAPIKeyRequest struct {
	Nama string `json:"nama"`
}

type createAPIKeyResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

func (a *API) handleAPIKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAPIKeys(w, r)
	case http.MethodPost:
		a.createAPIKey(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	keys, err := a.apiKeys.ListByUser(r.Context(), identity.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, keys, "")
}

func (a *API) createAPIKey(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	var req createAPIKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Nama) == "" {
		writeErrorDetails(w, r, http.StatusBadRequest, "validation failed", map[string]string{"nama": "nama is required"})
		return
	}

	raw, hash, err := auth.NewAPIKeySecret()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	key := &auth.APIKey{
		ID:        ids.New(),
		UserID:    identity.ID,
		Nama:      strings.TrimSpace(req.Nama),
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.apiKeys.Create(r.Context(), key); err != nil {
		handleDomainError(w, r, err)
		return
	}
	noteAudit(r, "api_key", key.ID, map[string]string{"nama": key.Nama})
	// The raw key is shown exactly once; only its hash is stored.
	writeSuccess(w, http.StatusCreated, createAPIKeyResponse{ID: key.ID, Key: raw}, "simpan kunci ini, tidak akan ditampilkan lagi")
}
