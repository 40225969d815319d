package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nchavez4/monster-arena-backend/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Level    int    `json:"level"`
}

type API struct {
	users  *auth.UserStore // nil without a database
	tokens *auth.Service
	log    *zap.Logger
}

func NewAPI(users *auth.UserStore, tokens *auth.Service, log *zap.Logger) *API {
	return &API{users: users, tokens: tokens, log: log.Named("http")}
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	if a.users == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := a.users.Create(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, auth.ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	if err != nil {
		a.log.Error("register failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	a.issueToken(w, user, http.StatusCreated)
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	if a.users == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := a.users.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrUserNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		a.log.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	a.issueToken(w, user, http.StatusOK)
}

func (a *API) issueToken(w http.ResponseWriter, user *auth.User, status int) {
	token, err := a.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		a.log.Error("token generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, status, authResponse{
		Token: token,
		User:  userView{ID: user.ID, Username: user.Username, Level: user.Level},
	})
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
