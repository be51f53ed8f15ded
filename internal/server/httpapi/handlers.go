package httpapi

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/dmitrijs2005/authgate/internal/server/models"
	"github.com/dmitrijs2005/authgate/internal/server/services"
)

type loginUser struct {
	UserName string `json:"username"`
	Account  string `json:"account"`
	Points   int64  `json:"points"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	User    loginUser `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type userInfo struct {
	ID       int64  `json:"id"`
	UserName string `json:"username"`
	Account  string `json:"account"`
	Email    string `json:"email"`
	Points   int64  `json:"points"`
}

type userInfoResponse struct {
	User userInfo `json:"user"`
}

type deductResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Points  int64  `json:"points"`
}

type updateResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    models.Profile `json:"data"`
}

type authTestResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	creds, err := s.negotiator.Credentials(r)
	if err != nil {
		s.logger.Info(ctx, "login request without credentials", "request_id", requestID(ctx))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "account and password are required"})
		return
	}

	ttl := s.sessions.TTL()
	res, err := s.sessions.Login(ctx, creds.Account, creds.Password, ttl)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, sessionCookie(res.Session.Token, ttl))
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User:    loginUser{UserName: res.User.UserName, Account: res.User.Account, Points: res.User.Points},
	})
}

// handleLogout revokes every presented session and clears every known
// cookie. Navigation verbs are redirected; anything else gets JSON.
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policy := s.gateway.Policy()

	for _, token := range policy.SessionTokens(r) {
		s.sessions.Logout(ctx, token)
	}
	for _, name := range policy.ClearCookieNames {
		http.SetCookie(w, clearCookie(name))
	}

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		http.Redirect(w, r, policy.LoginPath, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "logged out"})
}

func (s *HTTPServer) handleWhoami(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, v.Profile())
}

func (s *HTTPServer) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	v := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, userInfoResponse{User: userInfo{
		ID:       v.UserID,
		UserName: v.UserName,
		Account:  v.Account,
		Email:    v.Email,
		Points:   v.Points,
	}})
}

// handleDeductPoints takes "points" from the body, defaulting to 1 when it
// is absent or not a number.
func (s *HTTPServer) handleDeductPoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := sessionFrom(ctx)

	amount := int64(1)
	if vals, err := s.negotiator.Values(r); err == nil {
		if n, ok := parseAmount(vals["points"]); ok {
			amount = n
		}
	}
	if amount <= 0 {
		s.writeError(w, r, fmt.Errorf("%w: points must be positive", common.ErrorBadRequest))
		return
	}

	balance, err := s.sessions.DeductPoints(ctx, v.UserID, amount)
	if err != nil {
		var ie *services.InsufficientError
		if errors.As(err, &ie) {
			s.logger.Info(ctx, "insufficient points", "account", v.Account, "balance", ie.Balance, "amount", amount)
		}
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, deductResponse{
		Success: true,
		Message: fmt.Sprintf("deducted %d points", amount),
		Points:  balance,
	})
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v := sessionFrom(ctx)

	vals, err := s.negotiator.Values(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	userName := strings.TrimSpace(vals["username"])
	if userName == "" {
		s.writeError(w, r, fmt.Errorf("%w: username must not be empty", common.ErrorBadRequest))
		return
	}
	email := strings.TrimSpace(vals["email"])
	if email == "" {
		email = v.Email
	}

	u, err := s.sessions.UpdateProfile(ctx, v.UserID, userName, email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(ctx, "profile updated", "account", u.Account)
	writeJSON(w, http.StatusOK, updateResponse{Success: true, Message: "profile updated", Data: u.Profile()})
}

func (s *HTTPServer) handleAuthTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authTestResponse{
		Status:    "success",
		Message:   "auth gateway is running",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

// parseAmount accepts integers and integral floats.
func parseAmount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int64(f), true
}
