package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/services"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	PhoneNo  string `json:"phone_no" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role" validate:"required"`
}

type registerResponse struct {
	Message string          `json:"message"`
	User    *models.Account `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresAt   time.Time       `json:"expires_at"`
	User        *models.Account `json:"user"`
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpResponse struct {
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
	Channel          string `json:"channel"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"otp_code" validate:"required"`
}

type verifyResponse struct {
	Message    string `json:"message"`
	IsVerified bool   `json:"is_verified"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	acc, err := s.svc.Accounts.Register(r.Context(), services.NewAccount{
		Email:    req.Email,
		Name:     req.Name,
		PhoneNo:  req.PhoneNo,
		Role:     role,
		Password: req.Password,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "Registration successful. Request a verification code to activate your account.",
		User:    acc,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.svc.Accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: sess.Token,
		TokenType:   "bearer",
		ExpiresAt:   sess.ExpiresAt,
		User:        sess.Account,
	})
}

func (s *Server) sendOTP(w http.ResponseWriter, r *http.Request) {
	s.issueOTP(w, r, s.svc.OTP.Issue)
}

func (s *Server) resendOTP(w http.ResponseWriter, r *http.Request) {
	s.issueOTP(w, r, s.svc.OTP.Resend)
}

func (s *Server) issueOTP(w http.ResponseWriter, r *http.Request, issue func(context.Context, string) (*services.IssueResult, error)) {
	var req otpRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := issue(r.Context(), req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := "Verification code sent to your email"
	if !res.Delivered() {
		msg = "Email delivery is unavailable; the verification code was written to the server log"
	}
	writeJSON(w, http.StatusOK, otpResponse{
		Message:          msg,
		ExpiresInMinutes: int(models.OTPValidity.Minutes()),
		Channel:          string(res.Channel),
	})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := s.decode(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.OTP.Verify(r.Context(), req.Email, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Message: "Email verified successfully", IsVerified: true})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	acc, err := s.svc.Accounts.Get(r.Context(), claimsFrom(r.Context()).AccountID())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}
