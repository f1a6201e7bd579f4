package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/coinsora/server/internal/auth"
	"github.com/coinsora/server/pkg/metrics"
	"github.com/coinsora/server/pkg/response"
)

// AuthHandler exposes the OTP signup and login flows.
type AuthHandler struct {
	otp *iauth.OTPService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(otp *iauth.OTPService) (*AuthHandler, error) {
	if otp == nil {
		return nil, errors.New("auth handler: otp service is required")
	}
	return &AuthHandler{otp: otp}, nil
}

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Contact  string `json:"contact" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.otp.BeginSignup(c.Request.Context(), iauth.BeginSignupInput{
		Name:     req.Name,
		Contact:  req.Contact,
		Password: req.Password,
	}); err != nil {
		metrics.OTPSends.WithLabelValues("signup", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.OTPSends.WithLabelValues("signup", "success").Inc()
	response.Success(c, http.StatusOK, gin.H{"message": "Signup OTP sent to email"})
}

type verifyOTPRequest struct {
	Contact string `json:"contact" validate:"required"`
	OTP     string `json:"otp" validate:"required"`
}

// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if _, err := h.otp.VerifySignup(c.Request.Context(), req.Contact, req.OTP); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Account verified successfully"})
}

type loginRequest struct {
	Contact  string `json:"contact" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.otp.Login(c.Request.Context(), req.Contact, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, loginPayload(profile))
}

type sendLoginOTPRequest struct {
	Contact string `json:"contact" validate:"required"`
}

// POST /api/auth/send-login-otp
func (h *AuthHandler) SendLoginOTP(c *gin.Context) {
	var req sendLoginOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.otp.BeginLoginOTP(c.Request.Context(), req.Contact); err != nil {
		metrics.OTPSends.WithLabelValues("login", "failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.OTPSends.WithLabelValues("login", "success").Inc()
	response.Success(c, http.StatusOK, gin.H{"message": "Login OTP sent to email"})
}

// POST /api/auth/verify-login-otp
func (h *AuthHandler) VerifyLoginOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.otp.VerifyLoginOTP(c.Request.Context(), req.Contact, req.OTP)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, loginPayload(profile))
}

func loginPayload(profile *iauth.Profile) gin.H {
	return gin.H{
		"message": "Login successful",
		"name":    profile.Name,
		"contact": profile.Contact,
		"userId":  profile.ID,
		"image":   profile.Image,
	}
}
