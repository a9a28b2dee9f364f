package controller

import (
	"time"

	"classqa/internal/auth"
	pkgerrors "classqa/pkg/errors"
	"classqa/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// AuthController handles teacher login.
type AuthController struct {
	authService *auth.AuthService
}

// NewAuthController creates a new AuthController.
func NewAuthController(authService *auth.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Login exchanges the teacher passcode for a bearer token.
func (h *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	result, err := h.authService.Login(c.Request.Context(), req.Passcode, c.ClientIP())
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.InvalidPasscode) {
			response.ErrorWithData(c, err, LoginResponse{Success: false, Message: "Invalid passcode"})
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, LoginResponse{
		Success:   true,
		Message:   "Authentication successful",
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// LoginRequest defines the login payload.
type LoginRequest struct {
	Passcode string `json:"passcode" binding:"required"`
}

// LoginResponse defines the login result.
type LoginResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Token     string `json:"token,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}
