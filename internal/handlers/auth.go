package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub/api/internal/models"
	"learnhub/api/internal/service"
)

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
}

type principalResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	Role        string  `json:"role"`
	Status      string  `json:"status"`
	CreatedBy   *string `json:"createdBy,omitempty"`
}

type authResponse struct {
	User         principalResponse `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

func toPrincipalResponse(p models.Principal) principalResponse {
	return principalResponse{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        string(p.Role),
		Status:      string(p.Status),
		CreatedBy:   p.CreatedBy,
	}
}

func (h HandlerSet) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	result, err := h.auth.Signup(c.Request.Context(), service.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			respondError(c, http.StatusConflict, "email_taken", "email already registered")
			return
		}
		respondError(c, http.StatusBadRequest, "signup_failed", err.Error())
		return
	}

	c.JSON(http.StatusCreated, authResponse{
		User:         toPrincipalResponse(result.Principal),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, http.StatusUnauthorized, "invalid_credentials", "email or password incorrect")
		case errors.Is(err, service.ErrPrincipalInactive):
			respondError(c, http.StatusForbidden, "account_inactive", "account exists but is deactivated")
		default:
			h.log.Error().Err(err).Msg("login failed")
			respondError(c, http.StatusInternalServerError, "internal_error", "login failed")
		}
		return
	}

	c.JSON(http.StatusOK, authResponse{
		User:         toPrincipalResponse(result.Principal),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh mints a new pair from the refresh token alone; the access token
// is never accepted here.
func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "missing_token", "refreshToken is required")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefresh):
			respondError(c, http.StatusUnauthorized, "invalid_token", "refresh token is invalid or expired")
		case errors.Is(err, service.ErrPrincipalInactive):
			respondError(c, http.StatusUnauthorized, "account_inactive", "account is deactivated or gone")
		default:
			h.log.Error().Err(err).Msg("refresh failed")
			respondError(c, http.StatusInternalServerError, "internal_error", "refresh failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "missing_token", "refreshToken is required")
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.log.Error().Err(err).Msg("logout revocation failed")
		respondError(c, http.StatusInternalServerError, "internal_error", "logout failed")
		return
	}

	c.Status(http.StatusNoContent)
}
