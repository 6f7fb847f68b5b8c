package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codecourse/server/internal/services"
	"github.com/codecourse/server/pkg/response"
)

// SocialHandler covers federated sign-in and client-side social registration.
type SocialHandler struct {
	accounts *services.AccountService
}

func NewSocialHandler(accounts *services.AccountService) *SocialHandler {
	return &SocialHandler{accounts: accounts}
}

type googleAuthRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// POST /api/google-auth
func (h *SocialHandler) GoogleAuth(c *gin.Context) {
	var req googleAuthRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.GoogleLogin(requestContext(c), req.IDToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

type facebookAuthRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// POST /api/facebook-auth
func (h *SocialHandler) FacebookAuth(c *gin.Context) {
	var req facebookAuthRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.FacebookLogin(requestContext(c), req.AccessToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

type socialRegisterRequest struct {
	FirstName    string `json:"firstName" validate:"required"`
	LastName     string `json:"lastName" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	GoogleID     string `json:"googleId"`
	FacebookID   string `json:"facebookId"`
	ProfileImage string `json:"profileImage"`
	Newsletter   bool   `json:"newsletter"`
}

// POST /api/social-register
func (h *SocialHandler) SocialRegister(c *gin.Context) {
	var req socialRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.accounts.SocialRegister(requestContext(c), services.SocialRegisterInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		GoogleID:     req.GoogleID,
		FacebookID:   req.FacebookID,
		ProfileImage: req.ProfileImage,
		Newsletter:   req.Newsletter,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}
