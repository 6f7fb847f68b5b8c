package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codecourse/server/internal/services"
	"github.com/codecourse/server/pkg/errors"
	"github.com/codecourse/server/pkg/response"
)

// ProfileHandler serves the authenticated user's profile.
type ProfileHandler struct {
	accounts *services.AccountService
}

func NewProfileHandler(accounts *services.AccountService) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	view, err := h.accounts.GetProfile(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": view})
}

type updateProfileRequest struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone"`
	Country    *string `json:"country"`
	Experience *string `json:"experience" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	Newsletter *bool   `json:"newsletter"`
}

// PUT /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	view, err := h.accounts.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Country:    req.Country,
		Experience: req.Experience,
		Newsletter: req.Newsletter,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": view})
}
