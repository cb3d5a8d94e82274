package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lessonbook/payments-backend/internal/services"
	"github.com/lessonbook/payments-backend/internal/utils"
	"github.com/sirupsen/logrus"
)

// AdminLoginRequest is the body of POST /admin/login
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminAuthHandler handles back-office authentication
type AdminAuthHandler struct {
	adminAuthService *services.AdminAuthService
	rateLimitService *services.RateLimitService
	logger           *logrus.Logger
}

// NewAdminAuthHandler creates a new admin auth handler
func NewAdminAuthHandler(adminAuthService *services.AdminAuthService, rateLimitService *services.RateLimitService, logger *logrus.Logger) *AdminAuthHandler {
	return &AdminAuthHandler{
		adminAuthService: adminAuthService,
		rateLimitService: rateLimitService,
		logger:           logger,
	}
}

// Login handles admin login requests
// @Summary Admin login
// @Description Authenticate the back-office user and return an access token for the reporting endpoints
// @Tags Admin Auth
// @Accept json
// @Produce json
// @Param loginRequest body AdminLoginRequest true "Login credentials"
// @Success 200 {object} services.AdminLoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /admin/login [post]
func (h *AdminAuthHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	clientIP := utils.GetRealIP(c)
	if err := h.rateLimitService.CheckLoginAttempt(req.Email, clientIP); err != nil {
		var rateErr *services.RateLimitError
		if errors.As(err, &rateErr) {
			h.logger.WithFields(logrus.Fields{
				"ip":    clientIP,
				"limit": rateErr.Type,
			}).Warn("Admin login rate limited")
			c.Header("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds()))
			c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: ErrorDetail{Code: "rate_limited", Message: rateErr.Message}})
			return
		}
		respondInternalError(c, err)
		return
	}

	response, err := h.adminAuthService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: ErrorDetail{Code: "invalid_credentials", Message: err.Error()}})
			return
		}
		h.logger.WithError(err).Error("Admin login error")
		respondInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
