package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tricykol/auth-backend/internal/http/middleware"
	"github.com/tricykol/auth-backend/internal/logger"
	"github.com/tricykol/auth-backend/internal/models"
	"github.com/tricykol/auth-backend/internal/pkg/apperror"
	"github.com/tricykol/auth-backend/internal/repository"
	"github.com/tricykol/auth-backend/internal/service"
	"github.com/tricykol/auth-backend/internal/validation"
)

// AccountReader — чтение учётной записи для /auth/me.
type AccountReader interface {
	GetByUID(ctx context.Context, uid string) (*models.Account, error)
}

// AuthHandler предоставляет HTTP слой для выдачи и проверки одноразовых кодов.
type AuthHandler struct {
	auth     *service.AuthService
	audit    *service.AuditService
	accounts AccountReader
}

// NewAuthHandler создаёт хэндлер.
func NewAuthHandler(auth *service.AuthService, audit *service.AuditService, accounts AccountReader) *AuthHandler {
	return &AuthHandler{auth: auth, audit: audit, accounts: accounts}
}

// RequestOTP обрабатывает POST /api/auth/otp/request.
// Код клиенту никогда не возвращается — только факт успеха.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "phone is required"})
		return
	}

	if err := validation.ValidatePhone(req.Phone); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.auth.RequestOTP(c.Request.Context(), req.Phone); err != nil {
		h.audit.Record(req.Phone, models.AuditActionRequestOTP, "failed", apperror.UserMessage(err), c.ClientIP())
		h.logFailure(c, "request otp failed", err)
		c.JSON(apperror.HTTPStatus(err), gin.H{"success": false, "error": apperror.UserMessage(err)})
		return
	}

	h.audit.Record(req.Phone, models.AuditActionRequestOTP, "success", "", c.ClientIP())

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// VerifyOTP обрабатывает POST /api/auth/otp/verify.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Phone          string `json:"phone" binding:"required"`
		OTP            string `json:"otp" binding:"required"`
		IsRegistration bool   `json:"isRegistration"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "phone and otp are required"})
		return
	}

	if err := validation.ValidateOTPCode(req.OTP); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := h.auth.VerifyOTP(c.Request.Context(), service.VerifyInput{
		Phone:          req.Phone,
		Code:           req.OTP,
		IsRegistration: req.IsRegistration,
	})
	if err != nil {
		h.audit.Record(req.Phone, models.AuditActionVerifyOTP, "failed", apperror.UserMessage(err), c.ClientIP())
		h.logFailure(c, "verify otp failed", err)
		c.JSON(apperror.HTTPStatus(err), gin.H{"success": false, "error": apperror.UserMessage(err)})
		return
	}

	h.audit.Record(req.Phone, models.AuditActionVerifyOTP, "success", "", c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"token":        result.Token,
		"uid":          result.UID,
		"isNewUser":    result.IsNewUser,
		"driverId":     result.DriverID,
		"needsProfile": result.NeedsProfile,
	})
}

// Me обрабатывает GET /api/auth/me: отдаёт учётную запись владельца токена.
func (h *AuthHandler) Me(c *gin.Context) {
	uid, ok := middleware.CurrentUID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authorization required"})
		return
	}

	account, err := h.accounts.GetByUID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "account not found"})
			return
		}
		h.logFailure(c, "get account failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "account": account})
}

// logFailure пишет ошибку в лог с деталями запроса. Серверные ошибки — error
// уровнем, пользовательские исходы — debug.
func (h *AuthHandler) logFailure(c *gin.Context, msg string, err error) {
	entry := logger.WithComponent("auth_handler").WithFields(logrus.Fields{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	})

	if apperror.HTTPStatus(err) >= http.StatusInternalServerError {
		entry.Error(msg)
		return
	}
	entry.Debug(msg)
}
