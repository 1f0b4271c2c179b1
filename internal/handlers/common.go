package handlers

import (
	"errors"
	"net/http"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/services"
	"github.com/SAP-F-2025/test-attempt-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// MessageResponse is a bare acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeAlreadyCompleted = "ALREADY_COMPLETED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL_ERROR"
)

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	fields := append(h.contextFields(c), "remote_addr", c.ClientIP())
	h.logger.Debug(message, append(fields, additionalFields...)...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	h.logger.LogError(err, message, append(h.contextFields(c), additionalFields...)...)
}

// LogInfo logs informational messages with context
func (h *BaseHandler) LogInfo(c *gin.Context, message string, additionalFields ...interface{}) {
	h.logger.Info(message, append(h.contextFields(c), additionalFields...)...)
}

// LogWarn logs warning messages with context
func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	h.logger.Warn(message, append(h.contextFields(c), additionalFields...)...)
}

func (h *BaseHandler) contextFields(c *gin.Context) []interface{} {
	var userID interface{}
	if id, exists := c.Get(ContextUserID); exists {
		userID = id
	}
	return []interface{}{
		"request_id", c.GetHeader(utils.RequestIDHeader),
		"user_id", userID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}
}

// RespondWithError sends a consistent error response and logs it
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, message, code string, err error, details ...interface{}) {
	errorResp := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if len(details) > 0 {
		errorResp.Details = details[0]
	}

	if err != nil && statusCode >= http.StatusInternalServerError {
		h.LogError(c, err, message, "status_code", statusCode)
	} else if err != nil {
		h.LogWarn(c, message, "status_code", statusCode, "error", err)
	}

	c.AbortWithStatusJSON(statusCode, errorResp)
}

// principal returns the authenticated caller; AuthMiddleware guarantees it on /api/v1.
func (h *BaseHandler) principal(c *gin.Context) (models.Principal, bool) {
	p, ok := PrincipalFromContext(c)
	if !ok {
		h.RespondWithError(c, http.StatusUnauthorized, "Authentication required", CodeUnauthorized, nil)
	}
	return p, ok
}

// handleServiceError maps service errors onto HTTP responses
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "Validation failed", CodeValidationFailed, err, validationErrors)
		return
	}

	if result, ok := services.IsAlreadyCompleted(err); ok {
		if result != nil {
			h.RespondWithError(c, http.StatusBadRequest, "Test already completed", CodeAlreadyCompleted, nil, result)
		} else {
			h.RespondWithError(c, http.StatusBadRequest, "Test already completed", CodeAlreadyCompleted, nil)
		}
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, "Access denied", CodeForbidden, err, map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAttemptNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Test attempt not found", CodeNotFound, err)
	case errors.Is(err, services.ErrTestDefinitionNotFound):
		h.RespondWithError(c, http.StatusNotFound, "Test not found", CodeNotFound, err)
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "Resource not found", CodeNotFound, err)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, err.Error(), CodeConflict, err)
	case services.IsForbidden(err):
		h.RespondWithError(c, http.StatusForbidden, "Access denied", CodeForbidden, err)
	case services.IsUnauthorized(err):
		h.RespondWithError(c, http.StatusUnauthorized, "Authentication required", CodeUnauthorized, err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", CodeInternal, err)
	}
}
